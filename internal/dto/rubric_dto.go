package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/gradelab/gradelab-api/internal/models"
)

// RubricCreateRequest describes the multipart payload for rubric upload.
type RubricCreateRequest struct {
	Name      string     `form:"name" validate:"required,min=1,max=255"`
	SubjectID *uuid.UUID `form:"subject_id"`
}

// ExtractCriteriaRequest triggers the criteria extraction pipeline for a rubric.
// FilePath optionally overrides the stored document path, e.g. after re-upload.
type ExtractCriteriaRequest struct {
	FilePath string `json:"filePath" validate:"omitempty,max=500"`
}

// ExtractCriteriaResponse is the payload returned by the extraction endpoint.
type ExtractCriteriaResponse struct {
	Success  bool               `json:"success"`
	Criteria []models.Criterion `json:"criteria"`
}

// RubricResponse is returned to API clients when viewing rubrics.
type RubricResponse struct {
	ID        uuid.UUID          `json:"id"`
	SubjectID *uuid.UUID         `json:"subject_id"`
	Name      string             `json:"name"`
	FilePath  string             `json:"file_path"`
	Criteria  []models.Criterion `json:"criteria"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NewRubricResponse converts a rubric model into its API representation.
func NewRubricResponse(rubric models.Rubric) (RubricResponse, error) {
	criteria, err := rubric.CriteriaList()
	if err != nil {
		return RubricResponse{}, err
	}
	if criteria == nil {
		criteria = []models.Criterion{}
	}

	return RubricResponse{
		ID:        rubric.ID,
		SubjectID: rubric.SubjectID,
		Name:      rubric.Name,
		FilePath:  rubric.FilePath,
		Criteria:  criteria,
		CreatedAt: rubric.CreatedAt,
		UpdatedAt: rubric.UpdatedAt,
	}, nil
}

// FocusProfileCreateRequest creates a named criteria subset for a rubric.
type FocusProfileCreateRequest struct {
	Name             string   `json:"name" validate:"required,min=1,max=255"`
	SelectedCriteria []string `json:"selectedCriteria" validate:"required,min=1,max=50,dive,min=1,max=64"`
}

// FocusProfileResponse serializes a focus profile.
type FocusProfileResponse struct {
	ID               uuid.UUID `json:"id"`
	RubricID         uuid.UUID `json:"rubric_id"`
	Name             string    `json:"name"`
	SelectedCriteria []string  `json:"selected_criteria"`
	IsDefault        bool      `json:"is_default"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewFocusProfileResponse converts a focus profile model into its API representation.
func NewFocusProfileResponse(profile models.FocusProfile) (FocusProfileResponse, error) {
	ids, err := profile.SelectedIDs()
	if err != nil {
		return FocusProfileResponse{}, err
	}
	if ids == nil {
		ids = []string{}
	}

	return FocusProfileResponse{
		ID:               profile.ID,
		RubricID:         profile.RubricID,
		Name:             profile.Name,
		SelectedCriteria: ids,
		IsDefault:        profile.IsDefault,
		CreatedAt:        profile.CreatedAt,
	}, nil
}

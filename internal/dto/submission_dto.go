package dto

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/gradelab/gradelab-api/internal/models"
)

// SubmissionCreateRequest describes the multipart payload for submission upload.
// When FocusProfileID is present the upload dispatches a grading task for the
// file as soon as the storage write completes.
type SubmissionCreateRequest struct {
	StudentName    string     `form:"student_name" validate:"omitempty,max=255"`
	AssignmentID   *uuid.UUID `form:"assignment_id"`
	FocusProfileID *uuid.UUID `form:"focus_profile_id"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	AssignmentID *uuid.UUID `query:"assignment_id"`
	Status       *string    `query:"status" validate:"omitempty,oneof=pending processing graded error"`
}

// GradeRequest triggers the grading pipeline for a submission.
type GradeRequest struct {
	FocusProfileID uuid.UUID `json:"focusProfileId" validate:"required"`
}

// GradeResponse is the payload returned by the grading endpoint.
type GradeResponse struct {
	Success      bool    `json:"success"`
	OverallScore float64 `json:"overallScore"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID           uuid.UUID  `json:"id"`
	AssignmentID *uuid.UUID `json:"assignment_id"`
	StudentName  string     `json:"student_name"`
	FilePath     string     `json:"file_path"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewSubmissionResponse converts a submission model into its API representation.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:           submission.ID,
		AssignmentID: submission.AssignmentID,
		StudentName:  submission.StudentName,
		FilePath:     submission.FilePath,
		Status:       submission.Status,
		CreatedAt:    submission.CreatedAt,
		UpdatedAt:    submission.UpdatedAt,
	}
}

// NewSubmissionResponseSlice maps a list of submissions.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	out := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		out = append(out, NewSubmissionResponse(submission))
	}
	return out
}

// ResultResponse serializes a grading result for the polling UI.
type ResultResponse struct {
	ID             uuid.UUID               `json:"id"`
	SubmissionID   uuid.UUID               `json:"submission_id"`
	OverallScore   float64                 `json:"overall_score"`
	CriteriaScores []models.CriterionScore `json:"criteria_scores"`
	Strengths      []string                `json:"strengths"`
	Improvements   []string                `json:"improvements"`
	Confidence     string                  `json:"confidence"`
	Flags          []string                `json:"flags"`
	CreatedAt      time.Time               `json:"created_at"`
	CacheHit       bool                    `json:"cache_hit,omitempty"`
}

// NewResultResponse converts a result model into its API representation.
// The overall score is rounded to two decimals for display; stored arithmetic
// stays unrounded.
func NewResultResponse(result models.Result) (ResultResponse, error) {
	scores, err := result.CriteriaScoreList()
	if err != nil {
		return ResultResponse{}, err
	}
	if scores == nil {
		scores = []models.CriterionScore{}
	}

	strengths, err := decodeStringList(result.Strengths)
	if err != nil {
		return ResultResponse{}, err
	}
	improvements, err := decodeStringList(result.Improvements)
	if err != nil {
		return ResultResponse{}, err
	}
	flags, err := decodeStringList(result.Flags)
	if err != nil {
		return ResultResponse{}, err
	}

	return ResultResponse{
		ID:             result.ID,
		SubmissionID:   result.SubmissionID,
		OverallScore:   math.Round(result.OverallScore*100) / 100,
		CriteriaScores: scores,
		Strengths:      strengths,
		Improvements:   improvements,
		Confidence:     result.Confidence,
		Flags:          flags,
		CreatedAt:      result.CreatedAt,
	}, nil
}

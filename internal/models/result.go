package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CriterionScore carries the graded outcome for a single criterion.
type CriterionScore struct {
	CriterionID string   `json:"criterion_id"`
	Score       float64  `json:"score"`
	Rationale   string   `json:"rationale"`
	Evidence    []string `json:"evidence"`
}

// Confidence levels the grading model may report.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Result holds the structured grading feedback for a submission.
// The uniqueIndex on SubmissionID enforces the 1:1 relationship; a retry
// deletes any stale row before inserting a fresh one.
type Result struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	SubmissionID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"submission_id"`
	OverallScore   float64        `gorm:"not null" json:"overall_score"`
	CriteriaScores datatypes.JSON `gorm:"type:jsonb" json:"criteria_scores"`
	Strengths      datatypes.JSON `gorm:"type:jsonb" json:"strengths"`
	Improvements   datatypes.JSON `gorm:"type:jsonb" json:"improvements"`
	Confidence     string         `gorm:"size:16;not null" json:"confidence"`
	Flags          datatypes.JSON `gorm:"type:jsonb" json:"flags"`
	CreatedAt      time.Time      `json:"created_at"`
}

// CriteriaScoreList decodes the embedded criteria scores column.
func (r Result) CriteriaScoreList() ([]CriterionScore, error) {
	if len(r.CriteriaScores) == 0 {
		return nil, nil
	}

	var scores []CriterionScore
	if err := json.Unmarshal(r.CriteriaScores, &scores); err != nil {
		return nil, err
	}

	return scores, nil
}

// EncodeJSONList serializes a slice into the JSON column format, normalizing nil to an empty list.
func EncodeJSONList[T any](items []T) (datatypes.JSON, error) {
	if items == nil {
		items = []T{}
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}

	return datatypes.JSON(raw), nil
}

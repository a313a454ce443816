package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Criterion is a single grading criterion extracted from a rubric document.
type Criterion struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
	Category    string  `json:"category"`
}

// Rubric represents an uploaded rubric document and its extracted criteria.
// Criteria live with the rubric as an embedded JSON list; they are replaced
// wholesale by the extraction pipeline and never partially updated.
type Rubric struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	SubjectID *uuid.UUID     `gorm:"type:uuid" json:"subject_id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	FilePath  string         `gorm:"size:512;not null" json:"file_path"`
	Criteria  datatypes.JSON `gorm:"type:jsonb" json:"criteria"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CriteriaList decodes the embedded criteria column.
func (r Rubric) CriteriaList() ([]Criterion, error) {
	if len(r.Criteria) == 0 {
		return nil, nil
	}

	var criteria []Criterion
	if err := json.Unmarshal(r.Criteria, &criteria); err != nil {
		return nil, err
	}

	return criteria, nil
}

// EncodeCriteria serializes a criteria list into the JSON column format.
func EncodeCriteria(criteria []Criterion) (datatypes.JSON, error) {
	if criteria == nil {
		criteria = []Criterion{}
	}

	raw, err := json.Marshal(criteria)
	if err != nil {
		return nil, err
	}

	return datatypes.JSON(raw), nil
}

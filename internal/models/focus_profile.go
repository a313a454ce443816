package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FocusProfile names a subset of rubric criteria to grade against.
// At most one default profile exists per rubric; it is created by the
// criteria extraction pipeline and selects every extracted criterion.
type FocusProfile struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	RubricID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"rubric_id"`
	Name             string         `gorm:"size:255;not null" json:"name"`
	SelectedCriteria datatypes.JSON `gorm:"type:jsonb" json:"selected_criteria"`
	IsDefault        bool           `gorm:"not null;default:false" json:"is_default"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// SelectedIDs decodes the selected criteria id list.
func (p FocusProfile) SelectedIDs() ([]string, error) {
	if len(p.SelectedCriteria) == 0 {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal(p.SelectedCriteria, &ids); err != nil {
		return nil, err
	}

	return ids, nil
}

// EncodeSelectedIDs serializes a criterion id list into the JSON column format.
func EncodeSelectedIDs(ids []string) (datatypes.JSON, error) {
	if ids == nil {
		ids = []string{}
	}

	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}

	return datatypes.JSON(raw), nil
}

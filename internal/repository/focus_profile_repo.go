package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gradelab/gradelab-api/internal/models"
)

// FocusProfileRepository defines data operations for focus profiles.
type FocusProfileRepository interface {
	GetOwned(ctx context.Context, id, userID uuid.UUID) (models.FocusProfile, error)
	ListByRubric(ctx context.Context, rubricID, userID uuid.UUID) ([]models.FocusProfile, error)
	Create(ctx context.Context, profile *models.FocusProfile) error
	ClearDefault(ctx context.Context, rubricID uuid.UUID) error
}

type focusProfileRepository struct {
	db *gorm.DB
}

// NewFocusProfileRepository instantiates the repository.
func NewFocusProfileRepository(db *gorm.DB) FocusProfileRepository {
	return &focusProfileRepository{db: db}
}

func (r *focusProfileRepository) GetOwned(ctx context.Context, id, userID uuid.UUID) (models.FocusProfile, error) {
	var profile models.FocusProfile
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		First(&profile).Error; err != nil {
		return models.FocusProfile{}, err
	}

	return profile, nil
}

func (r *focusProfileRepository) ListByRubric(ctx context.Context, rubricID, userID uuid.UUID) ([]models.FocusProfile, error) {
	var profiles []models.FocusProfile
	if err := r.db.WithContext(ctx).
		Where("rubric_id = ?", rubricID).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}

	return profiles, nil
}

func (r *focusProfileRepository) Create(ctx context.Context, profile *models.FocusProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// ClearDefault demotes any existing default profile so a new one can take its place.
func (r *focusProfileRepository) ClearDefault(ctx context.Context, rubricID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.FocusProfile{}).
		Where("rubric_id = ?", rubricID).
		Where("is_default = ?", true).
		Update("is_default", false).Error
}

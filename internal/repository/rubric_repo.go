package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gradelab/gradelab-api/internal/models"
)

// RubricRepository defines data operations for rubrics.
//
// Reads that answer authorization questions are owner-scoped: they filter by
// the caller's user id and never rely on a client-supplied owner field.
// Writes run with the service's privileged handle only after such a read
// has succeeded.
type RubricRepository interface {
	GetOwned(ctx context.Context, id, userID uuid.UUID) (models.Rubric, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Rubric, error)
	Create(ctx context.Context, rubric *models.Rubric) error
	ReplaceCriteria(ctx context.Context, id uuid.UUID, criteria datatypes.JSON) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type rubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository instantiates the repository.
func NewRubricRepository(db *gorm.DB) RubricRepository {
	return &rubricRepository{db: db}
}

func (r *rubricRepository) GetOwned(ctx context.Context, id, userID uuid.UUID) (models.Rubric, error) {
	var rubric models.Rubric
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		First(&rubric).Error; err != nil {
		return models.Rubric{}, err
	}

	return rubric, nil
}

func (r *rubricRepository) List(ctx context.Context, userID uuid.UUID) ([]models.Rubric, error) {
	var rubrics []models.Rubric
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rubrics).Error; err != nil {
		return nil, err
	}

	return rubrics, nil
}

func (r *rubricRepository) Create(ctx context.Context, rubric *models.Rubric) error {
	return r.db.WithContext(ctx).Create(rubric).Error
}

// ReplaceCriteria swaps the full criteria list in a single update.
func (r *rubricRepository) ReplaceCriteria(ctx context.Context, id uuid.UUID, criteria datatypes.JSON) error {
	result := r.db.WithContext(ctx).
		Model(&models.Rubric{}).
		Where("id = ?", id).
		Update("criteria", criteria)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *rubricRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rubric_id = ?", id).Delete(&models.FocusProfile{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Where("user_id = ?", userID).Delete(&models.Rubric{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return nil
	})
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gradelab/gradelab-api/internal/models"
)

// ResultRepository defines data operations for grading results.
type ResultRepository interface {
	GetBySubmission(ctx context.Context, submissionID, userID uuid.UUID) (models.Result, error)
	ReplaceForSubmission(ctx context.Context, result *models.Result) error
	DeleteBySubmission(ctx context.Context, submissionID uuid.UUID) error
}

type resultRepository struct {
	db *gorm.DB
}

// NewResultRepository instantiates the repository.
func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) GetBySubmission(ctx context.Context, submissionID, userID uuid.UUID) (models.Result, error) {
	var result models.Result
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Where("user_id = ?", userID).
		First(&result).Error; err != nil {
		return models.Result{}, err
	}

	return result, nil
}

// ReplaceForSubmission deletes any stale result for the submission and inserts
// the new one in the same transaction, keeping the 1:1 relationship intact
// across retries.
func (r *resultRepository) ReplaceForSubmission(ctx context.Context, result *models.Result) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", result.SubmissionID).Delete(&models.Result{}).Error; err != nil {
			return err
		}

		return tx.Create(result).Error
	})
}

func (r *resultRepository) DeleteBySubmission(ctx context.Context, submissionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Delete(&models.Result{}).Error
}

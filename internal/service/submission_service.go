package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gradelab/gradelab-api/internal/dto"
	"github.com/gradelab/gradelab-api/internal/models"
	"github.com/gradelab/gradelab-api/internal/repository"
	"github.com/gradelab/gradelab-api/pkg/storage"
)

var submissionExtensions = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".docx": {},
	".pdf":  {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

// SubmissionService orchestrates submission upload and lifecycle management.
type SubmissionService interface {
	Create(ctx context.Context, userID uuid.UUID, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	List(ctx context.Context, userID uuid.UUID, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, id, userID uuid.UUID) (dto.SubmissionResponse, error)
	Retry(ctx context.Context, id, userID uuid.UUID, payload dto.GradeRequest) (dto.SubmissionResponse, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type submissionService struct {
	submissions repository.SubmissionRepository
	results     repository.ResultRepository
	profiles    repository.FocusProfileRepository
	store       storage.ObjectStore
	dispatcher  GradingDispatcher
	resultCache ResultService
	bucket      string
	maxBytes    int64
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	results repository.ResultRepository,
	profiles repository.FocusProfileRepository,
	store storage.ObjectStore,
	dispatcher GradingDispatcher,
	resultCache ResultService,
	bucket string,
	maxBytes int64,
	validate *validator.Validate,
	logger zerolog.Logger,
) SubmissionService {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}

	return &submissionService{
		submissions: submissions,
		results:     results,
		profiles:    profiles,
		store:       store,
		dispatcher:  dispatcher,
		resultCache: resultCache,
		bucket:      bucket,
		maxBytes:    maxBytes,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
	}
}

// Create stores the uploaded paper and records a pending submission. When the
// payload names a focus profile, a grading task is dispatched immediately;
// dispatch failure leaves the row pending rather than failing the upload, so
// the caller can retry grading without re-uploading.
func (s *submissionService) Create(ctx context.Context, userID uuid.UUID, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if file == nil {
		return dto.SubmissionResponse{}, fmt.Errorf("submission document is required")
	}

	if file.Size > s.maxBytes {
		return dto.SubmissionResponse{}, ErrFileTooLarge
	}

	if payload.FocusProfileID != nil {
		if _, err := s.profiles.GetOwned(ctx, *payload.FocusProfileID, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.SubmissionResponse{}, ErrProfileNotFound
			}
			return dto.SubmissionResponse{}, err
		}
	}

	key, err := storeUpload(ctx, s.store, s.bucket, userID, file, submissionExtensions)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		ID:           uuid.New(),
		UserID:       userID,
		AssignmentID: payload.AssignmentID,
		StudentName:  payload.StudentName,
		FilePath:     key,
		Status:       models.SubmissionStatusPending,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Str("submission_id", submission.ID.String()).
		Msg("submission created")

	if payload.FocusProfileID != nil {
		task := GradingTask{
			SubmissionID:   submission.ID,
			FocusProfileID: *payload.FocusProfileID,
			UserID:         userID,
		}
		if err := s.dispatcher.Dispatch(ctx, task); err != nil {
			s.logger.Warn().Err(err).
				Str("submission_id", submission.ID.String()).
				Msg("grading dispatch failed; submission left pending")
		}
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) List(ctx context.Context, userID uuid.UUID, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, userID, repository.SubmissionFilter{
		AssignmentID: filter.AssignmentID,
		Status:       filter.Status,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, id, userID uuid.UUID) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

// Retry discards any previous result and requeues the submission for grading.
// A submission that is mid-flight cannot be retried; wait for a terminal state.
func (s *submissionService) Retry(ctx context.Context, id, userID uuid.UUID, payload dto.GradeRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if submission.Status == models.SubmissionStatusProcessing {
		return dto.SubmissionResponse{}, ErrGradingInProgress
	}

	if _, err := s.profiles.GetOwned(ctx, payload.FocusProfileID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrProfileNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if err := s.results.DeleteBySubmission(ctx, id); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("discard previous result: %w", err)
	}
	s.resultCache.Invalidate(ctx, id)

	if err := s.submissions.UpdateStatus(ctx, id, models.SubmissionStatusPending); err != nil {
		return dto.SubmissionResponse{}, err
	}
	submission.Status = models.SubmissionStatusPending

	task := GradingTask{
		SubmissionID:   id,
		FocusProfileID: payload.FocusProfileID,
		UserID:         userID,
	}
	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		s.logger.Warn().Err(err).
			Str("submission_id", id.String()).
			Msg("retry dispatch failed; submission left pending")
	}

	s.logger.Info().Str("submission_id", id.String()).Msg("submission requeued for grading")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	submission, err := s.submissions.GetOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	if err := s.submissions.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	s.resultCache.Invalidate(ctx, id)

	if err := s.store.Delete(ctx, s.bucket, submission.FilePath); err != nil {
		s.logger.Warn().Err(err).Str("path", submission.FilePath).Msg("failed to delete submission document")
	}

	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gradelab/gradelab-api/internal/dto"
	"github.com/gradelab/gradelab-api/internal/models"
	"github.com/gradelab/gradelab-api/internal/repository"
	"github.com/gradelab/gradelab-api/pkg/storage"
)

// ErrUploadTypeNotAllowed indicates the uploaded document format is not accepted.
var ErrUploadTypeNotAllowed = errors.New("file type not allowed")

var rubricExtensions = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".docx": {},
	".pdf":  {},
}

// RubricService orchestrates rubric and focus profile workflows.
type RubricService interface {
	Create(ctx context.Context, userID uuid.UUID, payload dto.RubricCreateRequest, file *multipart.FileHeader) (dto.RubricResponse, error)
	List(ctx context.Context, userID uuid.UUID) ([]dto.RubricResponse, error)
	Get(ctx context.Context, id, userID uuid.UUID) (dto.RubricResponse, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	CreateProfile(ctx context.Context, rubricID, userID uuid.UUID, payload dto.FocusProfileCreateRequest) (dto.FocusProfileResponse, error)
	ListProfiles(ctx context.Context, rubricID, userID uuid.UUID) ([]dto.FocusProfileResponse, error)
}

type rubricService struct {
	rubrics   repository.RubricRepository
	profiles  repository.FocusProfileRepository
	store     storage.ObjectStore
	bucket    string
	maxBytes  int64
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRubricService constructs a RubricService instance.
func NewRubricService(
	rubrics repository.RubricRepository,
	profiles repository.FocusProfileRepository,
	store storage.ObjectStore,
	bucket string,
	maxBytes int64,
	validate *validator.Validate,
	logger zerolog.Logger,
) RubricService {
	if maxBytes <= 0 {
		maxBytes = 5 * 1024 * 1024
	}

	return &rubricService{
		rubrics:   rubrics,
		profiles:  profiles,
		store:     store,
		bucket:    bucket,
		maxBytes:  maxBytes,
		validator: validate,
		logger:    logger.With().Str("component", "rubric_service").Logger(),
	}
}

func (s *rubricService) Create(ctx context.Context, userID uuid.UUID, payload dto.RubricCreateRequest, file *multipart.FileHeader) (dto.RubricResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RubricResponse{}, err
	}

	if file == nil {
		return dto.RubricResponse{}, fmt.Errorf("rubric document is required")
	}

	if file.Size > s.maxBytes {
		return dto.RubricResponse{}, ErrFileTooLarge
	}

	key, err := storeUpload(ctx, s.store, s.bucket, userID, file, rubricExtensions)
	if err != nil {
		return dto.RubricResponse{}, err
	}

	criteria, err := models.EncodeCriteria(nil)
	if err != nil {
		return dto.RubricResponse{}, err
	}

	rubric := models.Rubric{
		ID:        uuid.New(),
		UserID:    userID,
		SubjectID: payload.SubjectID,
		Name:      payload.Name,
		FilePath:  key,
		Criteria:  criteria,
	}

	if err := s.rubrics.Create(ctx, &rubric); err != nil {
		return dto.RubricResponse{}, err
	}

	s.logger.Info().Str("rubric_id", rubric.ID.String()).Msg("rubric created")

	return dto.NewRubricResponse(rubric)
}

func (s *rubricService) List(ctx context.Context, userID uuid.UUID) ([]dto.RubricResponse, error) {
	rubrics, err := s.rubrics.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.RubricResponse, 0, len(rubrics))
	for _, rubric := range rubrics {
		response, err := dto.NewRubricResponse(rubric)
		if err != nil {
			return nil, err
		}
		responses = append(responses, response)
	}

	return responses, nil
}

func (s *rubricService) Get(ctx context.Context, id, userID uuid.UUID) (dto.RubricResponse, error) {
	rubric, err := s.rubrics.GetOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RubricResponse{}, ErrRubricNotFound
		}
		return dto.RubricResponse{}, err
	}

	return dto.NewRubricResponse(rubric)
}

func (s *rubricService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	rubric, err := s.rubrics.GetOwned(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRubricNotFound
		}
		return err
	}

	if err := s.rubrics.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRubricNotFound
		}
		return err
	}

	// The row is gone; an orphaned object is a cleanup concern, not a failure.
	if err := s.store.Delete(ctx, s.bucket, rubric.FilePath); err != nil {
		s.logger.Warn().Err(err).Str("path", rubric.FilePath).Msg("failed to delete rubric document")
	}

	return nil
}

func (s *rubricService) CreateProfile(ctx context.Context, rubricID, userID uuid.UUID, payload dto.FocusProfileCreateRequest) (dto.FocusProfileResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FocusProfileResponse{}, err
	}

	rubric, err := s.rubrics.GetOwned(ctx, rubricID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FocusProfileResponse{}, ErrRubricNotFound
		}
		return dto.FocusProfileResponse{}, err
	}

	criteria, err := rubric.CriteriaList()
	if err != nil {
		return dto.FocusProfileResponse{}, fmt.Errorf("decode rubric criteria: %w", err)
	}

	known := make(map[string]struct{}, len(criteria))
	for _, criterion := range criteria {
		known[criterion.ID] = struct{}{}
	}

	for _, id := range payload.SelectedCriteria {
		if _, ok := known[id]; !ok {
			return dto.FocusProfileResponse{}, fmt.Errorf("%w: %s", ErrSelectionNotInRubric, id)
		}
	}

	encoded, err := models.EncodeSelectedIDs(payload.SelectedCriteria)
	if err != nil {
		return dto.FocusProfileResponse{}, err
	}

	profile := models.FocusProfile{
		ID:               uuid.New(),
		UserID:           userID,
		RubricID:         rubricID,
		Name:             payload.Name,
		SelectedCriteria: encoded,
		IsDefault:        false,
	}

	if err := s.profiles.Create(ctx, &profile); err != nil {
		return dto.FocusProfileResponse{}, err
	}

	return dto.NewFocusProfileResponse(profile)
}

func (s *rubricService) ListProfiles(ctx context.Context, rubricID, userID uuid.UUID) ([]dto.FocusProfileResponse, error) {
	if _, err := s.rubrics.GetOwned(ctx, rubricID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRubricNotFound
		}
		return nil, err
	}

	profiles, err := s.profiles.ListByRubric(ctx, rubricID, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.FocusProfileResponse, 0, len(profiles))
	for _, profile := range profiles {
		response, err := dto.NewFocusProfileResponse(profile)
		if err != nil {
			return nil, err
		}
		responses = append(responses, response)
	}

	return responses, nil
}

// storeUpload validates the upload's extension and sniffed type, then writes
// it under an owner-prefixed random key so per-user listing and deletion stay
// prefix operations.
func storeUpload(ctx context.Context, store storage.ObjectStore, bucket string, userID uuid.UUID, file *multipart.FileHeader, allowed map[string]struct{}) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := allowed[ext]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUploadTypeNotAllowed, ext)
	}

	reader, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return "", fmt.Errorf("detect upload type: %w", err)
	}

	if _, err := reader.Seek(0, 0); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	key := fmt.Sprintf("%s/%s%s", userID, uuid.NewString(), ext)

	putCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := store.Put(putCtx, bucket, key, reader, file.Size, mime.String()); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	return key, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/gradelab/gradelab-api/internal/dto"
	"github.com/gradelab/gradelab-api/internal/extract"
	"github.com/gradelab/gradelab-api/internal/models"
	"github.com/gradelab/gradelab-api/internal/repository"
	"github.com/gradelab/gradelab-api/internal/schema"
	"github.com/gradelab/gradelab-api/pkg/ai"
	"github.com/gradelab/gradelab-api/pkg/storage"
)

// DefaultProfileName is the focus profile created automatically after extraction.
const DefaultProfileName = "All Criteria"

// CriteriaService runs the rubric criteria extraction pipeline.
type CriteriaService interface {
	ExtractCriteria(ctx context.Context, rubricID, userID uuid.UUID, payload dto.ExtractCriteriaRequest) (dto.ExtractCriteriaResponse, error)
}

// CriteriaPipelineOptions bounds the extraction pipeline's resource use.
type CriteriaPipelineOptions struct {
	Bucket         string
	MaxFileBytes   int64
	RateLimit      int
	StorageTimeout time.Duration
	AITimeout      time.Duration
}

type criteriaService struct {
	rubrics   repository.RubricRepository
	profiles  repository.FocusProfileRepository
	limiter   RateLimiter
	store     storage.ObjectStore
	extractor *extract.Extractor
	aiClient  ai.Client
	validator *validator.Validate
	opts      CriteriaPipelineOptions
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewCriteriaService constructs the extraction pipeline service.
func NewCriteriaService(
	rubrics repository.RubricRepository,
	profiles repository.FocusProfileRepository,
	limiter RateLimiter,
	store storage.ObjectStore,
	extractor *extract.Extractor,
	aiClient ai.Client,
	validate *validator.Validate,
	opts CriteriaPipelineOptions,
	logger zerolog.Logger,
) CriteriaService {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 5 * 1024 * 1024
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 30 * time.Second
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = 2 * time.Minute
	}

	return &criteriaService{
		rubrics:   rubrics,
		profiles:  profiles,
		limiter:   limiter,
		store:     store,
		extractor: extractor,
		aiClient:  aiClient,
		validator: validate,
		opts:      opts,
		logger:    logger.With().Str("component", "criteria_service").Logger(),
		tracer:    otel.Tracer("github.com/gradelab/gradelab-api/internal/service/criteria"),
	}
}

// ExtractCriteria runs every stage as a hard gate: any failure aborts with no
// partial writes. Only the default-profile creation at the end is non-fatal,
// since by then the criteria are already durably saved.
func (s *criteriaService) ExtractCriteria(ctx context.Context, rubricID, userID uuid.UUID, payload dto.ExtractCriteriaRequest) (dto.ExtractCriteriaResponse, error) {
	ctx, span := s.tracer.Start(ctx, "criteria.extract", trace.WithAttributes(
		attribute.String("rubric_id", rubricID.String()),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ExtractCriteriaResponse{}, err
	}

	if !s.limiter.Check(ctx, userID, RateLimitEndpointProcessRubric, s.opts.RateLimit) {
		span.SetStatus(codes.Error, "rate_limited")
		return dto.ExtractCriteriaResponse{}, ErrRateLimited
	}

	rubric, err := s.rubrics.GetOwned(ctx, rubricID, userID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "rubric_not_found")
			return dto.ExtractCriteriaResponse{}, ErrRubricNotFound
		}
		span.SetStatus(codes.Error, "rubric_lookup_failed")
		return dto.ExtractCriteriaResponse{}, err
	}

	// Object keys are owner-prefixed; an override pointing outside the
	// caller's prefix would let the elevated storage credential read another
	// user's documents. Treat it the same as a missing file.
	filePath := rubric.FilePath
	if payload.FilePath != "" {
		if !strings.HasPrefix(payload.FilePath, userID.String()+"/") {
			span.SetStatus(codes.Error, "file_path_rejected")
			return dto.ExtractCriteriaResponse{}, ErrFileNotFound
		}
		filePath = payload.FilePath
	}

	text, err := s.extractText(ctx, filePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction_failed")
		return dto.ExtractCriteriaResponse{}, err
	}

	criteria, err := s.callModel(ctx, rubric.Name, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ai_failed")
		return dto.ExtractCriteriaResponse{}, err
	}

	encoded, err := models.EncodeCriteria(criteria)
	if err != nil {
		span.RecordError(err)
		return dto.ExtractCriteriaResponse{}, fmt.Errorf("encode criteria: %w", err)
	}

	if err := s.rubrics.ReplaceCriteria(ctx, rubric.ID, encoded); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "criteria_update_failed")
		return dto.ExtractCriteriaResponse{}, err
	}

	s.createDefaultProfile(ctx, rubric, criteria)

	span.SetAttributes(attribute.Int("criteria_count", len(criteria)))
	s.logger.Info().
		Str("rubric_id", rubric.ID.String()).
		Int("criteria_count", len(criteria)).
		Msg("rubric criteria extracted")

	return dto.ExtractCriteriaResponse{Success: true, Criteria: criteria}, nil
}

func (s *criteriaService) extractText(ctx context.Context, filePath string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	data, err := s.store.Fetch(fetchCtx, s.opts.Bucket, filePath, s.opts.MaxFileBytes)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			return "", ErrFileNotFound
		case errors.Is(err, storage.ErrObjectTooLarge):
			return "", ErrFileTooLarge
		}
		return "", fmt.Errorf("fetch rubric document: %w", err)
	}

	extractCtx, cancelExtract := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancelExtract()

	text, err := s.extractor.Extract(extractCtx, filePath, data, extract.KindRubric)
	if err != nil {
		return "", err
	}

	return extract.Truncate(text, extract.MaxRubricChars), nil
}

func (s *criteriaService) callModel(ctx context.Context, rubricName, text string) ([]models.Criterion, error) {
	aiCtx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancel()

	raw, err := s.aiClient.ExtractCriteria(aiCtx, ai.ExtractionInput{
		RubricName: rubricName,
		RubricText: text,
	})
	if err != nil {
		return nil, err
	}

	return schema.ValidateCriteria(raw)
}

// createDefaultProfile is a convenience the user can recreate manually; its
// failure is logged, never surfaced.
func (s *criteriaService) createDefaultProfile(ctx context.Context, rubric models.Rubric, criteria []models.Criterion) {
	ids := make([]string, 0, len(criteria))
	for _, criterion := range criteria {
		ids = append(ids, criterion.ID)
	}

	encoded, err := models.EncodeSelectedIDs(ids)
	if err != nil {
		s.logger.Warn().Err(err).Str("rubric_id", rubric.ID.String()).Msg("failed to encode default profile selection")
		return
	}

	if err := s.profiles.ClearDefault(ctx, rubric.ID); err != nil {
		s.logger.Warn().Err(err).Str("rubric_id", rubric.ID.String()).Msg("failed to demote previous default profile")
		return
	}

	profile := models.FocusProfile{
		ID:               uuid.New(),
		UserID:           rubric.UserID,
		RubricID:         rubric.ID,
		Name:             DefaultProfileName,
		SelectedCriteria: encoded,
		IsDefault:        true,
	}
	if err := s.profiles.Create(ctx, &profile); err != nil {
		s.logger.Warn().Err(err).Str("rubric_id", rubric.ID.String()).Msg("failed to create default focus profile")
	}
}

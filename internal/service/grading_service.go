package service

import (
	"context"
	"errors"
	"fmt"
	"time"

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
	"github.com/gradelab/gradelab-api/internal/observability"
	"github.com/gradelab/gradelab-api/internal/repository"
	"github.com/gradelab/gradelab-api/internal/schema"
	"github.com/gradelab/gradelab-api/pkg/ai"
	"github.com/gradelab/gradelab-api/pkg/storage"
)

// GradingService runs the submission grading pipeline.
type GradingService interface {
	Grade(ctx context.Context, submissionID, focusProfileID, userID uuid.UUID) (dto.GradeResponse, error)
}

// GradingPipelineOptions bounds the grading pipeline's resource use.
type GradingPipelineOptions struct {
	Bucket         string
	MaxFileBytes   int64
	RateLimit      int
	StorageTimeout time.Duration
	AITimeout      time.Duration
}

type gradingService struct {
	submissions repository.SubmissionRepository
	profiles    repository.FocusProfileRepository
	rubrics     repository.RubricRepository
	results     repository.ResultRepository
	limiter     RateLimiter
	store       storage.ObjectStore
	extractor   *extract.Extractor
	aiClient    ai.Client
	opts        GradingPipelineOptions
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewGradingService constructs the grading pipeline service.
func NewGradingService(
	submissions repository.SubmissionRepository,
	profiles repository.FocusProfileRepository,
	rubrics repository.RubricRepository,
	results repository.ResultRepository,
	limiter RateLimiter,
	store storage.ObjectStore,
	extractor *extract.Extractor,
	aiClient ai.Client,
	opts GradingPipelineOptions,
	logger zerolog.Logger,
) GradingService {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 10 * 1024 * 1024
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 30 * time.Second
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = 2 * time.Minute
	}

	return &gradingService{
		submissions: submissions,
		profiles:    profiles,
		rubrics:     rubrics,
		results:     results,
		limiter:     limiter,
		store:       store,
		extractor:   extractor,
		aiClient:    aiClient,
		opts:        opts,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/gradelab/gradelab-api/internal/service/grading"),
	}
}

// Grade is a single attempt: no internal retries or backoff. Once the
// submission has been moved to processing, every exit path writes a terminal
// status so pollers never see it stuck.
func (s *gradingService) Grade(ctx context.Context, submissionID, focusProfileID, userID uuid.UUID) (response dto.GradeResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.String("submission_id", submissionID.String()),
		attribute.String("focus_profile_id", focusProfileID.String()),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		outcome := "graded"
		if err != nil {
			outcome = "error"
		}
		observability.PipelineOutcomes().WithLabelValues("grading", outcome).Inc()
		observability.PipelineDuration().WithLabelValues("grading").Observe(time.Since(start).Seconds())
	}()

	if !s.limiter.Check(ctx, userID, RateLimitEndpointGradeSubmission, s.opts.RateLimit) {
		span.SetStatus(codes.Error, "rate_limited")
		return dto.GradeResponse{}, ErrRateLimited
	}

	// Ownership check before any mutation; a failure here leaves the row untouched.
	submission, err := s.submissions.GetOwned(ctx, submissionID, userID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.GradeResponse{}, ErrSubmissionNotFound
		}
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.GradeResponse{}, err
	}

	// First side effect: pollers see processing immediately.
	if err := s.submissions.UpdateStatus(ctx, submission.ID, models.SubmissionStatusProcessing); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status_update_failed")
		return dto.GradeResponse{}, err
	}

	// From here on the caller knows grading started; unexpected panics must
	// still land the submission in a terminal state.
	defer func() {
		if r := recover(); r != nil {
			s.markError(submission.ID)
			span.SetStatus(codes.Error, "panic")
			err = fmt.Errorf("grading pipeline panicked: %v", r)
			response = dto.GradeResponse{}
		}
	}()

	selected, err := s.resolveCriteria(ctx, focusProfileID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "criteria_resolution_failed")
		s.markError(submission.ID)
		return dto.GradeResponse{}, err
	}

	text, err := s.extractText(ctx, submission.FilePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction_failed")
		s.markError(submission.ID)
		return dto.GradeResponse{}, err
	}

	payload, err := s.callModel(ctx, selected, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ai_failed")
		s.markError(submission.ID)
		return dto.GradeResponse{}, err
	}

	overall := OverallScore(selected.criteria, payload.CriteriaScores)

	result, err := buildResult(submission, payload, overall)
	if err != nil {
		span.RecordError(err)
		s.markError(submission.ID)
		return dto.GradeResponse{}, fmt.Errorf("encode result: %w", err)
	}

	if err := s.results.ReplaceForSubmission(ctx, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "result_persist_failed")
		s.markError(submission.ID)
		return dto.GradeResponse{}, err
	}

	if err := s.submissions.UpdateStatus(ctx, submission.ID, models.SubmissionStatusGraded); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "final_status_failed")
		s.markError(submission.ID)
		return dto.GradeResponse{}, err
	}

	span.SetAttributes(attribute.Float64("overall_score", overall))
	s.logger.Info().
		Str("submission_id", submission.ID.String()).
		Float64("overall_score", overall).
		Msg("submission graded")

	return dto.GradeResponse{Success: true, OverallScore: overall}, nil
}

// selectedCriteria pairs the rubric with the profile-filtered criteria list.
type selectedCriteria struct {
	rubricName string
	criteria   []models.Criterion
}

// resolveCriteria loads the focus profile and its rubric, then intersects the
// rubric criteria with the profile selection. Stale profile ids that no longer
// exist on the rubric are silently dropped, not rejected.
func (s *gradingService) resolveCriteria(ctx context.Context, focusProfileID, userID uuid.UUID) (selectedCriteria, error) {
	profile, err := s.profiles.GetOwned(ctx, focusProfileID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return selectedCriteria{}, ErrProfileNotFound
		}
		return selectedCriteria{}, err
	}

	rubric, err := s.rubrics.GetOwned(ctx, profile.RubricID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return selectedCriteria{}, ErrRubricNotFound
		}
		return selectedCriteria{}, err
	}

	criteria, err := rubric.CriteriaList()
	if err != nil {
		return selectedCriteria{}, fmt.Errorf("decode rubric criteria: %w", err)
	}

	ids, err := profile.SelectedIDs()
	if err != nil {
		return selectedCriteria{}, fmt.Errorf("decode profile selection: %w", err)
	}

	selectedIDs := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		selectedIDs[id] = struct{}{}
	}

	selected := make([]models.Criterion, 0, len(ids))
	for _, criterion := range criteria {
		if _, ok := selectedIDs[criterion.ID]; ok {
			selected = append(selected, criterion)
		}
	}

	return selectedCriteria{rubricName: rubric.Name, criteria: selected}, nil
}

func (s *gradingService) extractText(ctx context.Context, filePath string) (string, error) {
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
		return "", fmt.Errorf("fetch submission document: %w", err)
	}

	extractCtx, cancelExtract := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancelExtract()

	text, err := s.extractor.Extract(extractCtx, filePath, data, extract.KindSubmission)
	if err != nil {
		return "", err
	}

	return extract.Truncate(text, extract.MaxSubmissionChars), nil
}

func (s *gradingService) callModel(ctx context.Context, selected selectedCriteria, text string) (schema.GradingPayload, error) {
	criteria := make([]ai.GradeCriterion, 0, len(selected.criteria))
	for _, criterion := range selected.criteria {
		criteria = append(criteria, ai.GradeCriterion{
			ID:          criterion.ID,
			Name:        criterion.Name,
			Description: criterion.Description,
			Weight:      criterion.Weight,
		})
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancel()

	raw, err := s.aiClient.Grade(aiCtx, ai.GradingInput{
		RubricName:     selected.rubricName,
		Criteria:       criteria,
		SubmissionText: text,
	})
	if err != nil {
		return schema.GradingPayload{}, err
	}

	return schema.ValidateGrading(raw, selected.criteria)
}

// markError moves the submission to the error state. It runs on a fresh
// context so a cancelled request deadline cannot leave the row in processing,
// and its own failure is logged rather than allowed to mask the original error.
func (s *gradingService) markError(submissionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.submissions.UpdateStatus(ctx, submissionID, models.SubmissionStatusError); err != nil {
		s.logger.Error().Err(err).
			Str("submission_id", submissionID.String()).
			Msg("failed to record error status")
	}
}

// OverallScore computes 100 * awarded / available over the selected criteria.
// An empty selection scores zero rather than dividing by zero.
func OverallScore(selected []models.Criterion, scores []models.CriterionScore) float64 {
	var available float64
	for _, criterion := range selected {
		available += criterion.Weight
	}

	if available == 0 {
		return 0
	}

	var awarded float64
	for _, score := range scores {
		awarded += score.Score
	}

	return 100 * awarded / available
}

func buildResult(submission models.Submission, payload schema.GradingPayload, overall float64) (models.Result, error) {
	criteriaScores, err := models.EncodeJSONList(payload.CriteriaScores)
	if err != nil {
		return models.Result{}, err
	}
	strengths, err := models.EncodeJSONList(payload.Strengths)
	if err != nil {
		return models.Result{}, err
	}
	improvements, err := models.EncodeJSONList(payload.Improvements)
	if err != nil {
		return models.Result{}, err
	}
	flags, err := models.EncodeJSONList(payload.Flags)
	if err != nil {
		return models.Result{}, err
	}

	return models.Result{
		ID:             uuid.New(),
		UserID:         submission.UserID,
		SubmissionID:   submission.ID,
		OverallScore:   overall,
		CriteriaScores: criteriaScores,
		Strengths:      strengths,
		Improvements:   improvements,
		Confidence:     payload.Confidence,
		Flags:          flags,
	}, nil
}

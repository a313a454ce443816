package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gradelab/gradelab-api/internal/dto"
	"github.com/gradelab/gradelab-api/internal/repository"
)

// ResultService reads grading results with a cache in front of the database.
type ResultService interface {
	GetBySubmission(ctx context.Context, submissionID, userID uuid.UUID) (dto.ResultResponse, error)
	Invalidate(ctx context.Context, submissionID uuid.UUID)
}

type resultService struct {
	results     repository.ResultRepository
	submissions repository.SubmissionRepository
	redis       *redis.Client
	ttl         time.Duration
	logger      zerolog.Logger
}

// NewResultService constructs a ResultService instance.
func NewResultService(
	results repository.ResultRepository,
	submissions repository.SubmissionRepository,
	redisClient *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) ResultService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &resultService{
		results:     results,
		submissions: submissions,
		redis:       redisClient,
		ttl:         ttl,
		logger:      logger.With().Str("component", "result_service").Logger(),
	}
}

func resultCacheKey(submissionID uuid.UUID) string {
	return fmt.Sprintf("gradelab:result:%s", submissionID)
}

// GetBySubmission returns the grading result for a submission the caller owns.
// Results are immutable between grading runs, so a cached copy is authoritative
// until a retry invalidates it. Cache failures fall through to the database.
func (s *resultService) GetBySubmission(ctx context.Context, submissionID, userID uuid.UUID) (dto.ResultResponse, error) {
	// Ownership is checked against the submission; results carry no user column.
	if _, err := s.submissions.GetOwned(ctx, submissionID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResultResponse{}, ErrSubmissionNotFound
		}
		return dto.ResultResponse{}, err
	}

	key := resultCacheKey(submissionID)

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			var response dto.ResultResponse
			if err := json.Unmarshal([]byte(cached), &response); err == nil {
				response.CacheHit = true
				return response, nil
			}
			s.logger.Warn().Str("key", key).Msg("discarding undecodable cached result")
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("result cache read failed")
		}
	}

	result, err := s.results.GetBySubmission(ctx, submissionID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResultResponse{}, ErrResultNotFound
		}
		return dto.ResultResponse{}, err
	}

	response, err := dto.NewResultResponse(result)
	if err != nil {
		return dto.ResultResponse{}, err
	}

	if s.redis != nil {
		if encoded, err := json.Marshal(response); err == nil {
			if err := s.redis.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("result cache write failed")
			}
		}
	}

	return response, nil
}

// Invalidate drops the cached result for a submission. Best effort: a stale
// entry expires on its own within the TTL.
func (s *resultService) Invalidate(ctx context.Context, submissionID uuid.UUID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, resultCacheKey(submissionID)).Err(); err != nil {
		s.logger.Warn().Err(err).
			Str("submission_id", submissionID.String()).
			Msg("result cache invalidation failed")
	}
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gradelab/gradelab-api/internal/repository"
)

// Rate-limited endpoint identifiers.
const (
	RateLimitEndpointProcessRubric   = "process-rubric"
	RateLimitEndpointGradeSubmission = "grade-submission"
)

// RateLimiter counts requests per user per endpoint in fixed one-minute windows.
type RateLimiter interface {
	// Check records one request and reports whether the caller is still within
	// maxRequests for the current window. A failing counter store never blocks
	// the caller: rate limiting protects capacity, it is not a correctness
	// concern, so errors log and fail open.
	Check(ctx context.Context, userID uuid.UUID, endpoint string, maxRequests int) bool
}

type rateLimitService struct {
	repo   repository.RateLimitRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewRateLimitService constructs the persistent-store-backed rate limiter.
func NewRateLimitService(repo repository.RateLimitRepository, logger zerolog.Logger) RateLimiter {
	return &rateLimitService{
		repo:   repo,
		logger: logger.With().Str("component", "rate_limit_service").Logger(),
		now:    time.Now,
	}
}

func (s *rateLimitService) Check(ctx context.Context, userID uuid.UUID, endpoint string, maxRequests int) bool {
	if maxRequests <= 0 {
		return true
	}

	windowKey := s.now().UTC().Format("200601021504")

	count, err := s.repo.IncrementAndGet(ctx, userID, endpoint, windowKey)
	if err != nil {
		s.logger.Error().Err(err).
			Str("endpoint", endpoint).
			Str("user_id", userID.String()).
			Msg("rate limit counter unavailable, failing open")
		return true
	}

	return count <= maxRequests
}

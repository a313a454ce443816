package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gradelab/gradelab-api/internal/models"
)

type resultFixture struct {
	userID       uuid.UUID
	submissionID uuid.UUID
	results      *memoryResultRepo
	redis        *miniredis.Miniredis
	service      ResultService
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	userID := uuid.New()
	submissionID := uuid.New()

	submissions := newMemorySubmissionRepo()
	results := newMemoryResultRepo()

	require.NoError(t, submissions.Create(context.Background(), &models.Submission{
		ID:     submissionID,
		UserID: userID,
		Status: models.SubmissionStatusGraded,
	}))

	svc := NewResultService(results, submissions, client, time.Minute, zerolog.New(io.Discard))

	return &resultFixture{
		userID:       userID,
		submissionID: submissionID,
		results:      results,
		redis:        server,
		service:      svc,
	}
}

func (f *resultFixture) seedResult(t *testing.T, overall float64) {
	t.Helper()

	require.NoError(t, f.results.ReplaceForSubmission(context.Background(), &models.Result{
		ID:           uuid.New(),
		UserID:       f.userID,
		SubmissionID: f.submissionID,
		OverallScore: overall,
		CriteriaScores: mustJSON([]models.CriterionScore{
			{CriterionID: "c1", Score: 40, Rationale: "solid", Evidence: []string{}},
		}),
		Strengths:    mustJSON([]string{"clarity"}),
		Improvements: mustJSON([]string{"depth"}),
		Confidence:   models.ConfidenceHigh,
		Flags:        mustJSON([]string{}),
	}))
}

func TestResultCacheMissThenHit(t *testing.T) {
	fixture := newResultFixture(t)
	fixture.seedResult(t, 85)

	first, err := fixture.service.GetBySubmission(context.Background(), fixture.submissionID, fixture.userID)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.InDelta(t, 85.0, first.OverallScore, 1e-9)

	second, err := fixture.service.GetBySubmission(context.Background(), fixture.submissionID, fixture.userID)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.OverallScore, second.OverallScore)
	require.Equal(t, first.CriteriaScores, second.CriteriaScores)
}

func TestResultInvalidateDropsCachedEntry(t *testing.T) {
	fixture := newResultFixture(t)
	fixture.seedResult(t, 70)

	_, err := fixture.service.GetBySubmission(context.Background(), fixture.submissionID, fixture.userID)
	require.NoError(t, err)

	fixture.service.Invalidate(context.Background(), fixture.submissionID)

	refreshed, err := fixture.service.GetBySubmission(context.Background(), fixture.submissionID, fixture.userID)
	require.NoError(t, err)
	require.False(t, refreshed.CacheHit)
}

func TestResultNotFoundForUngradedSubmission(t *testing.T) {
	fixture := newResultFixture(t)

	_, err := fixture.service.GetBySubmission(context.Background(), fixture.submissionID, fixture.userID)
	require.ErrorIs(t, err, ErrResultNotFound)
}

func TestResultForeignSubmissionNotFound(t *testing.T) {
	fixture := newResultFixture(t)
	fixture.seedResult(t, 90)

	_, err := fixture.service.GetBySubmission(context.Background(), fixture.submissionID, uuid.New())
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestResultSurvivesRedisOutage(t *testing.T) {
	fixture := newResultFixture(t)
	fixture.seedResult(t, 60)

	fixture.redis.SetError("connection lost")

	response, err := fixture.service.GetBySubmission(context.Background(), fixture.submissionID, fixture.userID)
	require.NoError(t, err)
	require.False(t, response.CacheHit)
	require.InDelta(t, 60.0, response.OverallScore, 1e-9)
}

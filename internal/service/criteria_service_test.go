package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gradelab/gradelab-api/internal/dto"
	"github.com/gradelab/gradelab-api/internal/extract"
	"github.com/gradelab/gradelab-api/internal/models"
	"github.com/gradelab/gradelab-api/internal/schema"
)

type criteriaFixture struct {
	userID   uuid.UUID
	rubricID uuid.UUID
	rubrics  *memoryRubricRepo
	profiles *memoryProfileRepo
	limiter  *fakeLimiter
	store    *fakeObjectStore
	service  CriteriaService
}

func newCriteriaFixture(t *testing.T, aiClient *fakeAIClient) *criteriaFixture {
	t.Helper()

	userID := uuid.New()
	rubricID := uuid.New()

	rubrics := newMemoryRubricRepo()
	profiles := newMemoryProfileRepo()
	limiter := &fakeLimiter{allow: true}
	store := newFakeObjectStore()

	rubric := models.Rubric{
		ID:       rubricID,
		UserID:   userID,
		Name:     "Essay Rubric",
		FilePath: "rubrics/essay-rubric.txt",
		Criteria: mustJSON([]models.Criterion{}),
	}
	require.NoError(t, rubrics.Create(context.Background(), &rubric))

	document := strings.Repeat("Criterion: thesis clarity, evidence quality, structure. ", 4)
	require.NoError(t, store.Put(context.Background(), "rubrics", "rubrics/essay-rubric.txt", strings.NewReader(document), int64(len(document)), "text/plain"))

	svc := NewCriteriaService(
		rubrics, profiles, limiter, store,
		extract.New(aiClient, zerolog.New(io.Discard)), aiClient,
		validator.New(validator.WithRequiredStructEnabled()),
		CriteriaPipelineOptions{Bucket: "rubrics"},
		zerolog.New(io.Discard),
	)

	return &criteriaFixture{
		userID:   userID,
		rubricID: rubricID,
		rubrics:  rubrics,
		profiles: profiles,
		limiter:  limiter,
		store:    store,
		service:  svc,
	}
}

func extractedCriteriaPayload() json.RawMessage {
	return json.RawMessage(`{
		"criteria": [
			{"id": "c1", "name": "Thesis", "description": "Clear thesis statement", "weight": 40, "category": "content"},
			{"id": "c2", "name": "Evidence", "description": "Supporting evidence", "weight": 60, "category": "content"}
		]
	}`)
}

func TestExtractCriteriaReplacesCriteriaAndCreatesDefaultProfile(t *testing.T) {
	fixture := newCriteriaFixture(t, &fakeAIClient{extractRaw: extractedCriteriaPayload()})

	response, err := fixture.service.ExtractCriteria(context.Background(), fixture.rubricID, fixture.userID, dto.ExtractCriteriaRequest{})
	require.NoError(t, err)
	require.True(t, response.Success)
	require.Len(t, response.Criteria, 2)

	rubric, err := fixture.rubrics.GetOwned(context.Background(), fixture.rubricID, fixture.userID)
	require.NoError(t, err)
	criteria, err := rubric.CriteriaList()
	require.NoError(t, err)
	require.Len(t, criteria, 2)
	require.Equal(t, "c1", criteria[0].ID)

	profiles, err := fixture.profiles.ListByRubric(context.Background(), fixture.rubricID, fixture.userID)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.Equal(t, DefaultProfileName, profiles[0].Name)
	require.True(t, profiles[0].IsDefault)

	ids, err := profiles[0].SelectedIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2"}, ids)
}

func TestExtractCriteriaDemotesPreviousDefaultProfile(t *testing.T) {
	fixture := newCriteriaFixture(t, &fakeAIClient{extractRaw: extractedCriteriaPayload()})

	previousID := uuid.New()
	require.NoError(t, fixture.profiles.Create(context.Background(), &models.FocusProfile{
		ID:               previousID,
		UserID:           fixture.userID,
		RubricID:         fixture.rubricID,
		Name:             DefaultProfileName,
		SelectedCriteria: mustJSON([]string{"old"}),
		IsDefault:        true,
	}))

	_, err := fixture.service.ExtractCriteria(context.Background(), fixture.rubricID, fixture.userID, dto.ExtractCriteriaRequest{})
	require.NoError(t, err)

	previous, err := fixture.profiles.GetOwned(context.Background(), previousID, fixture.userID)
	require.NoError(t, err)
	require.False(t, previous.IsDefault)

	profiles, err := fixture.profiles.ListByRubric(context.Background(), fixture.rubricID, fixture.userID)
	require.NoError(t, err)

	defaults := 0
	for _, profile := range profiles {
		if profile.IsDefault {
			defaults++
		}
	}
	require.Equal(t, 1, defaults)
}

func TestExtractCriteriaInvalidModelPayloadLeavesRubricUntouched(t *testing.T) {
	payload := json.RawMessage(`{"criteria": [{"id": "c1", "name": "Thesis", "description": "", "weight": 200, "category": ""}]}`)
	fixture := newCriteriaFixture(t, &fakeAIClient{extractRaw: payload})

	_, err := fixture.service.ExtractCriteria(context.Background(), fixture.rubricID, fixture.userID, dto.ExtractCriteriaRequest{})
	require.ErrorIs(t, err, schema.ErrInvalidPayload)

	rubric, err := fixture.rubrics.GetOwned(context.Background(), fixture.rubricID, fixture.userID)
	require.NoError(t, err)
	criteria, err := rubric.CriteriaList()
	require.NoError(t, err)
	require.Empty(t, criteria)

	profiles, err := fixture.profiles.ListByRubric(context.Background(), fixture.rubricID, fixture.userID)
	require.NoError(t, err)
	require.Empty(t, profiles)
}

func TestExtractCriteriaRateLimited(t *testing.T) {
	fixture := newCriteriaFixture(t, &fakeAIClient{extractRaw: extractedCriteriaPayload()})
	fixture.limiter.allow = false

	_, err := fixture.service.ExtractCriteria(context.Background(), fixture.rubricID, fixture.userID, dto.ExtractCriteriaRequest{})
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestExtractCriteriaForeignRubricNotFound(t *testing.T) {
	fixture := newCriteriaFixture(t, &fakeAIClient{extractRaw: extractedCriteriaPayload()})

	_, err := fixture.service.ExtractCriteria(context.Background(), fixture.rubricID, uuid.New(), dto.ExtractCriteriaRequest{})
	require.ErrorIs(t, err, ErrRubricNotFound)
}

func TestExtractCriteriaMissingDocument(t *testing.T) {
	fixture := newCriteriaFixture(t, &fakeAIClient{extractRaw: extractedCriteriaPayload()})

	_, err := fixture.service.ExtractCriteria(context.Background(), fixture.rubricID, fixture.userID, dto.ExtractCriteriaRequest{FilePath: fixture.userID.String() + "/missing.txt"})
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestExtractCriteriaRejectsForeignFilePathOverride(t *testing.T) {
	fixture := newCriteriaFixture(t, &fakeAIClient{extractRaw: extractedCriteriaPayload()})

	victimKey := uuid.NewString() + "/secret-rubric.txt"
	secret := strings.Repeat("confidential grading criteria belonging to another user. ", 2)
	require.NoError(t, fixture.store.Put(context.Background(), "rubrics", victimKey, strings.NewReader(secret), int64(len(secret)), "text/plain"))

	_, err := fixture.service.ExtractCriteria(context.Background(), fixture.rubricID, fixture.userID, dto.ExtractCriteriaRequest{FilePath: victimKey})
	require.ErrorIs(t, err, ErrFileNotFound)
	require.Zero(t, fixture.store.fetches)
}

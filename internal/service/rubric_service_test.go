package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gradelab/gradelab-api/internal/dto"
	"github.com/gradelab/gradelab-api/internal/models"
)

type rubricFixture struct {
	userID   uuid.UUID
	rubrics  *memoryRubricRepo
	profiles *memoryProfileRepo
	store    *fakeObjectStore
	service  RubricService
}

func newRubricFixture(t *testing.T) *rubricFixture {
	t.Helper()

	rubrics := newMemoryRubricRepo()
	profiles := newMemoryProfileRepo()
	store := newFakeObjectStore()

	svc := NewRubricService(
		rubrics, profiles, store, "rubrics", 1024,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.New(io.Discard),
	)

	return &rubricFixture{
		userID:   uuid.New(),
		rubrics:  rubrics,
		profiles: profiles,
		store:    store,
		service:  svc,
	}
}

func (f *rubricFixture) seedRubric(t *testing.T, criteria []models.Criterion) uuid.UUID {
	t.Helper()

	rubricID := uuid.New()
	require.NoError(t, f.rubrics.Create(context.Background(), &models.Rubric{
		ID:       rubricID,
		UserID:   f.userID,
		Name:     "Essay Rubric",
		FilePath: f.userID.String() + "/rubric.txt",
		Criteria: mustJSON(criteria),
	}))

	return rubricID
}

func TestRubricCreateStoresDocumentAndRow(t *testing.T) {
	fixture := newRubricFixture(t)

	file := makeFileHeader(t, "rubric.txt", []byte(strings.Repeat("criterion line ", 5)))
	response, err := fixture.service.Create(context.Background(), fixture.userID, dto.RubricCreateRequest{Name: "Essay Rubric"}, file)
	require.NoError(t, err)
	require.Equal(t, "Essay Rubric", response.Name)
	require.Empty(t, response.Criteria)
	require.True(t, strings.HasPrefix(response.FilePath, fixture.userID.String()+"/"))

	_, err = fixture.store.Fetch(context.Background(), "rubrics", response.FilePath, 0)
	require.NoError(t, err)
}

func TestRubricCreateRejectsDisallowedExtension(t *testing.T) {
	fixture := newRubricFixture(t)

	file := makeFileHeader(t, "rubric.png", []byte{0x89, 0x50, 0x4e, 0x47})
	_, err := fixture.service.Create(context.Background(), fixture.userID, dto.RubricCreateRequest{Name: "Scan"}, file)
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
}

func TestRubricGetScopedToOwner(t *testing.T) {
	fixture := newRubricFixture(t)
	rubricID := fixture.seedRubric(t, nil)

	_, err := fixture.service.Get(context.Background(), rubricID, fixture.userID)
	require.NoError(t, err)

	_, err = fixture.service.Get(context.Background(), rubricID, uuid.New())
	require.ErrorIs(t, err, ErrRubricNotFound)
}

func TestRubricDeleteRemovesDocument(t *testing.T) {
	fixture := newRubricFixture(t)

	file := makeFileHeader(t, "rubric.txt", []byte("delete me soon"))
	created, err := fixture.service.Create(context.Background(), fixture.userID, dto.RubricCreateRequest{Name: "Old"}, file)
	require.NoError(t, err)

	require.NoError(t, fixture.service.Delete(context.Background(), created.ID, fixture.userID))
	require.Empty(t, fixture.store.objects)

	_, err = fixture.service.Get(context.Background(), created.ID, fixture.userID)
	require.ErrorIs(t, err, ErrRubricNotFound)
}

func TestCreateProfileValidatesSelectionSubset(t *testing.T) {
	fixture := newRubricFixture(t)
	rubricID := fixture.seedRubric(t, []models.Criterion{
		{ID: "c1", Name: "Thesis", Weight: 50},
		{ID: "c2", Name: "Evidence", Weight: 50},
	})

	profile, err := fixture.service.CreateProfile(context.Background(), rubricID, fixture.userID, dto.FocusProfileCreateRequest{
		Name:             "Thesis only",
		SelectedCriteria: []string{"c1"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, profile.SelectedCriteria)
	require.False(t, profile.IsDefault)

	_, err = fixture.service.CreateProfile(context.Background(), rubricID, fixture.userID, dto.FocusProfileCreateRequest{
		Name:             "Ghost",
		SelectedCriteria: []string{"c1", "ghost"},
	})
	require.ErrorIs(t, err, ErrSelectionNotInRubric)
}

func TestListProfilesRequiresOwnedRubric(t *testing.T) {
	fixture := newRubricFixture(t)
	rubricID := fixture.seedRubric(t, []models.Criterion{{ID: "c1", Name: "Thesis", Weight: 100}})

	_, err := fixture.service.CreateProfile(context.Background(), rubricID, fixture.userID, dto.FocusProfileCreateRequest{
		Name:             "All",
		SelectedCriteria: []string{"c1"},
	})
	require.NoError(t, err)

	profiles, err := fixture.service.ListProfiles(context.Background(), rubricID, fixture.userID)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	_, err = fixture.service.ListProfiles(context.Background(), rubricID, uuid.New())
	require.ErrorIs(t, err, ErrRubricNotFound)
}

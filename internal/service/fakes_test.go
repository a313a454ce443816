package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gradelab/gradelab-api/internal/dto"
	"github.com/gradelab/gradelab-api/internal/models"
	"github.com/gradelab/gradelab-api/internal/repository"
	"github.com/gradelab/gradelab-api/pkg/ai"
	"github.com/gradelab/gradelab-api/pkg/storage"
)

type memoryRubricRepo struct {
	mu      sync.Mutex
	rubrics map[uuid.UUID]models.Rubric
}

func newMemoryRubricRepo() *memoryRubricRepo {
	return &memoryRubricRepo{rubrics: make(map[uuid.UUID]models.Rubric)}
}

func (m *memoryRubricRepo) GetOwned(_ context.Context, id, userID uuid.UUID) (models.Rubric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rubric, ok := m.rubrics[id]
	if !ok || rubric.UserID != userID {
		return models.Rubric{}, gorm.ErrRecordNotFound
	}
	return rubric, nil
}

func (m *memoryRubricRepo) List(_ context.Context, userID uuid.UUID) ([]models.Rubric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Rubric, 0, len(m.rubrics))
	for _, rubric := range m.rubrics {
		if rubric.UserID == userID {
			out = append(out, rubric)
		}
	}
	return out, nil
}

func (m *memoryRubricRepo) Create(_ context.Context, rubric *models.Rubric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rubrics[rubric.ID] = *rubric
	return nil
}

func (m *memoryRubricRepo) ReplaceCriteria(_ context.Context, id uuid.UUID, criteria datatypes.JSON) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rubric, ok := m.rubrics[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rubric.Criteria = criteria
	m.rubrics[id] = rubric
	return nil
}

func (m *memoryRubricRepo) Delete(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rubric, ok := m.rubrics[id]
	if !ok || rubric.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(m.rubrics, id)
	return nil
}

type memoryProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]models.FocusProfile
}

func newMemoryProfileRepo() *memoryProfileRepo {
	return &memoryProfileRepo{profiles: make(map[uuid.UUID]models.FocusProfile)}
}

func (m *memoryProfileRepo) GetOwned(_ context.Context, id, userID uuid.UUID) (models.FocusProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[id]
	if !ok || profile.UserID != userID {
		return models.FocusProfile{}, gorm.ErrRecordNotFound
	}
	return profile, nil
}

func (m *memoryProfileRepo) ListByRubric(_ context.Context, rubricID, userID uuid.UUID) ([]models.FocusProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.FocusProfile, 0, len(m.profiles))
	for _, profile := range m.profiles {
		if profile.RubricID == rubricID && profile.UserID == userID {
			out = append(out, profile)
		}
	}
	return out, nil
}

func (m *memoryProfileRepo) Create(_ context.Context, profile *models.FocusProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.ID] = *profile
	return nil
}

func (m *memoryProfileRepo) ClearDefault(_ context.Context, rubricID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, profile := range m.profiles {
		if profile.RubricID == rubricID && profile.IsDefault {
			profile.IsDefault = false
			m.profiles[id] = profile
		}
	}
	return nil
}

type memorySubmissionRepo struct {
	mu            sync.Mutex
	submissions   map[uuid.UUID]models.Submission
	statusHistory map[uuid.UUID][]string
}

func newMemorySubmissionRepo() *memorySubmissionRepo {
	return &memorySubmissionRepo{
		submissions:   make(map[uuid.UUID]models.Submission),
		statusHistory: make(map[uuid.UUID][]string),
	}
}

func (m *memorySubmissionRepo) GetOwned(_ context.Context, id, userID uuid.UUID) (models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	submission, ok := m.submissions[id]
	if !ok || submission.UserID != userID {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (m *memorySubmissionRepo) List(_ context.Context, userID uuid.UUID, filter repository.SubmissionFilter) ([]models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Submission, 0, len(m.submissions))
	for _, submission := range m.submissions {
		if submission.UserID != userID {
			continue
		}
		if filter.Status != nil && submission.Status != *filter.Status {
			continue
		}
		if filter.AssignmentID != nil {
			if submission.AssignmentID == nil || *submission.AssignmentID != *filter.AssignmentID {
				continue
			}
		}
		out = append(out, submission)
	}
	return out, nil
}

func (m *memorySubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[submission.ID] = *submission
	return nil
}

func (m *memorySubmissionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	submission, ok := m.submissions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	submission.Status = status
	m.submissions[id] = submission
	m.statusHistory[id] = append(m.statusHistory[id], status)
	return nil
}

func (m *memorySubmissionRepo) Delete(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	submission, ok := m.submissions[id]
	if !ok || submission.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(m.submissions, id)
	return nil
}

func (m *memorySubmissionRepo) history(id uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.statusHistory[id]...)
}

type memoryResultRepo struct {
	mu      sync.Mutex
	results map[uuid.UUID]models.Result
}

func newMemoryResultRepo() *memoryResultRepo {
	return &memoryResultRepo{results: make(map[uuid.UUID]models.Result)}
}

func (m *memoryResultRepo) GetBySubmission(_ context.Context, submissionID, userID uuid.UUID) (models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[submissionID]
	if !ok || result.UserID != userID {
		return models.Result{}, gorm.ErrRecordNotFound
	}
	return result, nil
}

func (m *memoryResultRepo) ReplaceForSubmission(_ context.Context, result *models.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.SubmissionID] = *result
	return nil
}

func (m *memoryResultRepo) DeleteBySubmission(_ context.Context, submissionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.results, submissionID)
	return nil
}

type fakeLimiter struct {
	allow  bool
	checks int
}

func (f *fakeLimiter) Check(_ context.Context, _ uuid.UUID, _ string, _ int) bool {
	f.checks++
	return f.allow
}

type fakeObjectStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	fetchErr error
	fetches  int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) key(bucket, key string) string {
	return bucket + "/" + key
}

func (f *fakeObjectStore) Fetch(_ context.Context, bucket, key string, maxBytes int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	data, ok := f.objects[f.key(bucket, key)]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, storage.ErrObjectTooLarge
	}
	return data, nil
}

func (f *fakeObjectStore) Put(_ context.Context, bucket, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[f.key(bucket, key)] = data
	return nil
}

func (f *fakeObjectStore) Delete(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, f.key(bucket, key))
	return nil
}

type fakeAIClient struct {
	extractRaw json.RawMessage
	extractErr error
	gradeRaw   json.RawMessage
	gradeErr   error
	gradePanic bool
	transcript string
}

func (f *fakeAIClient) ExtractCriteria(_ context.Context, _ ai.ExtractionInput) (json.RawMessage, error) {
	return f.extractRaw, f.extractErr
}

func (f *fakeAIClient) Grade(_ context.Context, _ ai.GradingInput) (json.RawMessage, error) {
	if f.gradePanic {
		panic("model client corrupted state")
	}
	return f.gradeRaw, f.gradeErr
}

func (f *fakeAIClient) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return f.transcript, nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	tasks []GradingTask
	err   error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, task GradingTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeDispatcher) dispatched() []GradingTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GradingTask(nil), f.tasks...)
}

type fakeResultCache struct {
	mu          sync.Mutex
	invalidated []uuid.UUID
}

func (f *fakeResultCache) GetBySubmission(_ context.Context, _, _ uuid.UUID) (dto.ResultResponse, error) {
	return dto.ResultResponse{}, ErrResultNotFound
}

func (f *fakeResultCache) Invalidate(_ context.Context, submissionID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, submissionID)
}

// mustJSON is a test helper for building datatypes.JSON columns.
func mustJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(raw)
}

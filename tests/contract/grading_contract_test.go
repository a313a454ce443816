package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/gradelab/gradelab-api/internal/dto"
	"github.com/gradelab/gradelab-api/internal/handler"
	"github.com/gradelab/gradelab-api/internal/models"
)

type stubResultService struct {
	response dto.ResultResponse
}

func (s stubResultService) GetBySubmission(context.Context, uuid.UUID, uuid.UUID) (dto.ResultResponse, error) {
	return s.response, nil
}

func (s stubResultService) Invalidate(context.Context, uuid.UUID) {}

type stubSubmissionService struct{}

func (stubSubmissionService) Create(context.Context, uuid.UUID, dto.SubmissionCreateRequest, *multipart.FileHeader) (dto.SubmissionResponse, error) {
	return dto.SubmissionResponse{}, nil
}

func (stubSubmissionService) List(context.Context, uuid.UUID, dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	return nil, nil
}

func (stubSubmissionService) Get(context.Context, uuid.UUID, uuid.UUID) (dto.SubmissionResponse, error) {
	return dto.SubmissionResponse{}, nil
}

func (stubSubmissionService) Retry(context.Context, uuid.UUID, uuid.UUID, dto.GradeRequest) (dto.SubmissionResponse, error) {
	return dto.SubmissionResponse{}, nil
}

func (stubSubmissionService) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

type stubGradingService struct{}

func (stubGradingService) Grade(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (dto.GradeResponse, error) {
	return dto.GradeResponse{Success: true, OverallScore: 85}, nil
}

func TestGradingResultContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "grading_result.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	userID := uuid.New()
	submissionID := uuid.New()
	result := dto.ResultResponse{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		OverallScore: 85,
		CriteriaScores: []models.CriterionScore{
			{CriterionID: "c1", Score: 40, Rationale: "Strong thesis", Evidence: []string{"first paragraph"}},
			{CriterionID: "c2", Score: 45, Rationale: "Well sourced", Evidence: []string{}},
		},
		Strengths:    []string{"clear structure"},
		Improvements: []string{"expand the conclusion"},
		Confidence:   models.ConfidenceHigh,
		Flags:        []string{},
		CreatedAt:    time.Now().UTC(),
	}

	submissionHandler := handler.NewSubmissionHandler(
		stubSubmissionService{},
		stubGradingService{},
		stubResultService{response: result},
		zerolog.Nop(),
	)

	app := fiber.New()
	group := app.Group("/api/v1/submissions", func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})
	submissionHandler.Register(group)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/"+submissionID.String()+"/result", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

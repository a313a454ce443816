package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/gradelab/gradelab-api/internal/dto"
	"github.com/gradelab/gradelab-api/internal/handler"
	"github.com/gradelab/gradelab-api/internal/models"
)

type stubRubricService struct{}

func (stubRubricService) Create(context.Context, uuid.UUID, dto.RubricCreateRequest, *multipart.FileHeader) (dto.RubricResponse, error) {
	return dto.RubricResponse{}, nil
}

func (stubRubricService) List(context.Context, uuid.UUID) ([]dto.RubricResponse, error) {
	return nil, nil
}

func (stubRubricService) Get(context.Context, uuid.UUID, uuid.UUID) (dto.RubricResponse, error) {
	return dto.RubricResponse{}, nil
}

func (stubRubricService) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (stubRubricService) CreateProfile(context.Context, uuid.UUID, uuid.UUID, dto.FocusProfileCreateRequest) (dto.FocusProfileResponse, error) {
	return dto.FocusProfileResponse{}, nil
}

func (stubRubricService) ListProfiles(context.Context, uuid.UUID, uuid.UUID) ([]dto.FocusProfileResponse, error) {
	return nil, nil
}

type stubCriteriaService struct {
	response dto.ExtractCriteriaResponse
}

func (s stubCriteriaService) ExtractCriteria(context.Context, uuid.UUID, uuid.UUID, dto.ExtractCriteriaRequest) (dto.ExtractCriteriaResponse, error) {
	return s.response, nil
}

func TestRubricCriteriaContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "rubric_criteria.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	extraction := dto.ExtractCriteriaResponse{
		Success: true,
		Criteria: []models.Criterion{
			{ID: "c1", Name: "Thesis", Description: "Clear thesis statement", Weight: 40, Category: "content"},
			{ID: "c2", Name: "Evidence", Description: "Supporting evidence", Weight: 60, Category: "content"},
		},
	}

	rubricHandler := handler.NewRubricHandler(
		stubRubricService{},
		stubCriteriaService{response: extraction},
		zerolog.Nop(),
	)

	app := fiber.New()
	group := app.Group("/api/v1/rubrics", func(c *fiber.Ctx) error {
		c.Locals("user_id", uuid.New())
		return c.Next()
	})
	rubricHandler.Register(group)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rubrics/"+uuid.NewString()+"/extract-criteria", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
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

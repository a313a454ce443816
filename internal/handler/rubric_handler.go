package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gradelab/gradelab-api/internal/dto"
	"github.com/gradelab/gradelab-api/internal/extract"
	"github.com/gradelab/gradelab-api/internal/schema"
	"github.com/gradelab/gradelab-api/internal/service"
	"github.com/gradelab/gradelab-api/internal/utils"
	"github.com/gradelab/gradelab-api/pkg/ai"
)

// RubricHandler manages rubric, focus profile, and criteria extraction endpoints.
type RubricHandler struct {
	rubrics  service.RubricService
	criteria service.CriteriaService
	logger   zerolog.Logger
}

// NewRubricHandler builds a rubric handler instance.
func NewRubricHandler(rubrics service.RubricService, criteria service.CriteriaService, logger zerolog.Logger) *RubricHandler {
	return &RubricHandler{
		rubrics:  rubrics,
		criteria: criteria,
		logger:   logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *RubricHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Post("/:id/extract-criteria", h.extractCriteria)
	router.Get("/:id/focus-profiles", h.listProfiles)
	router.Post("/:id/focus-profiles", h.createProfile)
}

func (h *RubricHandler) list(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	rubrics, err := h.rubrics.List(c.Context(), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "rubrics retrieved", rubrics)
}

func (h *RubricHandler) create(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	payload := dto.RubricCreateRequest{Name: c.FormValue("name")}
	if subjectID, err := parseFormUUID(c, "subject_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	} else if subjectID != nil {
		payload.SubjectID = subjectID
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	rubric, err := h.rubrics.Create(c.Context(), userID, payload, file)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric created", rubric)
}

func (h *RubricHandler) get(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	rubric, err := h.rubrics.Get(c.Context(), id, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "rubric retrieved", rubric)
}

func (h *RubricHandler) delete(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.rubrics.Delete(c.Context(), id, userID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "rubric deleted", nil)
}

func (h *RubricHandler) extractCriteria(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ExtractCriteriaRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	response, err := h.criteria.ExtractCriteria(c.Context(), id, userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "criteria extracted", response)
}

func (h *RubricHandler) listProfiles(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	rubricID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	profiles, err := h.rubrics.ListProfiles(c.Context(), rubricID, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "focus profiles retrieved", profiles)
}

func (h *RubricHandler) createProfile(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	rubricID, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.FocusProfileCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	profile, err := h.rubrics.CreateProfile(c.Context(), rubricID, userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "focus profile created", profile)
}

func (h *RubricHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrRubricNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "rubric not found")
	case errors.Is(err, service.ErrFileNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "rubric document not found")
	case errors.Is(err, service.ErrRateLimited):
		return utils.SendError(c, fiber.StatusTooManyRequests, "rate limit exceeded, try again later")
	case errors.Is(err, ai.ErrRateLimited):
		return utils.SendError(c, fiber.StatusTooManyRequests, "grading model is saturated, try again later")
	case errors.Is(err, ai.ErrQuotaExceeded):
		return utils.SendError(c, fiber.StatusPaymentRequired, "model quota exhausted")
	case errors.Is(err, service.ErrFileTooLarge):
		return utils.SendError(c, fiber.StatusBadRequest, "document exceeds the size limit")
	case errors.Is(err, service.ErrUploadTypeNotAllowed),
		errors.Is(err, extract.ErrUnsupportedFileType):
		return utils.SendError(c, fiber.StatusBadRequest, "unsupported document type")
	case errors.Is(err, extract.ErrInsufficientContent):
		return utils.SendError(c, fiber.StatusBadRequest, "document contains too little text to process")
	case errors.Is(err, service.ErrSelectionNotInRubric):
		return utils.SendError(c, fiber.StatusBadRequest, "selected criteria must belong to the rubric")
	case errors.Is(err, schema.ErrInvalidPayload):
		requestLogger(h.logger, c).Error().Err(err).Msg("model response failed validation")
		return utils.SendError(c, fiber.StatusInternalServerError, "model returned an invalid response")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

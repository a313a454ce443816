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

// SubmissionHandler manages submission lifecycle and grading endpoints.
type SubmissionHandler struct {
	submissions service.SubmissionService
	grading     service.GradingService
	results     service.ResultService
	logger      zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(
	submissions service.SubmissionService,
	grading service.GradingService,
	results service.ResultService,
	logger zerolog.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		grading:     grading,
		results:     results,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Post("/:id/grade", h.grade)
	router.Post("/:id/retry", h.retry)
	router.Get("/:id/result", h.result)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	filter := dto.SubmissionFilter{}
	if assignmentID, err := parseQueryUUID(c, "assignment_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	} else if assignmentID != nil {
		filter.AssignmentID = assignmentID
	}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}

	submissions, err := h.submissions.List(c.Context(), userID, filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	payload := dto.SubmissionCreateRequest{StudentName: c.FormValue("student_name")}
	if assignmentID, err := parseFormUUID(c, "assignment_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	} else if assignmentID != nil {
		payload.AssignmentID = assignmentID
	}
	if profileID, err := parseFormUUID(c, "focus_profile_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	} else if profileID != nil {
		payload.FocusProfileID = profileID
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	submission, err := h.submissions.Create(c.Context(), userID, payload, file)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.submissions.Get(c.Context(), id, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.submissions.Delete(c.Context(), id, userID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission deleted", nil)
}

// grade runs the pipeline inline and blocks until a terminal state; the async
// path through upload dispatch exists for batch workloads, this one is for
// grading a single paper interactively.
func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.grading.Grade(c.Context(), id, payload.FocusProfileID, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission graded", response)
}

func (h *SubmissionHandler) retry(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.submissions.Retry(c.Context(), id, userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission requeued", submission)
}

func (h *SubmissionHandler) result(c *fiber.Ctx) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.results.GetBySubmission(c.Context(), id, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "result retrieved", result)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrProfileNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "focus profile not found")
	case errors.Is(err, service.ErrResultNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "result not available")
	case errors.Is(err, service.ErrFileNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission document not found")
	case errors.Is(err, service.ErrGradingInProgress):
		return utils.SendError(c, fiber.StatusConflict, "grading already in progress")
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
		return utils.SendError(c, fiber.StatusBadRequest, "document contains too little text to grade")
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

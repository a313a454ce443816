package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every endpoint returns; clients key off
// success before reading data.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// SendSuccess sends a 200 response wrapping data in the standard envelope.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success envelope with an explicit status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	if message == "" {
		message = "ok"
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendError sends a failure envelope. The message is what the client sees;
// anything sensitive belongs in the server-side log, not here.
func SendError(c *fiber.Ctx, status int, message string) error {
	if message == "" {
		message = "request failed"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
	})
}

package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every JSON endpoint returns. Data is omitted
// for error responses and for successes with nothing to report.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

func send(c *fiber.Ctx, status int, body APIResponse) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(body)
}

// SendSuccess writes a 200 response wrapping data in the standard envelope.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus writes a success envelope with an explicit status,
// used for 201 responses on resource creation.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}
	return send(c, status, APIResponse{Success: true, Data: data, Message: message})
}

// SendError writes an error envelope with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	if message == "" {
		message = "error"
	}
	return send(c, status, APIResponse{Success: false, Message: message})
}

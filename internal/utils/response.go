package utils

import "github.com/gofiber/fiber/v2"

// APIResponse describes the common structure for ops API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// SendSuccess sends a 200 JSON envelope.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a data envelope with the given status. Health
// reports use it to return a payload alongside 503.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return respond(c, status, status < fiber.StatusBadRequest, message, data)
}

// SendError sends an error envelope without data.
func SendError(c *fiber.Ctx, status int, message string) error {
	return respond(c, status, false, message, nil)
}

func respond(c *fiber.Ctx, status int, success bool, message string, data interface{}) error {
	if message == "" {
		message = "success"
		if !success {
			message = "error"
		}
	}

	return c.Status(status).JSON(APIResponse{
		Success: success,
		Data:    data,
		Message: message,
	})
}

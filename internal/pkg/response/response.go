// Package response writes the JSON envelope every API route answers with.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// SuccessBody is the envelope of a 2xx answer.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the envelope of every failed request.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"

	internalMessage = "Internal Server Error"
)

func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return send(c, fiber.StatusOK, message, data, metadata)
}

func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return send(c, fiber.StatusCreated, message, data, metadata)
}

// List answers with a slice and its size in metadata.total. Extra metadata keys are merged in.
func List[T any](c *fiber.Ctx, message string, items []T, extra fiber.Map) error {
	if items == nil {
		items = []T{}
	}
	meta := fiber.Map{"total": len(items)}
	for k, v := range extra {
		meta[k] = v
	}
	return send(c, fiber.StatusOK, message, items, meta)
}

func send(c *fiber.Ctx, status int, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(status).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error writes the error envelope. details defaults to an empty object.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    details,
		},
	})
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

// Invalid sends 400 with the per-field messages in error.details.
func Invalid(c *fiber.Ctx, fields map[string]string) error {
	return Error(c, "Validation failed", fiber.StatusBadRequest, fields)
}

// Internal hides the cause; callers log it first.
func Internal(c *fiber.Ctx) error {
	return Error(c, internalMessage, fiber.StatusInternalServerError, nil)
}

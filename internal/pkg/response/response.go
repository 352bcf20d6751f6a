package response

import (
	"errors"

	"handyhub-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
)

// SuccessBody is the standardized success JSON shape.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the standardized error JSON shape.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail is the nested error object.
type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

const statusSuccess = "success"
const statusError = "error"

// Success sends a 200 OK response with the standard success format.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusOK).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// SuccessCreated sends a 201 Created response with the standard success format.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusCreated).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error sends a response with the standard error format.
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

// Unauthorized sends 401 with the same shape as other errors (status "error", error.message).
// Use this for auth middleware so all errors are consistent.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

// StatusFor maps an engine error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrClaimNotFound),
		errors.Is(err, domain.ErrProfileNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrNotAssignedToCaller):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrBidTooLow),
		errors.Is(err, domain.ErrInsufficientQuantity),
		errors.Is(err, domain.ErrRedemptionLimitReached):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAuctionClosed),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrNotOpen),
		errors.Is(err, domain.ErrStillRunning),
		errors.Is(err, domain.ErrNotInProgress):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// FromError sends err in the standard error format. Validation failures
// carry the offending field in details; unexpected errors are not echoed.
func FromError(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	var details interface{}
	var ve *domain.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		details = map[string]interface{}{"field": ve.Field, "reason": ve.Reason}
	}
	message := err.Error()
	if code == fiber.StatusInternalServerError {
		message = "Internal Server Error"
	}
	return Error(c, message, code, details)
}

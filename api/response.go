package api

import (
	"errors"

	"gigmatch/auth"
	"gigmatch/job"
	"gigmatch/profile"

	"github.com/gofiber/fiber/v2"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DevMessage string `json:"dev_message,omitempty"`
	Data       any    `json:"data,omitempty"`
}

func respond(c *fiber.Ctx, code int, message string, data any) error {
	return c.Status(code).JSON(envelope{Success: true, Message: message, Data: data})
}

// requestError is a malformed request caught before reaching a service.
type requestError struct {
	Field string
	Msg   string
}

func (e *requestError) Error() string {
	if e.Field == "" {
		return "api: invalid request: " + e.Msg
	}
	return "api: invalid " + e.Field + ": " + e.Msg
}

func badRequest(field, msg string) error {
	return &requestError{Field: field, Msg: msg}
}

// statusFor maps domain errors to an HTTP status and a client-facing message.
func statusFor(err error) (int, string) {
	var (
		reqErr     *requestError
		profileErr *profile.ValidationError
		jobErr     *job.ValidationError
		fiberErr   *fiber.Error
	)
	switch {
	case errors.As(err, &reqErr), errors.As(err, &profileErr), errors.As(err, &jobErr):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidRole):
		return fiber.StatusBadRequest, err.Error()

	case errors.Is(err, auth.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, "invalid phone, password or role"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrSessionRevoked):
		return fiber.StatusUnauthorized, "authentication required"
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, job.ErrNotOwner):
		return fiber.StatusForbidden, "forbidden"

	case errors.Is(err, profile.ErrWorkerNotFound),
		errors.Is(err, profile.ErrEmployerNotFound),
		errors.Is(err, job.ErrNotFound),
		errors.Is(err, job.ErrApplicationNotFound),
		errors.Is(err, job.ErrUnknownParty):
		return fiber.StatusNotFound, err.Error()

	case errors.Is(err, profile.ErrDuplicatePhone),
		errors.Is(err, job.ErrDuplicateApplication),
		errors.Is(err, job.ErrAlreadyPaid):
		return fiber.StatusConflict, err.Error()

	case errors.Is(err, job.ErrInvalidTransition),
		errors.Is(err, job.ErrIneligible),
		errors.Is(err, job.ErrNotOpen),
		errors.Is(err, job.ErrJobClosed),
		errors.Is(err, job.ErrNotCompleted):
		return fiber.StatusUnprocessableEntity, err.Error()

	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	}
	return fiber.StatusInternalServerError, "internal server error"
}

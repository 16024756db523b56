package serverutils

import (
	"errors"

	"docflash-be/internal/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON
// envelope with a status code derived from the error type.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}

func StatusFor(err error) int {
	var (
		fiberErr       *fiber.Error
		validationErr  *apperr.ValidationError
		unsupportedErr *apperr.UnsupportedFormatError
		queueErr       *apperr.QueueError
		parseErr       *apperr.ParseError
		timeoutErr     *apperr.TimeoutError
	)

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErr):
		if validationErr.NotFound {
			return fiber.StatusNotFound
		}
		if validationErr.Conflict {
			return fiber.StatusConflict
		}
		return fiber.StatusBadRequest
	case errors.As(err, &unsupportedErr):
		return fiber.StatusUnsupportedMediaType
	case errors.As(err, &queueErr):
		switch queueErr.Kind {
		case apperr.QueueNotFound:
			return fiber.StatusNotFound
		case apperr.QueueConflict:
			return fiber.StatusConflict
		}
		return fiber.StatusServiceUnavailable
	case errors.As(err, &parseErr):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &timeoutErr):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

package middlewares

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"restaurant-backend/services"
)

// StatusFor maps an engine error kind to its HTTP status.
func StatusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindInvalidState:
		return fiber.StatusConflict
	case services.KindInvariant, services.KindValidation:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler centralizes error responses and keeps messages sanitized.
// Every body has the shape {success:false, message, errors}.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		// 1) Fiber errors (use their status code + message)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fail(c, fe.Code, fe.Message, nil)
		}

		// 2) Validation errors (422 + per-field info)
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return fail(c, fiber.StatusUnprocessableEntity, "validation failed", ValidationFields(ve))
		}

		// 3) Engine errors carry their own kind; unexpected ones were logged by the service
		if se, ok := services.AsError(err); ok {
			status := StatusFor(se.Kind)
			if status == fiber.StatusInternalServerError {
				return fail(c, status, se.Message, nil)
			}
			return fail(c, status, se.Message, se.Fields())
		}

		// 4) Unknown errors (500)
		log.Error("internal error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "internal server error", nil)
	}
}

func fail(c *fiber.Ctx, status int, msg string, fields map[string][]string) error {
	if fields == nil {
		fields = map[string][]string{}
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": msg,
		"errors":  fields,
	})
}

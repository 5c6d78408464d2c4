package serverutils

import (
	"errors"

	"docchat-client/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps an error kind to the HTTP status the bridge answers with.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	kind, ok := apperror.KindOf(err)
	if !ok {
		return fiber.StatusInternalServerError
	}
	switch kind {
	case apperror.KindValidation:
		if errors.Is(err, apperror.ErrNoIdentity) {
			return fiber.StatusUnauthorized
		}
		if errors.Is(err, apperror.ErrSessionNotFound) {
			return fiber.StatusNotFound
		}
		return fiber.StatusBadRequest
	case apperror.KindStoreUnavailable:
		return fiber.StatusServiceUnavailable
	case apperror.KindUploadFailed, apperror.KindReplyFailed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(ctx *fiber.Ctx, err error) error {
	code := StatusFor(err)
	body := ErrorResponse(code, err.Error())
	if kind, ok := apperror.KindOf(err); ok {
		body.Data = fiber.Map{"kind": kind}
	}
	return ctx.Status(code).JSON(body)
}

// ErrorHandler is installed as fiber's ErrorHandler for errors raised outside
// the middleware chain (routing, body limits).
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	return writeError(ctx, err)
}

func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return writeError(ctx, err)
	}
}

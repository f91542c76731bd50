package handlers

import (
	"github.com/gofiber/fiber/v2"

	"contagem/internal/apperr"
	applog "contagem/internal/log"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return fiber.StatusBadRequest
	case apperr.PermissionDenied:
		return fiber.StatusForbidden
	case apperr.NotFound:
		return fiber.StatusNotFound
	case apperr.Conflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusServiceUnavailable
	}
}

// apiError logs err in full and answers with its safe message only.
func apiError(c *fiber.Ctx, action string, err error) error {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	c.Status(status)
	if kind == apperr.Validation {
		applog.Security(c, "validation.fail", map[string]any{"action": action, "err": err.Error()})
	} else {
		applog.Error(c, action+".fail", err, nil)
	}
	return c.JSON(fiber.Map{"error": apperr.SafeMessage(err), "kind": kind})
}

func badRequest(c *fiber.Ctx, field, msg string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "kind": apperr.Validation})
}

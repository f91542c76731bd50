package handlers

import (
	"strings"

	applog "contagem/internal/log"
	"contagem/internal/services"

	"github.com/gofiber/fiber/v2"
)

func RequireAdmin(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies("sid")
		if sid == "" {
			return deny(c, fiber.StatusUnauthorized)
		}
		u, err := auth.CurrentUser(sid)
		if err != nil || u == nil {
			return deny(c, fiber.StatusUnauthorized)
		}
		c.Locals("user", u)
		if u.Role != "ADMIN" {
			applog.Security(c, "access.denied.admin", map[string]any{"sid": sid})
			return deny(c, fiber.StatusForbidden)
		}
		return c.Next()
	}
}

// RequireUser enforces that an operator is logged in. Pages redirect to the
// login form, API calls get a 401.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies("sid")
		if sid == "" {
			return deny(c, fiber.StatusUnauthorized)
		}
		u, err := auth.CurrentUser(sid)
		if err != nil || u == nil {
			return deny(c, fiber.StatusUnauthorized)
		}
		c.Locals("user", u)
		return c.Next()
	}
}

func deny(c *fiber.Ctx, status int) error {
	if strings.HasPrefix(c.Path(), "/api/") {
		msg := "Faça login para continuar"
		if status == fiber.StatusForbidden {
			msg = "Acesso negado"
		}
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}
	if status == fiber.StatusForbidden {
		return c.Status(status).Render("notfound", fiber.Map{"Message": "Acesso negado"})
	}
	return c.Redirect("/login")
}

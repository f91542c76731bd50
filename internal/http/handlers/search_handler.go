package handlers

import (
	"strconv"
	"strings"

	"contagem/internal/apperr"
	"contagem/internal/log"
	"contagem/internal/services"
	"contagem/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type SearchHandler struct {
	Catalog *services.CatalogService
}

// GET /api/v1/catalog/search?q=&limit=
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	rawQ := c.Query("q")
	if !validate.Searchable(rawQ) {
		// typing in progress: nothing to show yet, not an error
		return c.JSON(fiber.Map{"q": strings.TrimSpace(rawQ), "results": []any{}, "count": 0, "hint": apperr.MsgShortQuery})
	}
	limit := 0
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			return badRequest(c, "limit", "Limite inválido")
		}
		limit = n
	}

	results, err := h.Catalog.Search(c.UserContext(), rawQ, limit)
	if err != nil {
		return apiError(c, "catalog.search", err)
	}
	return c.JSON(fiber.Map{"q": strings.TrimSpace(rawQ), "results": results, "count": len(results)})
}

// GET /api/v1/catalog/code/:code
func (h *SearchHandler) ByCode(c *fiber.Ctx) error {
	code := c.Params("code")
	e, err := h.Catalog.FindByCode(c.UserContext(), code)
	if err != nil {
		return apiError(c, "catalog.code", err)
	}
	if e == nil {
		log.Info(c, "catalog.code.miss", map[string]any{"code": code})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": apperr.MsgNoProduct, "kind": apperr.NotFound})
	}
	return c.JSON(e)
}

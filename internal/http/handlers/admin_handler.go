package handlers

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"contagem/internal/apperr"
	"contagem/internal/catalogio"
	applog "contagem/internal/log"
	"contagem/internal/repos"
	"contagem/internal/services"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	Catalog *repos.CatalogRepo
	Recent  *services.RecentService
}

// POST /api/v1/admin/catalog/import (multipart, field "file")
func (h *AdminHandler) ImportCatalog(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file", "Envie a planilha do catálogo")
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".xlsx") {
		return badRequest(c, "file", "Somente arquivos .xlsx")
	}
	f, err := fh.Open()
	if err != nil {
		applog.Error(c, "admin.catalog.import.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": apperr.MsgGeneric})
	}
	defer f.Close()

	res, err := catalogio.ImportCatalog(c.UserContext(), f, h.Catalog)
	if err != nil {
		applog.Error(c, "admin.catalog.import.fail", err, map[string]any{"file": fh.Filename, "imported": res.Imported})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    "Não foi possível importar a planilha",
			"imported": res.Imported,
		})
	}
	applog.Audit(c, "admin.catalog.import", map[string]any{"file": fh.Filename, "imported": res.Imported, "skipped": len(res.Skipped)})
	return c.JSON(fiber.Map{"imported": res.Imported, "skipped_rows": res.Skipped})
}

// GET /api/v1/counts/export
func (h *AdminHandler) ExportCounts(c *fiber.Ctx) error {
	rows, err := h.Recent.All(c.UserContext())
	if err != nil {
		return apiError(c, "count.export", err)
	}
	var buf bytes.Buffer
	if err := catalogio.ExportCounts(&buf, rows); err != nil {
		applog.Error(c, "count.export.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": apperr.MsgGeneric})
	}
	name := fmt.Sprintf("contagem-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	applog.Audit(c, "count.export", map[string]any{"rows": len(rows)})
	return c.Send(buf.Bytes())
}

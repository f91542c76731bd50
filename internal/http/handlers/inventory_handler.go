package handlers

import (
	"contagem/internal/apperr"
	"contagem/internal/log"
	"contagem/internal/services"
	"contagem/internal/validate"

	"github.com/gofiber/fiber/v2"
)

// InventoryHandler is the count API: registration, the recent-entries table
// and its edits.
type InventoryHandler struct {
	Catalog  *services.CatalogService
	Register *services.RegistrationService
	Recent   *services.RecentService
	Stations *Stations
}

type countForm struct {
	Code        string `json:"code" form:"code"`
	Barcode     string `json:"barcode" form:"barcode"`
	Description string `json:"description" form:"description"`
	Qty         string `json:"qty" form:"qty"`
}

type qtyForm struct {
	Qty string `json:"qty" form:"qty"`
}

// POST /api/v1/counts
func (h *InventoryHandler) Submit(c *fiber.Ctx) error {
	var f countForm
	if err := c.BodyParser(&f); err != nil {
		return badRequest(c, "body", apperr.MsgInvalid)
	}
	if _, ok := validate.Qty(f.Qty); !ok {
		return badRequest(c, "qty", apperr.MsgBadQty)
	}
	e, err := h.Catalog.FindByCode(c.UserContext(), f.Code)
	if err != nil {
		return apiError(c, "count.submit", err)
	}
	if e == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": apperr.MsgNoProduct, "kind": apperr.NotFound})
	}
	barcode, _ := validate.Code(f.Barcode)

	st := h.Stations.Get(sessionID(c))
	t, err := h.Register.SubmitExisting(*e, f.Qty, barcode, st.Inbox)
	if err != nil {
		return apiError(c, "count.submit", err)
	}
	log.Audit(c, "count.submit", map[string]any{"ticket": t.ID, "product": e.Code, "qty": t.Quantity})
	return c.Status(fiber.StatusAccepted).JSON(t)
}

// POST /api/v1/counts/new
func (h *InventoryHandler) SubmitNew(c *fiber.Ctx) error {
	var f countForm
	if err := c.BodyParser(&f); err != nil {
		return badRequest(c, "body", apperr.MsgInvalid)
	}
	st := h.Stations.Get(sessionID(c))
	t, err := h.Register.SubmitNew(f.Description, f.Qty, st.Inbox)
	if err != nil {
		return apiError(c, "count.submit_new", err)
	}
	log.Audit(c, "count.submit_new", map[string]any{"ticket": t.ID, "qty": t.Quantity})
	return c.Status(fiber.StatusAccepted).JSON(t)
}

// GET /api/v1/counts/recent?limit=
func (h *InventoryHandler) RecentList(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	rows, err := h.Recent.List(c.UserContext(), limit)
	if err != nil {
		return apiError(c, "count.recent", err)
	}
	return c.JSON(fiber.Map{"entries": rows, "count": len(rows)})
}

// PATCH /api/v1/counts/:id
func (h *InventoryHandler) Edit(c *fiber.Ctx) error {
	id, ok := validate.RecordID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", apperr.MsgNotFound)
	}
	var f qtyForm
	if err := c.BodyParser(&f); err != nil {
		return badRequest(c, "body", apperr.MsgInvalid)
	}
	qty, err := h.Recent.EditQuantity(c.UserContext(), id, f.Qty)
	if err != nil {
		return apiError(c, "count.edit", err)
	}
	log.Audit(c, "count.edit", map[string]any{"id": id, "qty": qty})
	return c.JSON(fiber.Map{"id": id, "quantity": qty, "message": "Quantidade atualizada"})
}

// DELETE /api/v1/counts/:id
func (h *InventoryHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.RecordID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", apperr.MsgNotFound)
	}
	if err := h.Recent.Delete(c.UserContext(), id); err != nil {
		return apiError(c, "count.delete", err)
	}
	log.Audit(c, "count.delete", map[string]any{"id": id})
	return c.JSON(fiber.Map{"id": id, "message": "Registro excluído"})
}

// GET /api/v1/notifications
func (h *InventoryHandler) Notifications(c *fiber.Ctx) error {
	st := h.Stations.Get(sessionID(c))
	return c.JSON(fiber.Map{"notifications": st.Inbox.Drain()})
}

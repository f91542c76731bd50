package handlers

import (
	"errors"

	"contagem/internal/apperr"
	"contagem/internal/log"
	"contagem/internal/services"
	"contagem/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// WorkflowHandler drives the operator's counting workflow from the counting
// page. Each call answers with the resulting snapshot.
type WorkflowHandler struct {
	Catalog  *services.CatalogService
	Stations *Stations
}

func (h *WorkflowHandler) station(c *fiber.Ctx) *Station { return h.Stations.Get(sessionID(c)) }

// GET /api/v1/workflow
func (h *WorkflowHandler) Get(c *fiber.Ctx) error {
	return c.JSON(h.station(c).Workflow.Snapshot())
}

type queryForm struct {
	Q string `json:"q" form:"q"`
}

// POST /api/v1/workflow/query
func (h *WorkflowHandler) Query(c *fiber.Ctx) error {
	var f queryForm
	if err := c.BodyParser(&f); err != nil {
		return badRequest(c, "body", apperr.MsgInvalid)
	}
	snap, err := h.station(c).Workflow.Search(c.UserContext(), f.Q)
	if err != nil {
		return h.fail(c, "workflow.query", err)
	}
	return c.JSON(snap)
}

type selectForm struct {
	Code string `json:"code" form:"code"`
}

// POST /api/v1/workflow/select
func (h *WorkflowHandler) Select(c *fiber.Ctx) error {
	var f selectForm
	if err := c.BodyParser(&f); err != nil {
		return badRequest(c, "body", apperr.MsgInvalid)
	}
	e, err := h.Catalog.FindByCode(c.UserContext(), f.Code)
	if err != nil {
		return apiError(c, "workflow.select", err)
	}
	if e == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": apperr.MsgNoProduct, "kind": apperr.NotFound})
	}
	wf := h.station(c).Workflow
	if err := wf.Select(*e); err != nil {
		return h.fail(c, "workflow.select", err)
	}
	return c.JSON(wf.Snapshot())
}

// POST /api/v1/workflow/confirm
func (h *WorkflowHandler) Confirm(c *fiber.Ctx) error {
	var f qtyForm
	if err := c.BodyParser(&f); err != nil {
		return badRequest(c, "body", apperr.MsgInvalid)
	}
	wf := h.station(c).Workflow
	t, err := wf.Confirm(f.Qty)
	if err != nil {
		return h.fail(c, "workflow.confirm", err)
	}
	log.Audit(c, "count.submit", map[string]any{"ticket": t.ID, "qty": t.Quantity, "via": "workflow"})
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ticket": t, "workflow": wf.Snapshot()})
}

// POST /api/v1/workflow/cancel
func (h *WorkflowHandler) Cancel(c *fiber.Ctx) error {
	wf := h.station(c).Workflow
	wf.Cancel()
	return c.JSON(wf.Snapshot())
}

func (h *WorkflowHandler) fail(c *fiber.Ctx, action string, err error) error {
	if errors.Is(err, workflow.ErrBadTransition) {
		log.Info(c, action+".conflict", nil)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":    "Ação indisponível neste momento",
			"workflow": h.station(c).Workflow.Snapshot(),
		})
	}
	return apiError(c, action, err)
}

package handlers

import (
	"contagem/internal/apperr"
	"contagem/internal/log"
	"contagem/internal/services"

	"github.com/gofiber/fiber/v2"
)

type PageHandler struct {
	Recent   *services.RecentService
	Stations *Stations
}

// GET /
func (h *PageHandler) Home(c *fiber.Ctx) error {
	rows, err := h.Recent.List(c.UserContext(), 0)
	if err != nil {
		log.Error(c, "home.recent.fail", err, nil)
		return render(c, "home", fiber.Map{"Entries": nil, "Err": apperr.SafeMessage(err)})
	}
	return render(c, "home", fiber.Map{"Entries": rows})
}

// GET /contagem
func (h *PageHandler) Counting(c *fiber.Ctx) error {
	st := h.Stations.Get(sessionID(c))
	return render(c, "contagem", fiber.Map{"Workflow": st.Workflow.Snapshot()})
}

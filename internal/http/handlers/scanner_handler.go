package handlers

import (
	"bytes"
	"errors"

	"contagem/internal/apperr"
	"contagem/internal/log"
	"contagem/internal/scanner"

	"github.com/gofiber/fiber/v2"
)

// ScannerHandler bridges the browser's camera to the station's scanner
// session. The page opens the session when the scanning dialog is shown,
// posts snapshots while it is open and closes it when the dialog goes away.
type ScannerHandler struct {
	Stations *Stations
}

func (h *ScannerHandler) station(c *fiber.Ctx) *Station { return h.Stations.Get(sessionID(c)) }

func (h *ScannerHandler) state(st *Station) fiber.Map {
	return fiber.Map{"active": st.Scanner.Active(), "torch": st.Camera.TorchState()}
}

type openForm struct {
	Torch bool `json:"torch" form:"torch"`
}

// POST /api/v1/scanner/open
func (h *ScannerHandler) Open(c *fiber.Ctx) error {
	var f openForm
	_ = c.BodyParser(&f)
	st := h.station(c)
	st.Camera.SetTorchCapability(f.Torch)
	if err := st.Scanner.Start(c.UserContext(), true); err != nil {
		return apiError(c, "scanner.open", err)
	}
	log.Info(c, "scanner.open", nil)
	return c.JSON(h.state(st))
}

// POST /api/v1/scanner/close
func (h *ScannerHandler) Close(c *fiber.Ctx) error {
	st := h.station(c)
	if err := st.Scanner.Start(c.UserContext(), false); err != nil {
		return apiError(c, "scanner.close", err)
	}
	return c.JSON(h.state(st))
}

// POST /api/v1/scanner/frame (body: one JPEG or PNG snapshot)
func (h *ScannerHandler) Frame(c *fiber.Ctx) error {
	st := h.station(c)
	body := c.Body()
	if len(body) == 0 {
		return badRequest(c, "frame", "Quadro vazio")
	}
	err := st.Camera.PushEncoded(bytes.NewReader(body))
	switch {
	case errors.Is(err, scanner.ErrNotStreaming):
		// the dialog was closed while this frame was in flight
		return c.Status(fiber.StatusConflict).JSON(h.state(st))
	case err != nil:
		return badRequest(c, "frame", "Quadro inválido")
	}
	return c.Status(fiber.StatusAccepted).JSON(h.state(st))
}

type permissionForm struct {
	State  string `json:"state" form:"state"`   // granted | denied | prompt | error
	Reason string `json:"reason" form:"reason"` // browser error name, e.g. NotReadableError
}

// POST /api/v1/scanner/permission
func (h *ScannerHandler) Permission(c *fiber.Ctx) error {
	var f permissionForm
	if err := c.BodyParser(&f); err != nil {
		return badRequest(c, "body", apperr.MsgInvalid)
	}
	st := h.station(c)
	switch f.State {
	case "granted":
		st.Camera.SetPermission(scanner.PermissionGranted)
	case "prompt":
		st.Camera.SetPermission(scanner.PermissionPrompt)
	case "denied":
		st.Camera.SetPermission(scanner.PermissionRefused)
		log.Security(c, "scanner.permission.denied", nil)
	case "error":
		st.Camera.ReportDeviceError(f.Reason)
		log.Info(c, "scanner.device.error", map[string]any{"reason": f.Reason})
	default:
		return badRequest(c, "state", apperr.MsgInvalid)
	}
	return c.JSON(h.state(st))
}

type torchForm struct {
	On bool `json:"on" form:"on"`
}

// POST /api/v1/scanner/torch
func (h *ScannerHandler) Torch(c *fiber.Ctx) error {
	var f torchForm
	if err := c.BodyParser(&f); err != nil {
		return badRequest(c, "body", apperr.MsgInvalid)
	}
	st := h.station(c)
	switch err := st.Scanner.SetTorch(f.On); {
	case errors.Is(err, scanner.ErrTorchUnsupported):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Lanterna não suportada neste dispositivo"})
	case errors.Is(err, scanner.ErrNotStreaming):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Câmera fechada"})
	case err != nil:
		return apiError(c, "scanner.torch", err)
	}
	return c.JSON(h.state(st))
}

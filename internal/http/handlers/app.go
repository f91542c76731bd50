package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	"contagem/internal/config"
	applog "contagem/internal/log"
)

const msgServerError = "Algo deu errado. Tente novamente."

// ErrorHandler logs the failure and shows a friendly page without internals.
func ErrorHandler(c *fiber.Ctx, err error) error {
	applog.Error(c, "server.error", err, nil)
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok && fe.Code < 500 {
		code = fe.Code
	}
	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(code).JSON(fiber.Map{"error": msgServerError})
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msgServerError}); rerr != nil {
		return c.Status(code).SendString(msgServerError)
	}
	return nil
}

// unthrottled paths are polled or streamed by the counting page
func unthrottled(c *fiber.Ctx) bool {
	p := c.Path()
	return strings.HasPrefix(p, "/static/") ||
		p == "/api/v1/scanner/frame" ||
		p == "/api/v1/notifications" ||
		p == "/api/v1/workflow"
}

// csrfToken takes the token from the X-Csrf-Token header (fetch calls) or
// the csrf form field (HTML forms).
func csrfToken(c *fiber.Ctx) (string, error) {
	if tok := c.Get("X-Csrf-Token"); tok != "" {
		return tok, nil
	}
	return csrf.CsrfFromForm("csrf")(c)
}

// NewApp builds the web app with its middleware chain and every route.
func NewApp(cfg config.Config, d *Deps) *fiber.App {
	engine := html.New(cfg.TemplatesDir, ".html")

	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: ErrorHandler,
		BodyLimit:    2 << 20, // frames and catalog sheets
	})

	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	// attach user to context if logged in (for templates and log lines)
	app.Use(func(c *fiber.Ctx) error {
		if sid := c.Cookies("sid"); sid != "" {
			if u, err := d.Auth.CurrentUser(sid); err == nil && u != nil {
				c.Locals("user", u)
			}
		}
		return c.Next()
	})
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next:       unthrottled,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Muitas requisições, aguarde um instante"})
		},
	}))
	app.Use(csrf.New(csrf.Config{
		Extractor:      csrfToken,
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   false, // set true behind HTTPS
		ContextKey:     "csrf",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"err": err.Error()})
			if strings.HasPrefix(c.Path(), "/api/") {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Falha na verificação de segurança. Recarregue a página."})
			}
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Falha na verificação de segurança. Recarregue a página."})
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	Routes(app, d)
	return app
}

func Routes(app *fiber.App, d *Deps) {
	requireUser := RequireUser(d.Auth)

	// Auth (login throttled)
	app.Get("/login", d.AuthHandler.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).Render("login", fiber.Map{"Err": "Muitas tentativas. Tente novamente mais tarde."})
		},
	}), d.AuthHandler.Login)
	app.Post("/logout", d.AuthHandler.Logout)

	// Pages
	app.Get("/", requireUser, d.PageHandler.Home)
	app.Get("/contagem", requireUser, d.PageHandler.Counting)

	api := app.Group("/api/v1", requireUser)

	searchLimiter := limiter.New(limiter.Config{
		Max:        40,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|search"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.search.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Muitas buscas, aguarde um instante"})
		},
	})
	api.Get("/catalog/search", searchLimiter, d.SearchHandler.Search)
	api.Get("/catalog/code/:code", d.SearchHandler.ByCode)

	api.Post("/counts", d.InventoryHandler.Submit)
	api.Post("/counts/new", d.InventoryHandler.SubmitNew)
	api.Get("/counts/recent", d.InventoryHandler.RecentList)
	api.Get("/counts/export", d.AdminHandler.ExportCounts)
	api.Patch("/counts/:id", d.InventoryHandler.Edit)
	api.Delete("/counts/:id", d.InventoryHandler.Delete)
	api.Get("/notifications", d.InventoryHandler.Notifications)

	api.Get("/workflow", d.WorkflowHandler.Get)
	api.Post("/workflow/query", searchLimiter, d.WorkflowHandler.Query)
	api.Post("/workflow/select", d.WorkflowHandler.Select)
	api.Post("/workflow/confirm", d.WorkflowHandler.Confirm)
	api.Post("/workflow/cancel", d.WorkflowHandler.Cancel)

	api.Post("/scanner/open", d.ScannerHandler.Open)
	api.Post("/scanner/close", d.ScannerHandler.Close)
	api.Post("/scanner/frame", d.ScannerHandler.Frame)
	api.Post("/scanner/permission", d.ScannerHandler.Permission)
	api.Post("/scanner/torch", d.ScannerHandler.Torch)

	app.Post("/api/v1/admin/catalog/import", RequireAdmin(d.Auth), d.AdminHandler.ImportCatalog)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Rota não encontrada"})
		}
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Página não encontrada"})
	})
}

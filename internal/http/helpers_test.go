package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"contagem/internal/config"
	"contagem/internal/http/handlers"
	"contagem/internal/repos"
)

const (
	operatorEmail = "op@contagem.test"
	adminEmail    = "admin@contagem.test"
	testPassword  = "Contagem1!"
)

func testConfig() config.Config {
	return config.Config{
		DBDriver:       repos.DriverSQLite,
		DBDSN:          ":memory:",
		TemplatesDir:   "../../web/templates",
		ScanDebounce:   1500 * time.Millisecond,
		SearchLimit:    5,
		RecentLimit:    15,
		PersistTimeout: 5 * time.Second,
	}
}

func newTestApp(t *testing.T) (*fiber.App, *handlers.Deps) {
	t.Helper()
	cfg := testConfig()
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	users := repos.NewUserRepo(db)
	if _, err := users.EnsureOperator(operatorEmail, "Operador", testPassword, "OPERATOR"); err != nil {
		t.Fatalf("seed operator: %v", err)
	}
	if _, err := users.EnsureOperator(adminEmail, "Admin", testPassword, "ADMIN"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	deps := handlers.NewDeps(db, cfg)
	app := handlers.NewApp(cfg, deps)
	t.Cleanup(func() {
		deps.Shutdown()
		_ = db.Close()
	})
	return app, deps
}

func extractCookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func fetchCSRF(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", "/login", nil))
	if err != nil {
		t.Fatal(err)
	}
	tok := extractCookie(resp, "csrf_")
	if tok == "" {
		t.Fatal("csrf token missing")
	}
	return tok
}

func postLogin(t *testing.T, app *fiber.App, csrfTok, email, password string) *http.Response {
	t.Helper()
	form := url.Values{"csrf": {csrfTok}, "email": {email}, "password": {password}}
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: csrfTok})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// client is a logged-in browser: sid plus CSRF cookie and header.
type client struct {
	t    *testing.T
	app  *fiber.App
	sid  string
	csrf string
}

func login(t *testing.T, app *fiber.App, email string) *client {
	t.Helper()
	tok := fetchCSRF(t, app)
	resp := postLogin(t, app, tok, email, testPassword)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("login %s: status %d", email, resp.StatusCode)
	}
	sid := extractCookie(resp, "sid")
	if sid == "" {
		t.Fatal("sid cookie missing after login")
	}
	return &client{t: t, app: app, sid: sid, csrf: tok}
}

func (c *client) request(method, path, contentType string, body io.Reader) *http.Response {
	c.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Csrf-Token", c.csrf)
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: c.csrf})
	if c.sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: c.sid})
	}
	resp, err := c.app.Test(req, 5000)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *client) do(method, path string, body any) *http.Response {
	c.t.Helper()
	if body == nil {
		return c.request(method, path, "", nil)
	}
	b, err := json.Marshal(body)
	if err != nil {
		c.t.Fatal(err)
	}
	return c.request(method, path, fiber.MIMEApplicationJSON, bytes.NewReader(b))
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d; body=%s", resp.StatusCode, want, body)
	}
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	UserID string         `json:"user_id"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	b  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf bytes.Buffer
	var mu sync.Mutex
	oldW := log.Writer()
	oldFlags := log.Flags()
	log.SetOutput(&lockedBuf{b: &buf, mu: &mu})
	log.SetFlags(0)
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	mu.Lock()
	raw := buf.String()
	mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}

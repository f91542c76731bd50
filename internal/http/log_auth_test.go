package handlers_test

import (
	"net/http"
	"testing"
)

func TestLoginFailureIsLoggedWithoutPassword(t *testing.T) {
	app, _ := newTestApp(t)
	tok := fetchCSRF(t, app)

	entries := captureLogs(t, func() {
		postLogin(t, app, tok, operatorEmail, "Errada1!x")
		postLogin(t, app, tok, "not-an-email", "Errada1!x")
	})
	n := 0
	for _, e := range entries {
		if e.Action != "auth.login.fail" {
			continue
		}
		n++
		if e.Level != "warn" {
			t.Fatalf("level = %q", e.Level)
		}
		for _, v := range e.Fields {
			if s, ok := v.(string); ok && s == "Errada1!x" {
				t.Fatal("password leaked into logs")
			}
		}
	}
	if n != 2 {
		t.Fatalf("expected 2 auth.login.fail entries, got %d", n)
	}
}

func TestLoginSuccessIsAudited(t *testing.T) {
	app, _ := newTestApp(t)
	tok := fetchCSRF(t, app)
	entries := captureLogs(t, func() {
		if resp := postLogin(t, app, tok, operatorEmail, testPassword); resp.StatusCode != http.StatusFound {
			t.Fatalf("status %d", resp.StatusCode)
		}
	})
	e, ok := findLog(entries, "auth.login.success")
	if !ok || e.Level != "audit" {
		t.Fatalf("expected audit auth.login.success, got %+v", entries)
	}
}

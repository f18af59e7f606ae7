package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuth_GateDisabledWhenPasswordEmpty(t *testing.T) {
	auth := newAuthService("   ", "secret")
	if auth.gateEnabled() {
		t.Fatalf("expected gate disabled for blank password")
	}

	req := httptest.NewRequest("GET", "/", nil)
	if !isAuthenticated(req, auth) {
		t.Fatalf("expected all requests to pass when gate disabled")
	}
}

func TestAuth_PasswordValidation(t *testing.T) {
	auth := newAuthService("open-sesame", "secret")

	if !auth.validatePassword("open-sesame") {
		t.Fatalf("expected correct password to validate")
	}
	if auth.validatePassword("wrong") {
		t.Fatalf("expected wrong password to fail")
	}
	if auth.validatePassword("") {
		t.Fatalf("expected empty password to fail against a set gate")
	}
}

func TestAuth_SessionRoundTrip(t *testing.T) {
	auth := newAuthService("open-sesame", "secret")

	rec := httptest.NewRecorder()
	auth.setSessionCookie(rec)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("session cookie was not set")
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	if !isAuthenticated(req, auth) {
		t.Fatalf("expected signed session to authenticate")
	}
}

func TestAuth_TamperedSessionRejected(t *testing.T) {
	auth := newAuthService("open-sesame", "secret")
	value := auth.createSessionValue()

	tampered := value[:len(value)-2] + "00"
	if tampered != value && auth.verifySessionValue(tampered) {
		t.Fatalf("expected tampered signature to fail verification")
	}
	if auth.verifySessionValue("no-dot-here") {
		t.Fatalf("expected malformed value to fail verification")
	}

	other := newAuthService("open-sesame", "different-secret")
	if other.verifySessionValue(value) {
		t.Fatalf("expected session signed with another secret to fail")
	}
}

func TestAuthMiddleware_RedirectsToLogin(t *testing.T) {
	srv := &server{auth: newAuthService("open-sesame", "secret")}
	handler := srv.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/quotes", nil))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("expected redirect to /login, got %q", loc)
	}
}

func TestAuthMiddleware_AllowsLoginAndStatic(t *testing.T) {
	srv := &server{auth: newAuthService("open-sesame", "secret")}
	handler := srv.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/login", "/static/style.css"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected %s to pass without a session, got %d", path, rec.Code)
		}
	}
}

func TestSessionValueShape(t *testing.T) {
	auth := newAuthService("open-sesame", "secret")
	value := auth.createSessionValue()
	if strings.Count(value, ".") != 1 {
		t.Fatalf("expected payload.signature shape, got %q", value)
	}
}

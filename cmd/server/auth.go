package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
)

const sessionCookieName = "kcj_session"

// authService implements the shared-password gate. An empty password
// disables the gate: every request passes through.
type authService struct {
	password      string
	sessionSecret []byte
}

func newAuthService(password, sessionSecret string) *authService {
	return &authService{password: strings.TrimSpace(password), sessionSecret: []byte(sessionSecret)}
}

func (a *authService) gateEnabled() bool {
	return a.password != ""
}

func (a *authService) validatePassword(entered string) bool {
	return subtle.ConstantTimeCompare([]byte(a.password), []byte(entered)) == 1
}

func (a *authService) createSessionValue() string {
	payload := base64.RawURLEncoding.EncodeToString([]byte("quote-app"))
	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return payload + "." + signature
}

func (a *authService) verifySessionValue(value string) bool {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return false
	}

	payload := parts[0]
	signature := parts[1]

	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	if !hmac.Equal(provided, expected) {
		return false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return false
	}

	return len(decoded) > 0
}

func (a *authService) setSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    a.createSessionValue(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *authService) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func isAuthenticated(r *http.Request, auth *authService) bool {
	if !auth.gateEnabled() {
		return true
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return false
	}

	return auth.verifySessionValue(cookie.Value)
}

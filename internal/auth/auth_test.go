package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zysolutions/octodash/internal/config"
	"github.com/zysolutions/octodash/internal/sheets"
)

type fakeUsers struct {
	err error
}

func (f fakeUsers) Authenticate(ctx context.Context, email, password string) (*sheets.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if email == "ana@example.com" && password == "s3cret" {
		return &sheets.User{Email: email, FirstName: "Ana", LastName: "Ruiz", Company: "Acme"}, nil
	}
	return nil, sheets.ErrInvalidCredentials
}

func newTestManager(users Authenticator) (*Manager, clockwork.FakeClock) {
	fc := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	cfg := config.AuthConfig{CookieName: "sid", CookieMaxAge: 3600}
	return NewManager(cfg, users, fc), fc
}

func login(t *testing.T, m *Manager, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	m.HandleLogin(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestLoginSuccess(t *testing.T) {
	m, _ := newTestManager(fakeUsers{})

	rec := login(t, m, `{"email":"ana@example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Ana Ruiz"`)

	c := sessionCookie(t, rec)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, 3600, c.MaxAge)
	assert.Equal(t, 1, m.Sessions())
}

func TestLoginInvalidCredentials(t *testing.T) {
	m, _ := newTestManager(fakeUsers{})
	rec := login(t, m, `{"email":"ana@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, m.Sessions())
}

func TestLoginMissingFields(t *testing.T) {
	m, _ := newTestManager(fakeUsers{})
	assert.Equal(t, http.StatusBadRequest, login(t, m, `{"email":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, login(t, m, `not json`).Code)
}

func TestLoginDirectoryDown(t *testing.T) {
	m, _ := newTestManager(fakeUsers{err: errors.New("sheets timeout")})
	rec := login(t, m, `{"email":"ana@example.com","password":"s3cret"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRequireAuth(t *testing.T) {
	m, fc := newTestManager(fakeUsers{})
	cookie := sessionCookie(t, login(t, m, `{"email":"ana@example.com","password":"s3cret"}`))

	var seen *Session
	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/usage", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "ana@example.com", seen.Email)

	fc.Advance(2 * time.Hour)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	m, _ := newTestManager(fakeUsers{})
	cookie := sessionCookie(t, login(t, m, `{"email":"ana@example.com","password":"s3cret"}`))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	m.HandleLogout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, m.Sessions())
}

func TestUserInfo(t *testing.T) {
	m, _ := newTestManager(fakeUsers{})
	cookie := sessionCookie(t, login(t, m, `{"email":"ana@example.com","password":"s3cret"}`))

	rec := httptest.NewRecorder()
	m.HandleUserInfo(rec, httptest.NewRequest(http.MethodGet, "/auth/user", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	m.HandleUserInfo(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"company":"Acme"`)
}

func TestPurgeExpired(t *testing.T) {
	m, fc := newTestManager(fakeUsers{})
	login(t, m, `{"email":"ana@example.com","password":"s3cret"}`)
	fc.Advance(30 * time.Minute)
	login(t, m, `{"email":"ana@example.com","password":"s3cret"}`)

	fc.Advance(45 * time.Minute)
	assert.Equal(t, 1, m.PurgeExpired())
	assert.Equal(t, 1, m.Sessions())
}

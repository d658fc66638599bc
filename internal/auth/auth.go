package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/zysolutions/octodash/internal/config"
	"github.com/zysolutions/octodash/internal/metrics"
	"github.com/zysolutions/octodash/internal/pkg/httputil"
	"github.com/zysolutions/octodash/internal/pkg/logger"
	"github.com/zysolutions/octodash/internal/sheets"
)

// Authenticator checks a login against the user table.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*sheets.User, error)
}

// Session represents an authenticated user session
type Session struct {
	ID        string    `json:"-"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ctxKey struct{}

// SessionFromContext returns the session RequireAuth attached, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

// WithSession attaches a session to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// Manager handles email/password login against the spreadsheet user table
// and keeps sessions in memory.
type Manager struct {
	config    config.AuthConfig
	users     Authenticator
	clock     clockwork.Clock
	sessions  map[string]*Session
	sessionMu sync.RWMutex
}

// NewManager creates a new authentication manager
func NewManager(cfg config.AuthConfig, users Authenticator, clock clockwork.Clock) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "octodash_session"
	}
	if cfg.CookieMaxAge <= 0 {
		cfg.CookieMaxAge = 86400
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		config:   cfg,
		users:    users,
		clock:    clock,
		sessions: make(map[string]*Session),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin checks credentials and sets the session cookie.
func (m *Manager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.BadRequest(w, "email and password are required")
		return
	}

	user, err := m.users.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, sheets.ErrInvalidCredentials) {
		logger.Warn("Auth: failed login", "email", req.Email)
		httputil.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		logger.Error("Auth: user lookup failed", "error", err.Error())
		httputil.Error(w, http.StatusBadGateway, "user directory unavailable")
		return
	}

	session := m.createSession(user)
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   m.config.CookieMaxAge,
		HttpOnly: true,
		Secure:   m.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	logger.Info("Auth: user logged in", "email", user.Email)
	httputil.OK(w, map[string]interface{}{
		"authenticated": true,
		"user":          session,
	})
}

func (m *Manager) createSession(user *sheets.User) *Session {
	now := m.clock.Now()
	session := &Session{
		ID:        uuid.New().String(),
		Email:     user.Email,
		Name:      user.Name(),
		Company:   user.Company,
		CreatedAt: now,
		ExpiresAt: now.Add(m.config.MaxAge()),
	}

	m.sessionMu.Lock()
	m.sessions[session.ID] = session
	n := len(m.sessions)
	m.sessionMu.Unlock()
	metrics.ActiveSessions.Set(float64(n))

	return session
}

// HandleLogout logs out the user
func (m *Manager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(m.config.CookieName); err == nil {
		m.sessionMu.Lock()
		delete(m.sessions, cookie.Value)
		n := len(m.sessions)
		m.sessionMu.Unlock()
		metrics.ActiveSessions.Set(float64(n))
	}

	http.SetCookie(w, &http.Cookie{
		Name:   m.config.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	httputil.OK(w, map[string]bool{"ok": true})
}

// HandleUserInfo returns the current user's info as JSON
func (m *Manager) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	session := m.GetSession(r)
	if session == nil {
		httputil.JSON(w, http.StatusUnauthorized, map[string]interface{}{
			"authenticated": false,
		})
		return
	}
	httputil.OK(w, map[string]interface{}{
		"authenticated": true,
		"user":          session,
	})
}

// GetSession returns the session for the current request, or nil if not authenticated
func (m *Manager) GetSession(r *http.Request) *Session {
	cookie, err := r.Cookie(m.config.CookieName)
	if err != nil {
		return nil
	}

	m.sessionMu.RLock()
	session, exists := m.sessions[cookie.Value]
	m.sessionMu.RUnlock()

	if !exists {
		return nil
	}

	if m.clock.Now().After(session.ExpiresAt) {
		m.sessionMu.Lock()
		delete(m.sessions, cookie.Value)
		m.sessionMu.Unlock()
		return nil
	}

	return session
}

// RequireAuth is middleware that rejects requests without a live session
// and attaches the session to the request context.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := m.GetSession(r)
		if session == nil {
			httputil.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// Sessions returns the number of stored sessions.
func (m *Manager) Sessions() int {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()
	return len(m.sessions)
}

// PurgeExpired drops every expired session.
func (m *Manager) PurgeExpired() int {
	now := m.clock.Now()

	m.sessionMu.Lock()
	removed := 0
	for id, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	n := len(m.sessions)
	m.sessionMu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return removed
}

// CleanupExpiredSessions removes expired sessions every interval until ctx ends.
func (m *Manager) CleanupExpiredSessions(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if n := m.PurgeExpired(); n > 0 {
					logger.Debug("Auth: purged expired sessions", "count", n)
				}
			}
		}
	}()
}

package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"einstein-dashboard/internal/api"
	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/domain"

	"github.com/google/uuid"
)

const deviceCookie = "dashboard_device"

// deviceCookieTTL bounds how long a browser keeps its device id.
const deviceCookieTTL = 365 * 24 * time.Hour

type sessionKey struct{}

func withSession(ctx context.Context, s app.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session attached by the session middleware.
func SessionFrom(ctx context.Context) (app.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(app.Session)
	return s, ok
}

// sessionInfo is what the browser learns about its session. The backend
// token stays on the server.
type sessionInfo struct {
	Role      domain.Role `json:"rol"`
	Email     string      `json:"correo"`
	UserID    string      `json:"usuario_id,omitempty"`
	Grade     string      `json:"grado,omitempty"`
	Section   string      `json:"seccion,omitempty"`
	ExpiresAt time.Time   `json:"expira"`
}

func infoOf(s app.Session) sessionInfo {
	return sessionInfo{
		Role:      s.Role,
		Email:     s.Email,
		UserID:    s.UserID,
		Grade:     s.Grade,
		Section:   s.Section,
		ExpiresAt: s.ExpiresAt,
	}
}

// requireSession resolves the session cookie, attaches the session and
// the backend token to the request context, and rejects anonymous calls.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.cookieName)
		id := ""
		if err == nil {
			id = cookie.Value
		}
		sess, err := s.auth.Current(r.Context(), id)
		if err != nil {
			if !errors.Is(err, domain.ErrSessionNotFound) {
				log.Printf("session lookup failed: %v", err)
			}
			s.clearSessionCookie(w)
			respondError(w, domain.ErrSessionNotFound, "Tu sesión expiró. Inicia sesión nuevamente.")
			return
		}
		ctx := withSession(r.Context(), sess)
		ctx = api.WithToken(ctx, sess.Token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets through sessions whose role is one of roles.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFrom(r.Context())
			if !ok || !sess.Allows(roles...) {
				respondJSON(w, http.StatusForbidden, errorBody{Error: "No tienes permiso para acceder a esta sección."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess app.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// deviceID returns the browser's device id, issuing one when missing.
func (s *Server) deviceID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(deviceCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     deviceCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(deviceCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

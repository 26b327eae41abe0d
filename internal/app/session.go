package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"

	"einstein-dashboard/internal/api"
	"einstein-dashboard/internal/domain"
	"einstein-dashboard/internal/validate"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session is a signed-in dashboard user. Identity fields are read from the
// backend token when it carries them.
type Session struct {
	ID        string      `json:"id"`
	Role      domain.Role `json:"rol"`
	Token     string      `json:"token"`
	Email     string      `json:"correo"`
	UserID    string      `json:"usuario_id,omitempty"`
	Grade     string      `json:"grado,omitempty"`
	Section   string      `json:"seccion,omitempty"`
	ExpiresAt time.Time   `json:"expira"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Allows reports whether the session role is one of roles.
func (s Session) Allows(roles ...domain.Role) bool {
	return slices.Contains(roles, s.Role)
}

// SessionStore abstracts where sessions and remembered emails live
// (in-memory, Redis, bbolt).
type SessionStore interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	Remember(ctx context.Context, deviceID, email string, ttl time.Duration) error
	Remembered(ctx context.Context, deviceID string) (string, error)
	Forget(ctx context.Context, deviceID string) error
}

type Authenticator interface {
	Login(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error)
}

// LoginInput is the sign-in form.
type LoginInput struct {
	Email    string `json:"correo" validate:"required,email"`
	Password string `json:"contraseña" validate:"required,min=6"`
	Remember bool   `json:"recordar"`
	DeviceID string `json:"-"`
}

const (
	msgLoginIncomplete = "Completa todos los campos requeridos"
	msgLoginOK         = "Inicio de sesión exitoso"
	msgLoginFailed     = "Correo o contraseña incorrectos."
)

// LoginMessage is the toast shown for a login outcome.
func LoginMessage(err error) string {
	var verrs domain.ValidationErrors
	switch {
	case err == nil:
		return msgLoginOK
	case errors.As(err, &verrs):
		return msgLoginIncomplete
	case errors.Is(err, domain.ErrUnauthorized):
		return msgLoginFailed
	}
	return userMessage(err, "No se pudo iniciar sesión. Inténtalo nuevamente.")
}

// AuthService signs users in against the backend and keeps their sessions.
type AuthService struct {
	auth        Authenticator
	store       SessionStore
	validate    *validate.Validator
	ttl         time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

func NewAuthService(auth Authenticator, store SessionStore, v *validate.Validator, ttl, rememberTTL time.Duration) *AuthService {
	return &AuthService{auth: auth, store: store, validate: v, ttl: ttl, rememberTTL: rememberTTL, now: time.Now}
}

// NewAuthServiceWithClock is test-only for deterministic expiry.
func NewAuthServiceWithClock(auth Authenticator, store SessionStore, v *validate.Validator, ttl, rememberTTL time.Duration, now func() time.Time) *AuthService {
	s := NewAuthService(auth, store, v, ttl, rememberTTL)
	s.now = now
	return s
}

// Login validates the form, authenticates against the backend and stores
// a new session. The session lives until the token expires, or for the
// configured TTL when the token carries no expiry.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (Session, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return Session{}, err
	}

	res, err := s.auth.Login(ctx, api.LoginRequest{Email: in.Email, Password: in.Password})
	if err != nil {
		return Session{}, err
	}
	role, ok := domain.ParseRole(res.Role)
	if !ok || res.Token == "" {
		return Session{}, fmt.Errorf("%w: role %q", domain.ErrUnauthorized, res.Role)
	}

	now := s.now()
	sess := Session{
		ID:        uuid.NewString(),
		Role:      role,
		Token:     res.Token,
		Email:     in.Email,
		ExpiresAt: now.Add(s.ttl),
	}
	claims := readClaims(res.Token)
	sess.UserID, sess.Grade, sess.Section = claims.userID, claims.grade, claims.section
	if !claims.expiresAt.IsZero() {
		if !claims.expiresAt.After(now) {
			return Session{}, fmt.Errorf("%w: token already expired", domain.ErrUnauthorized)
		}
		sess.ExpiresAt = claims.expiresAt
	}

	if err := s.store.Save(ctx, sess, sess.ExpiresAt.Sub(now)); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	if in.DeviceID != "" {
		if in.Remember {
			err = s.store.Remember(ctx, in.DeviceID, in.Email, s.rememberTTL)
		} else {
			err = s.store.Forget(ctx, in.DeviceID)
		}
		if err != nil {
			log.Printf("remembered email for device %s: %v", in.DeviceID, err)
		}
	}
	return sess, nil
}

// Current returns a live session or ErrSessionNotFound.
func (s *AuthService) Current(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, domain.ErrSessionNotFound
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Expired(s.now()) {
		_ = s.store.Delete(ctx, id)
		return Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *AuthService) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.store.Delete(ctx, id)
}

// RememberedEmail prefills the sign-in form; "" when nothing is stored.
func (s *AuthService) RememberedEmail(ctx context.Context, deviceID string) string {
	if deviceID == "" {
		return ""
	}
	email, err := s.store.Remembered(ctx, deviceID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Printf("remembered email for device %s: %v", deviceID, err)
		}
		return ""
	}
	return email
}

type tokenClaims struct {
	expiresAt time.Time
	userID    string
	grade     string
	section   string
}

// readClaims decodes the token payload without verifying it. The backend
// owns the signing key; the dashboard only needs the expiry and identity.
func readClaims(token string) tokenClaims {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return tokenClaims{}
	}
	var out tokenClaims
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.expiresAt = exp.Time
	}
	out.userID = claimString(claims, "usuario_id", "id", "_id", "sub")
	out.grade = claimString(claims, "grado")
	out.section = claimString(claims, "seccion")
	return out
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"

	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/models"
	"github.com/linesmerrill/swachhsnap-api/session"
)

// ErrSignedOut is returned for a token that was revoked on this instance
var ErrSignedOut = errors.New("session signed out")

// Auth wires the session provider into go-guardian basic and bearer strategies
type Auth struct {
	Provider *session.Provider
	Registry *session.Registry

	authenticator auth.Authenticator
}

// NewAuth sets up the go-guardian authenticator. Cached bearer tokens live
// no longer than the tokens themselves.
func NewAuth(ctx context.Context, p *session.Provider, reg *session.Registry, ttl time.Duration) *Auth {
	a := &Auth{Provider: p, Registry: reg}
	cache := store.NewFIFO(ctx, ttl)

	a.authenticator = auth.New()
	a.authenticator.EnableStrategy(basic.StrategyKey, basic.New(a.validateUser, cache))
	a.authenticator.EnableStrategy(bearer.CachedStrategyKey, bearer.New(a.verifyToken, cache))
	return a
}

func (a *Auth) validateUser(ctx context.Context, _ *http.Request, email, password string) (auth.Info, error) {
	user, err := a.Provider.Check(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return auth.NewDefaultUser(user.Email, user.ID.Hex(), nil, nil), nil
}

func (a *Auth) verifyToken(_ context.Context, _ *http.Request, token string) (auth.Info, error) {
	if a.Registry.Revoked(token) {
		return nil, ErrSignedOut
	}
	claims, err := a.Provider.Verify(token)
	if err != nil {
		return nil, err
	}
	return auth.NewDefaultUser(claims.Email, claims.Subject, nil, nil), nil
}

// Middleware authenticates the request and stores the caller's identity
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		info, err := a.authenticator.Authenticate(r)
		if err != nil {
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
			return
		}
		id, err := a.identify(r, info)
		if err != nil {
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
			return
		}
		zap.S().Debugw("authenticated", "userId", id.ID, "role", id.Role)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Identify resolves a raw bearer token, for callers that cannot send headers
func (a *Auth) Identify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, session.ErrInvalidToken
	}
	if a.Registry.Revoked(token) {
		return Identity{}, ErrSignedOut
	}
	claims, err := a.Provider.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: claims.Subject, Email: claims.Email, Name: claims.Name, Role: claims.Role, Token: token}, nil
}

func (a *Auth) identify(r *http.Request, info auth.Info) (Identity, error) {
	if token := BearerToken(r); token != "" {
		// the guardian cache only keeps the id, the claims carry the rest
		return a.Identify(token)
	}
	user, err := a.Provider.User(r.Context(), info.ID())
	if err != nil {
		return Identity{}, fmt.Errorf("failed to load user %s: %w", info.ID(), err)
	}
	return Identity{ID: user.ID.Hex(), Email: user.Email, Name: user.Name, Role: user.Role}, nil
}

// BearerToken returns the token from an Authorization: Bearer header
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireRole lets the request through only for the listed roles
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, errors.New("no identity on request"))
				return
			}
			for _, role := range roles {
				if id.Is(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			config.ErrorStatus("forbidden", http.StatusForbidden, w, fmt.Errorf("role %s may not call %s %s", id.Role, r.Method, r.URL.Path))
		})
	}
}

type tokenResponse struct {
	Token     string      `json:"token"`
	ID        string      `json:"_id"`
	Name      string      `json:"name"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// CreateToken exchanges basic credentials for a bearer token
func (a *Auth) CreateToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	email, password, ok := r.BasicAuth()
	if !ok {
		config.ErrorStatus("basic auth failed", http.StatusUnauthorized, w, errors.New("missing basic credentials"))
		return
	}

	s, err := a.Provider.Authenticate(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			config.ErrorStatus("failed to sign in", http.StatusUnauthorized, w, err)
			return
		}
		config.ErrorStatus("failed to sign in", http.StatusInternalServerError, w, err)
		return
	}

	tokenStrategy := a.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Append(tokenStrategy, s.Token, auth.NewDefaultUser(s.User.Email, s.User.ID.Hex(), nil, nil), r); err != nil {
		zap.S().Warnw("failed to cache token", "userId", s.User.ID.Hex(), "error", err)
	}

	_ = json.NewEncoder(w).Encode(tokenResponse{
		Token:     s.Token,
		ID:        s.User.ID.Hex(),
		Name:      s.User.Name,
		Role:      s.User.Role,
		ExpiresAt: s.ExpiresAt,
	})
}

// RevokeToken signs the caller out
func (a *Auth) RevokeToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	token := BearerToken(r)
	if token == "" {
		config.ErrorStatus("failed to sign out", http.StatusBadRequest, w, errors.New("no bearer token on request"))
		return
	}

	tokenStrategy := a.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Revoke(tokenStrategy, token, r); err != nil {
		zap.S().Warnw("failed to drop cached token", "error", err)
	}
	if err := a.Provider.SignOut(token); err != nil {
		config.ErrorStatus("failed to sign out", http.StatusUnauthorized, w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(models.ErrorMessageResponse{Response: "signed out"})
}

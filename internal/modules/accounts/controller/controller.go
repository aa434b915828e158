package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"weatherstation-server/internal/modules/accounts/service"
	"weatherstation-server/internal/modules/accounts/types"
	"weatherstation-server/internal/utils"
)

type contextKey int

const (
	userKey contextKey = iota
	tokenKey
)

// UserFrom returns the authenticated user placed in the context by the
// auth middleware.
func UserFrom(ctx context.Context) (*types.User, bool) {
	u, ok := ctx.Value(userKey).(*types.User)
	return u, ok
}

func tokenFrom(ctx context.Context) (*types.AuthToken, bool) {
	t, ok := ctx.Value(tokenKey).(*types.AuthToken)
	return t, ok
}

type AccountsController interface {
	RegisterRoutes(mux *http.ServeMux)

	// RequireToken guards a handler with Authorization: Token <...> auth.
	RequireToken(next http.HandlerFunc) http.HandlerFunc
	// RequireTokenOrAPIKey additionally accepts the X-Api-Key ingest header.
	RequireTokenOrAPIKey(next http.HandlerFunc) http.HandlerFunc
}

type accountsControllerImpl struct {
	svc *service.Service
}

func NewAccountsController(svc *service.Service) AccountsController {
	return &accountsControllerImpl{svc: svc}
}

func (c *accountsControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/{$}", c.handleRegister)
	mux.HandleFunc("POST /api/users/login/{$}", c.handleLogin)
	mux.HandleFunc("POST /api/users/logout/{$}", c.RequireToken(c.handleLogout))
	mux.HandleFunc("POST /api/users/logoutall/{$}", c.RequireToken(c.handleLogoutAll))
	mux.HandleFunc("POST /api/users/token/{$}", c.handleCreateAPIKey)
	mux.HandleFunc("GET /api/users/me/{$}", c.RequireToken(c.handleMe))
	mux.HandleFunc("PUT /api/users/me/{$}", c.RequireToken(c.handleUpdateMe))
	mux.HandleFunc("PATCH /api/users/me/{$}", c.RequireToken(c.handlePatchMe))
}

func (c *accountsControllerImpl) RequireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plaintext, ok := bearerToken(r)
		if !ok {
			utils.WriteError(w, http.StatusUnauthorized, "authentication credentials were not provided")
			return
		}
		user, token, err := c.svc.AuthenticateToken(r.Context(), plaintext)
		if errors.Is(err, service.ErrInvalidToken) {
			utils.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if err != nil {
			slog.Error("token auth failed", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "authentication failed")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, tokenKey, token)
		next(w, r.WithContext(ctx))
	}
}

func (c *accountsControllerImpl) RequireTokenOrAPIKey(next http.HandlerFunc) http.HandlerFunc {
	withToken := c.RequireToken(next)
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("X-Api-Key"))
		if key == "" {
			withToken(w, r)
			return
		}
		user, err := c.svc.AuthenticateAPIKey(r.Context(), key)
		if errors.Is(err, service.ErrInvalidToken) {
			utils.WriteError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		if err != nil {
			slog.Error("api key auth failed", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "authentication failed")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	}
}

// bearerToken extracts the credential from "Authorization: Token <plaintext>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Token") {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

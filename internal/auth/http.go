// ABOUTME: HTTP middleware for JWT authentication on progress endpoints
// ABOUTME: Extracts the bearer token, checks the principal is active and adds it to context

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/folio-gateway/internal/store"
)

// PrincipalStore looks up principals by id.
type PrincipalStore interface {
	GetPrincipal(ctx context.Context, id string) (*store.Principal, error)
}

// PrincipalToucher records when a principal was last seen. Stores that
// implement it alongside PrincipalStore are updated on every authenticated
// request.
type PrincipalToucher interface {
	TouchPrincipal(ctx context.Context, id string, at time.Time) error
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// authenticate resolves the request's bearer token to an active principal.
// It returns the HTTP status and message to use on failure.
func authenticate(r *http.Request, principals PrincipalStore, verifier TokenVerifier) (*AuthContext, int, string) {
	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		return nil, http.StatusUnauthorized, errMsg
	}

	principalID, err := verifier.Verify(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, http.StatusUnauthorized, "token expired"
		}
		return nil, http.StatusUnauthorized, "invalid token"
	}

	principal, err := principals.GetPrincipal(r.Context(), principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, http.StatusUnauthorized, "principal not found"
		}
		return nil, http.StatusInternalServerError, "failed to load principal"
	}
	if !principal.Active() {
		return nil, http.StatusForbidden, "principal has been revoked"
	}

	return &AuthContext{PrincipalID: principal.ID, DisplayName: principal.DisplayName}, 0, ""
}

// HTTPAuthMiddleware creates an HTTP middleware that requires a valid token
// for an active principal and adds its AuthContext to the request context.
func HTTPAuthMiddleware(principals PrincipalStore, verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	toucher, _ := principals.(PrincipalToucher)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, status, errMsg := authenticate(r, principals, verifier)
			if authCtx == nil {
				logger.Debug("request rejected", "path", r.URL.Path, "status", status, "reason", errMsg)
				http.Error(w, `{"error":"`+errMsg+`"}`, status)
				return
			}

			if toucher != nil {
				if err := toucher.TouchPrincipal(r.Context(), authCtx.PrincipalID, time.Now()); err != nil {
					logger.Debug("failed to touch principal", "principal_id", authCtx.PrincipalID, "error", err)
				}
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// OptionalAuthMiddleware attempts JWT auth but lets unauthenticated requests
// through as anonymous.
func OptionalAuthMiddleware(principals PrincipalStore, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, _, _ := authenticate(r, principals, verifier)
			if authCtx == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

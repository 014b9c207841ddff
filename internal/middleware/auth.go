package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"blueprint-api/internal/model"
	"blueprint-api/pkg/apierror"
)

type authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	auth authenticator
}

func NewAuthMiddleware(auth authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireAuth accepts only access tokens presented as "Bearer <token>" whose
// user still exists.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeUnauthorized(w, "Authentication credentials were not provided.")
			return
		}

		token := strings.TrimSpace(header[7:])
		claims, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			var apiErr *apierror.APIError
			if errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusUnauthorized {
				writeUnauthorized(w, apiErr.Message)
				return
			}
			slog.Error("authentication failed", "error", err)
			writeErrorJSON(w, http.StatusInternalServerError, apierror.CodeInternal, "Unexpected server error")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}

// WithClaims stores claims in ctx the way RequireAuth does.
func WithClaims(ctx context.Context, claims *model.AuthClaims) context.Context {
	return context.WithValue(ctx, authClaimsContextKey, claims)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeErrorJSON(w, http.StatusUnauthorized, apierror.CodeUnauthorized, message)
}

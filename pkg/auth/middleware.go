package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey struct{}

// Authentication methods recorded on a Principal
const (
	MethodJWT    = "jwt"
	MethodAPIKey = "apikey"
)

// Principal is the authenticated caller of a request
type Principal struct {
	UserID string
	Email  string
	Role   string
	Method string
}

// WithPrincipal returns a context carrying p
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the caller stored by the middleware, if any
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok && p != nil
}

// AuthMiddleware provides HTTP middleware for authentication
type AuthMiddleware struct {
	jwtManager    *JWTManager
	apiKeyManager *APIKeyManager
	optional      bool // If true, requests without credentials pass
}

// NewAuthMiddleware creates a new authentication middleware. Either manager
// may be nil to disable that method.
func NewAuthMiddleware(jwtManager *JWTManager, apiKeyManager *APIKeyManager, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:    jwtManager,
		apiKeyManager: apiKeyManager,
		optional:      optional,
	}
}

// Handler returns the HTTP middleware handler. Credentials that are present
// but invalid are always rejected, even when authentication is optional.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok && m.jwtManager != nil {
			claims, err := m.jwtManager.Verify(token)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), &Principal{
				UserID: claims.UserID,
				Email:  claims.Email,
				Role:   claims.Role,
				Method: MethodJWT,
			})))
			return
		}

		if key := r.Header.Get("X-API-Key"); key != "" && m.apiKeyManager != nil {
			apiKey, err := m.apiKeyManager.Verify(key)
			if err != nil {
				unauthorized(w, "invalid or revoked API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), &Principal{
				UserID: apiKey.UserID,
				Method: MethodAPIKey,
			})))
			return
		}

		if m.optional {
			next.ServeHTTP(w, r)
			return
		}

		unauthorized(w, "no valid authentication provided")
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(header[7:]), true
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="ffmpeg-chain"`)
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", msg)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "error": msg})
}

// RequireRole is a middleware that requires a specific role
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok || p.Role != role {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

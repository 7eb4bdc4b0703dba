package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/auth"
	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/policy"
	"github.com/ukydev/garage-service/internal/response"
)

type contextKey string

// UserContextKey holds the *models.Claims of the authenticated caller.
const UserContextKey contextKey = "user"

// AuthMiddleware provides JWT authentication and policy based authorization
type AuthMiddleware struct {
	authService *auth.Service
	policy      *policy.Policy
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authService *auth.Service, p *policy.Policy) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		policy:      p,
	}
}

// Authenticate validates JWT tokens and adds user context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Fail(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		token, err := m.authService.ExtractTokenFromHeader(authHeader)
		if err != nil {
			response.Fail(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "Token expired"
			}
			response.Fail(w, http.StatusUnauthorized, msg)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Authorize only lets through callers whose role the policy allows for action.
func (m *AuthMiddleware) Authorize(action policy.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				response.Fail(w, http.StatusUnauthorized, "User context not found")
				return
			}

			if !m.policy.Allows(action, claims.Role) {
				log.WithFields(log.Fields{
					"user_id": claims.UserID,
					"role":    claims.Role,
					"action":  action,
				}).Info("Access denied")
				response.Fail(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Guard wraps a handler function with Authorize.
func (m *AuthMiddleware) Guard(action policy.Action, h http.HandlerFunc) http.Handler {
	return m.Authorize(action)(h)
}

// WithClaims stores the caller's claims in ctx.
func WithClaims(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)
	return claims, ok
}

// publicPaths are served without a bearer token.
var publicPaths = []string{"/api/auth/login", "/api/auth/register", "/health"}

// shouldSkipAuth reports whether path, or a sub path of it, is public.
func shouldSkipAuth(path string) bool {
	for _, skipPath := range publicPaths {
		if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
			return true
		}
	}
	return false
}

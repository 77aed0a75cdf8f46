package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/openshelf/openshelf-server/internal/auth"
	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/http/response"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const contextKeyClaims contextKey = "claims"

// requireAuth is middleware that validates access tokens and attaches the
// verified claims to the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "Missing authorization header", s.logger)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(w, "Invalid authorization header format", s.logger)
			return
		}

		claims, err := s.authService.VerifyAccessToken(parts[1])
		if err != nil {
			response.Unauthorized(w, "Invalid or expired token", s.logger)
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireStaff ensures the authenticated user is a librarian or admin.
// Must be used after requireAuth.
func (s *Server) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		if claims == nil || !claims.IsStaff() {
			response.Forbidden(w, "Staff access required", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin ensures the authenticated user is an admin.
// Must be used after requireAuth.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		if claims == nil || claims.Role != domain.RoleAdmin {
			response.Forbidden(w, "Admin access required", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// claimsFrom extracts the verified token claims from request context.
// Returns nil if the request is unauthenticated.
func claimsFrom(ctx context.Context) *auth.AccessClaims {
	if claims, ok := ctx.Value(contextKeyClaims).(*auth.AccessClaims); ok {
		return claims
	}
	return nil
}

// currentUser loads the authenticated user's account. Role and approval
// checks against live data go through this rather than the token snapshot.
func (s *Server) currentUser(r *http.Request) (*domain.User, error) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		return nil, errUnauthenticated
	}
	return s.store.GetUser(r.Context(), claims.UserID)
}

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"love-sync-backend/internal/models"
	"love-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "viewer_role"
)

// TokenValidator resolves a bearer token to a user id
type TokenValidator interface {
	ValidateJWT(token string) (string, error)
}

// RoleResolver derives the viewer role of a user
type RoleResolver interface {
	Role(ctx context.Context, userID string) (models.ViewerRole, error)
}

// Identity is what the auth middlewares need from the user service
type Identity interface {
	TokenValidator
	RoleResolver
}

var _ Identity = (*services.UserService)(nil)

// bearerToken returns the token from "Authorization: Bearer <token>". ok is false for a malformed header.
func bearerToken(r *http.Request) (token string, present, ok bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false, true
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", true, false
	}
	return parts[1], true, true
}

func withViewer(ctx context.Context, userID string, role models.ViewerRole) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// AuthMiddleware requires a valid token and stores the user id and role on the request
func AuthMiddleware(identity Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present, ok := bearerToken(r)
			if !present {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			if !ok {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			userID, err := identity.ValidateJWT(token)
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			role, err := identity.Role(r.Context(), userID)
			if err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve viewer role")
				respondError(w, "Failed to resolve access", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(withViewer(r.Context(), userID, role)))
		})
	}
}

// OptionalAuth lets guests through. A missing or unusable token makes the caller a guest.
func OptionalAuth(identity Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present, ok := bearerToken(r)
			if !present || !ok {
				next.ServeHTTP(w, r.WithContext(withViewer(r.Context(), "", models.RoleGuest)))
				return
			}

			userID, err := identity.ValidateJWT(token)
			if err != nil {
				log.Debug().Err(err).Msg("Ignoring invalid token on public route")
				next.ServeHTTP(w, r.WithContext(withViewer(r.Context(), "", models.RoleGuest)))
				return
			}

			role, err := identity.Role(r.Context(), userID)
			if err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("Failed to resolve viewer role, treating as signed in")
				role = models.RoleAuthenticated
			}
			next.ServeHTTP(w, r.WithContext(withViewer(r.Context(), userID, role)))
		})
	}
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetRole extracts the viewer role from context, defaulting to guest
func GetRole(ctx context.Context) models.ViewerRole {
	role, ok := ctx.Value(roleKey).(models.ViewerRole)
	if !ok {
		return models.RoleGuest
	}
	return role
}

// GetViewer bundles the caller's id and role for the services
func GetViewer(ctx context.Context) services.Viewer {
	return services.Viewer{UserID: GetUserID(ctx), Role: GetRole(ctx)}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ValidateWebSocketToken validates JWT token from WebSocket query parameter
func ValidateWebSocketToken(token string, validator TokenValidator) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token required")
	}
	return validator.ValidateJWT(token)
}

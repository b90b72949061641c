package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"activation-backend/internal/auth"
	"activation-backend/internal/cache"
	"activation-backend/internal/models"
	"activation-backend/internal/repositories"

	"github.com/gorilla/websocket"
)

type contextKey string

const UserIDKey contextKey = "user_id"
const EmailKey contextKey = "email"
const RoleKey contextKey = "role"
const EntityCodeKey contextKey = "entity_code"
const SessionIDKey contextKey = "session_id"

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	users      repositories.UserStore
	sessions   cache.Store
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, users repositories.UserStore, sessions cache.Store) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		users:      users,
		sessions:   sessions,
	}
}

type authError struct {
	status int
	msg    string
}

func (e *authError) Error() string { return e.msg }

// authenticate resolves the bearer token to a live session and an active user
func (m *AuthMiddleware) authenticate(r *http.Request) (*models.User, string, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, "", err
	}

	claims, err := m.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, "", &authError{http.StatusUnauthorized, "Invalid or expired token"}
	}

	session, err := m.sessions.GetSession(r.Context(), claims.SessionID())
	if errors.Is(err, cache.ErrSessionNotFound) || (err == nil && session.UserID != claims.UserID) {
		return nil, "", &authError{http.StatusUnauthorized, "Session expired"}
	}
	if err != nil {
		return nil, "", &authError{http.StatusServiceUnavailable, "Session store unavailable"}
	}

	// Check storage for current user status (for immediate permission updates)
	user, err := m.users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		return nil, "", &authError{http.StatusUnauthorized, "User not found"}
	}

	if !user.IsActive {
		return nil, "", &authError{http.StatusForbidden, "Account suspended. Please contact administrator."}
	}
	return user, session.ID, nil
}

// bearerToken reads "Bearer <token>". Websocket upgrades may pass ?token=
// instead.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(r) {
			if token := r.URL.Query().Get("token"); token != "" {
				return token, nil
			}
		}
		return "", &authError{http.StatusUnauthorized, "Authorization header required"}
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", &authError{http.StatusUnauthorized, "Invalid authorization format"}
	}
	return parts[1], nil
}

func withUser(ctx context.Context, user *models.User, sessionID string) context.Context {
	recordUser(ctx, user.ID)
	ctx = context.WithValue(ctx, UserIDKey, user.ID)
	ctx = context.WithValue(ctx, EmailKey, user.Email)
	ctx = context.WithValue(ctx, RoleKey, user.Role)
	ctx = context.WithValue(ctx, EntityCodeKey, user.EntityCode)
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

func writeAuthError(w http.ResponseWriter, err error) {
	var ae *authError
	if errors.As(err, &ae) {
		http.Error(w, ae.msg, ae.status)
		return
	}
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// Authenticate is a middleware that validates JWT tokens
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, sessionID, err := m.authenticate(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, sessionID)))
	})
}

// RequireRole is a middleware that ensures the user has one of the allowed roles
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, sessionID, err := m.authenticate(r)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			hasRole := false
			for _, role := range allowedRoles {
				if user.Role == role {
					hasRole = true
					break
				}
			}
			if !hasRole {
				http.Error(w, "Forbidden: Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, sessionID)))
		})
	}
}

// RequireAdmin is a middleware that ensures the user has admin role
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(models.RoleAdmin)(next)
}

// AllowRoles narrows a route already behind Authenticate or RequireRole
func AllowRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := GetRoleFromContext(r.Context())
			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden: Insufficient permissions", http.StatusForbidden)
		})
	}
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(UserIDKey).(int)
	return userID, ok
}

// GetRoleFromContext extracts role from request context
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// GetEntityCodeFromContext extracts the vendor or supervisor code of the user
func GetEntityCodeFromContext(ctx context.Context) (string, bool) {
	code, ok := ctx.Value(EntityCodeKey).(string)
	return code, ok
}

// GetSessionIDFromContext extracts the session behind the request token
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionIDKey).(string)
	return id, ok
}

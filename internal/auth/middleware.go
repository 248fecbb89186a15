package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"go.uber.org/zap"
)

// UserLookup resolves the user a token refers to
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// PermissionLoader returns the permissions granted to a user through their role
type PermissionLoader interface {
	PermissionsForUser(ctx context.Context, userID uuid.UUID) ([]domain.Permission, error)
}

// Middleware handles authentication for HTTP requests
type Middleware struct {
	validator   *JWTValidator
	users       UserLookup
	permissions PermissionLoader
	logger      *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(validator *JWTValidator, users UserLookup, permissions PermissionLoader, logger *zap.Logger) *Middleware {
	return &Middleware{
		validator:   validator,
		users:       users,
		permissions: permissions,
		logger:      logger,
	}
}

// Authenticate validates the bearer token and attaches the user and their
// permissions to the request context
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized: missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "Unauthorized: invalid authorization header format", http.StatusUnauthorized)
			return
		}

		identity, err := m.validator.ValidateToken(parts[1])
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}

		userCtx, err := m.loadUser(r.Context(), identity)
		if err != nil {
			m.logger.Warn("user lookup failed",
				zap.String("path", r.URL.Path),
				zap.String("user_id", identity.UserID.String()),
				zap.Error(err),
			)
			http.Error(w, "Unauthorized: unknown or inactive user", http.StatusUnauthorized)
			return
		}

		m.logger.Info("request authenticated",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("user_id", userCtx.UserID.String()),
			zap.String("user_email", userCtx.Email),
			zap.String("role", userCtx.Role),
			zap.Int("permissions", len(userCtx.Permissions)),
			zap.Duration("auth_duration", time.Since(start)),
		)

		ctx := WithUserContext(r.Context(), userCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) loadUser(ctx context.Context, identity *TokenIdentity) (*UserContext, error) {
	user, err := m.users.GetByID(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	perms, err := m.permissions.PermissionsForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	userCtx := &UserContext{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Permissions: perms,
	}
	if user.Role != nil {
		userCtx.Role = user.Role.Name
	}
	if userCtx.DisplayName == "" {
		userCtx.DisplayName = identity.DisplayName
	}
	return userCtx, nil
}

// RequirePermission middleware ensures user has specific permission
func (m *Middleware) RequirePermission(permission domain.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, "Forbidden: no user context", http.StatusForbidden)
				return
			}

			if !userCtx.HasPermission(permission) {
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

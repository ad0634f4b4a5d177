package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/keypass/internal/models"
	pkghttp "github.com/BradenHooton/keypass/pkg/http"
	pkglogger "github.com/BradenHooton/keypass/pkg/logger"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing the authenticated user in context
	UserContextKey contextKey = "user"
)

// UserRepository is the lookup the guard needs to cross-check stored sessions
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// SessionGuard validates bearer tokens against the single session stored on the user
type SessionGuard struct {
	tm          *TokenManager
	users       UserRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewSessionGuard creates a new SessionGuard
func NewSessionGuard(tm *TokenManager, users UserRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *SessionGuard {
	return &SessionGuard{
		tm:          tm,
		users:       users,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Authenticate resolves the user behind an Authorization header value.
// A token that verifies but no longer matches the stored session token was
// superseded by a newer login and is rejected.
func (g *SessionGuard) Authenticate(ctx context.Context, authHeader string) (*models.User, error) {
	if strings.TrimSpace(authHeader) == "" {
		return nil, models.ErrMissingCredential
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, g.reject(ctx, "", models.ErrInvalidToken)
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, models.ErrMissingCredential
	}

	claims, err := g.tm.ValidateToken(tokenString)
	if err != nil {
		return nil, g.reject(ctx, "", err)
	}

	user, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		g.logger.Error("failed to load session user", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", models.ErrInternalServer, err)
	}

	if subtle.ConstantTimeCompare([]byte(user.SessionToken), []byte(tokenString)) != 1 {
		return nil, g.reject(ctx, user.ID, models.ErrSessionSuperseded)
	}

	return user, nil
}

// reject audits a token the guard refused and returns err unchanged
func (g *SessionGuard) reject(ctx context.Context, userID string, err error) error {
	reason := "invalid_token"
	switch {
	case errors.Is(err, models.ErrSessionSuperseded):
		reason = "session_superseded"
	case errors.Is(err, models.ErrSessionExpired):
		reason = "session_expired"
	}
	g.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventSessionRejected,
		UserID:        userID,
		FailureReason: reason,
	})
	return err
}

// Middleware rejects requests without a live session and injects the user into context
func (g *SessionGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeGuardError(w, err)
			return
		}

		ctx := WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeGuardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrMissingCredential):
		pkghttp.WriteError(w, http.StatusUnauthorized, "missing_credential", "UnAuthorized Access")
	case errors.Is(err, models.ErrSessionExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "session_expired", "session expired")
	case errors.Is(err, models.ErrSessionSuperseded):
		pkghttp.WriteError(w, http.StatusUnauthorized, "session_superseded", "A different device is logged in.")
	case errors.Is(err, models.ErrInvalidToken):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_token", "invalid session token")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "No User Found")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// WithUser returns a copy of ctx carrying the authenticated user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserFromContext extracts the authenticated user from request context
func GetUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

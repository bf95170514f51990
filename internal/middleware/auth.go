// Package middleware adapts the security core to net/http handlers.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/session"
	"github.com/iudanet/tradeguard/internal/trade"
)

type contextKey string

const principalKey contextKey = "principal"

// SessionValidator resolves bearer tokens.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*models.User, *models.Session, error)
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p trade.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal set by RequireSession.
func PrincipalFromContext(ctx context.Context) (trade.Principal, bool) {
	p, ok := ctx.Value(principalKey).(trade.Principal)
	return p, ok && p.User != nil && p.Session != nil
}

// RequireSession создает middleware для проверки bearer токена сессии
func RequireSession(logger *zap.Logger, sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				// Сам заголовок не логируем: в нем может быть токен
				logger.Warn("missing or malformed authorization header", zap.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, sess, err := sessions.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, session.ErrSessionExpiredOrInvalid) {
					writeError(w, http.StatusUnauthorized, "session expired or invalid")
					return
				}
				logger.Error("session validation failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			logger.Debug("session authenticated", zap.String("user_id", user.ID))

			ctx := WithPrincipal(r.Context(), trade.Principal{User: user, Session: sess})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken ожидает формат "Bearer <token>"
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

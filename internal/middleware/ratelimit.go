package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/iudanet/tradeguard/internal/ratelimit"
	"github.com/iudanet/tradeguard/internal/trade"
)

// Limiter admits requests per endpoint and identity.
type Limiter interface {
	Check(ctx context.Context, endpoint, identity string) (ratelimit.Decision, error)
}

// RateLimit ограничивает запросы к endpoint. Идентичность - id пользователя
// из RequireSession, для анонимных запросов - IP клиента.
//
// Endpoint trade.Endpoint уже считает trade.Service, поэтому маршрут сделки
// этим middleware не оборачивается: каждый запрос учитывался бы дважды.
// Вызов с trade.Endpoint паникует при сборке маршрутов.
func RateLimit(logger *zap.Logger, limiter Limiter, endpoint string) func(http.Handler) http.Handler {
	if endpoint == trade.Endpoint {
		panic("middleware: endpoint " + strconv.Quote(endpoint) + " is rate limited by trade.Service")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := "ip:" + clientIP(r)
			if p, ok := PrincipalFromContext(r.Context()); ok {
				identity = p.User.ID
			}

			decision, err := limiter.Check(r.Context(), endpoint, identity)
			if err != nil {
				logger.Error("rate limit check failed", zap.String("endpoint", endpoint), zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "service unavailable")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Limit-decision.Requests, 0)))

			if !decision.Allowed {
				secs := int(math.Ceil(decision.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				writeError(w, http.StatusTooManyRequests, decision.Error)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP извлекает IP адрес клиента из запроса
func clientIP(r *http.Request) string {
	// X-Forwarded-For: первый IP в списке - реальный клиент
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}

// Package ratelimit admits requests per (endpoint, identity) in fixed windows.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iudanet/tradeguard/internal/metrics"
)

// ErrRateLimited - превышен лимит запросов в текущем окне
var ErrRateLimited = errors.New("rate limit exceeded")

const (
	// DefaultLimit - запросов в окне по умолчанию
	DefaultLimit = 600
	// DefaultWindow - длина окна по умолчанию
	DefaultWindow = time.Minute
)

// Store keeps fixed-window counters. Incr adds one to key, starting a new
// window of the given length when none is open, and returns the new count and
// the time left in the window. The increment happens even when the caller
// rejects the request.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// Limit - потолок запросов на окно
type Limit struct {
	Limit  int
	Window time.Duration
}

// Config holds per-endpoint limits. Endpoints missing from the map use Default.
type Config struct {
	Endpoints map[string]Limit
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Default   Limit
}

// Decision is the outcome of a check.
type Decision struct {
	Error      string        `json:"error,omitempty"`
	Requests   int           `json:"requests"` // включая текущий запрос
	Limit      int           `json:"limit"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Allowed    bool          `json:"allowed"`
}

// Err returns nil for an allowed decision, otherwise an error matching ErrRateLimited.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %d requests, limit %d", ErrRateLimited, d.Requests, d.Limit)
}

// Limiter is the Rate Limiter.
type Limiter struct {
	store     Store
	endpoints map[string]Limit
	logger    *zap.Logger
	metrics   *metrics.Metrics
	def       Limit
}

// New creates a limiter over store.
func New(store Store, cfg Config) *Limiter {
	l := &Limiter{
		store:     store,
		endpoints: make(map[string]Limit, len(cfg.Endpoints)),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		def:       normalize(cfg.Default, Limit{Limit: DefaultLimit, Window: DefaultWindow}),
	}
	for name, lim := range cfg.Endpoints {
		l.endpoints[name] = normalize(lim, l.def)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// LimitFor returns the effective limit of endpoint.
func (l *Limiter) LimitFor(endpoint string) Limit {
	if lim, ok := l.endpoints[endpoint]; ok {
		return lim
	}
	return l.def
}

// Check counts one request of identity on endpoint. A store failure is
// returned as error and the request must be treated as not admitted.
func (l *Limiter) Check(ctx context.Context, endpoint, identity string) (Decision, error) {
	lim := l.LimitFor(endpoint)

	count, ttl, err := l.store.Incr(ctx, key(endpoint, identity), lim.Window)
	if err != nil {
		return Decision{Limit: lim.Limit}, fmt.Errorf("rate limit store: %w", err)
	}

	d := Decision{Allowed: count <= lim.Limit, Requests: count, Limit: lim.Limit}
	if !d.Allowed {
		d.RetryAfter = ttl
		d.Error = fmt.Sprintf("Rate limit exceeded: %d requests per %s", lim.Limit, lim.Window)

		l.metrics.RateLimited(endpoint)
		l.logger.Warn("rate limit exceeded",
			zap.String("endpoint", endpoint),
			zap.String("identity", identity),
			zap.Int("requests", count),
			zap.Int("limit", lim.Limit),
		)
	}

	return d, nil
}

func key(endpoint, identity string) string {
	return endpoint + ":" + identity
}

func normalize(lim, fallback Limit) Limit {
	if lim.Limit <= 0 {
		lim.Limit = fallback.Limit
	}
	if lim.Window <= 0 {
		lim.Window = fallback.Window
	}
	return lim
}

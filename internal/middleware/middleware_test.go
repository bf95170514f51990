package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/ratelimit"
	"github.com/iudanet/tradeguard/internal/session"
	"github.com/iudanet/tradeguard/internal/trade"
)

const validToken = "valid-token"

type mockSessions struct {
	err error
}

func (m *mockSessions) Validate(_ context.Context, token string) (*models.User, *models.Session, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	if token != validToken {
		return nil, nil, session.ErrSessionExpiredOrInvalid
	}
	return &models.User{ID: "user-1"}, &models.Session{UserID: "user-1", Mode: models.SessionModeLive}, nil
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestRequireSession(t *testing.T) {
	tests := []struct {
		sessions   *mockSessions
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", sessions: &mockSessions{}, header: "Bearer " + validToken, wantStatus: http.StatusOK},
		{name: "lowercase scheme", sessions: &mockSessions{}, header: "bearer " + validToken, wantStatus: http.StatusOK},
		{name: "missing header", sessions: &mockSessions{}, header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", sessions: &mockSessions{}, header: "Basic " + validToken, wantStatus: http.StatusUnauthorized},
		{name: "empty token", sessions: &mockSessions{}, header: "Bearer  ", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", sessions: &mockSessions{}, header: "Bearer other", wantStatus: http.StatusUnauthorized},
		{name: "store failure", sessions: &mockSessions{err: errors.New("db is locked")}, header: "Bearer " + validToken, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p, ok := PrincipalFromContext(r.Context())
				require.True(t, ok)
				assert.Equal(t, "user-1", p.User.ID)
				seen = true
				okHandler(w, r)
			})

			req := httptest.NewRequest(http.MethodPost, "/trade", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			RequireSession(zap.NewNop(), tt.sessions)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, seen)
			if tt.wantStatus != http.StatusOK {
				assert.NotContains(t, decodeError(t, rec), "db is locked")
			}
		})
	}
}

func TestRequireSession_DoesNotLogToken(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token super-secret-value")
	rec := httptest.NewRecorder()

	RequireSession(zap.New(core), &mockSessions{})(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	for _, e := range logs.All() {
		for _, v := range e.ContextMap() {
			assert.NotContains(t, v, "super-secret-value")
		}
	}
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)
}

func TestRateLimit(t *testing.T) {
	store := ratelimit.NewMemoryStore(nil, 0)
	limiter := ratelimit.New(store, ratelimit.Config{
		Endpoints: map[string]ratelimit.Limit{"wallet": {Limit: 2, Window: time.Minute}},
	})
	handler := RequireSession(zap.NewNop(), &mockSessions{})(
		RateLimit(zap.NewNop(), limiter, "wallet")(http.HandlerFunc(okHandler)),
	)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/wallet", nil)
		req.Header.Set("Authorization", "Bearer "+validToken)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, do().Code)

	third := do()
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "0", third.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", third.Header().Get("Retry-After"))
	assert.Contains(t, decodeError(t, third), "Rate limit exceeded")
}

func TestRateLimit_AnonymousByIP(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(nil, 0), ratelimit.Config{
		Default: ratelimit.Limit{Limit: 1, Window: time.Minute},
	})
	handler := RateLimit(zap.NewNop(), limiter, "login")(http.HandlerFunc(okHandler))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2"))
}

func TestRateLimit_TradeEndpointRejected(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(nil, 0), ratelimit.Config{})

	assert.PanicsWithValue(t, `middleware: endpoint "trade" is rate limited by trade.Service`, func() {
		RateLimit(zap.NewNop(), limiter, trade.Endpoint)
	})
	assert.NotPanics(t, func() {
		RateLimit(zap.NewNop(), limiter, "trade_status")
	})
}

type brokenLimiter struct{}

func (brokenLimiter) Check(context.Context, string, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestRateLimit_StoreError(t *testing.T) {
	rec := httptest.NewRecorder()
	RateLimit(zap.NewNop(), brokenLimiter{}, "wallet")(http.HandlerFunc(okHandler)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		headers    map[string]string
		name       string
		remoteAddr string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.168.1.1:5000", want: "192.168.1.1"},
		{name: "ipv6 remote addr", remoteAddr: "[::1]:5000", want: "::1"},
		{name: "forwarded for", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "real ip", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Real-IP": "203.0.113.8"}, want: "203.0.113.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestRecovery(t *testing.T) {
	tests := []struct {
		handler    http.HandlerFunc
		name       string
		wantStatus int
	}{
		{name: "no panic", handler: okHandler, wantStatus: http.StatusOK},
		{name: "string panic", handler: func(http.ResponseWriter, *http.Request) { panic("private key 4c08") }, wantStatus: http.StatusInternalServerError},
		{name: "error panic", handler: func(http.ResponseWriter, *http.Request) { panic(errors.New("boom")) }, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			rec := httptest.NewRecorder()

			assert.NotPanics(t, func() {
				Recovery(zap.New(core))(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			})

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", decodeError(t, rec))
				assert.Equal(t, 1, logs.Len())
			}
		})
	}
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusNotFound), ctx["status"])
	assert.Equal(t, int64(4), ctx["bytes_written"])
	assert.Equal(t, "/wallet", ctx["path"])
}

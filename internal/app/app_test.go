package app

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tradeguard/internal/config"
	"github.com/iudanet/tradeguard/internal/crypto"
	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/session"
	"github.com/iudanet/tradeguard/internal/trade"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	t.Setenv("TRADEGUARD_VAULT_MASTER_KEY", base64.StdEncoding.EncodeToString(key))
	t.Setenv("TRADEGUARD_AUTH_BCRYPT_COST", "4")

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.Path = ":memory:"
	cfg.Metrics.Textfile = ""
	require.NoError(t, cfg.Validate())
	return cfg
}

func tradeFlow(t *testing.T, a *App) *models.SignedTradePayload {
	t.Helper()
	ctx := context.Background()

	user, err := a.Credentials.CreateUser(ctx, "trader@example.com", "secure_password_123", "ak_1", "sk_1")
	require.NoError(t, err)

	sess, err := a.Sessions.Login(ctx, session.LoginRequest{
		Email:    "trader@example.com",
		Password: "secure_password_123",
		ClientIP: "127.0.0.1",
	})
	require.NoError(t, err)

	_, err = a.Vault.CreateWallet(ctx, user.ID, models.ChainEthereum)
	require.NoError(t, err)

	u, s, err := a.Sessions.Validate(ctx, sess.Token)
	require.NoError(t, err)

	payload, err := a.Trades.ExecuteSecureTrade(ctx, trade.Principal{User: u, Session: s}, models.TradeRequest{
		Symbol: "BTCUSDT",
		Side:   models.SideBuy,
		Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	return payload
}

func TestNew_SQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "tradeguard.prom")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	payload := tradeFlow(t, a)
	assert.Equal(t, models.TradeStatusReadyForExecution, payload.Status)
	assert.NotEmpty(t, payload.Headers)

	require.NoError(t, a.Close())

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tradeguard_trades_signed_total")
}

func TestNew_BoltAndRedis(t *testing.T) {
	s := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.WalletStore.Driver = config.WalletStoreBolt
	cfg.WalletStore.BoltPath = filepath.Join(t.TempDir(), "wallets.bolt")
	cfg.RateLimit.Backend = config.RateLimitRedis
	cfg.RateLimit.RedisURL = "redis://" + s.Addr() + "/0"
	cfg.RateLimit.Endpoints = map[string]config.EndpointLimit{trade.Endpoint: {Limit: 5, Window: time.Minute}}

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	payload := tradeFlow(t, a)
	assert.NotEmpty(t, payload.Signature)
	assert.Equal(t, 5, a.Limiter.LimitFor(trade.Endpoint).Limit)

	keys := s.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], trade.Endpoint)
}

func TestNew_BadMasterKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vault.MasterKey = base64.StdEncoding.EncodeToString([]byte("short"))

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNew_BadRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.Backend = config.RateLimitRedis
	cfg.RateLimit.RedisURL = "http://not-redis"

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

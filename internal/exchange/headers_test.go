package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tradeguard/internal/models"
)

func TestSigningString(t *testing.T) {
	tests := []struct {
		query  url.Values
		name   string
		method string
		path   string
		want   string
	}{
		{name: "no query", method: "post", path: "/api/v1/order", want: "1699123456789POST/api/v1/order"},
		{name: "empty query", method: "GET", path: "/api/v1/account", query: url.Values{}, want: "1699123456789GET/api/v1/account"},
		{
			name:   "sorted query",
			method: "GET",
			path:   "/api/v1/account",
			query:  url.Values{"symbol": {"BTCUSDT"}, "limit": {"5"}},
			want:   "1699123456789GET/api/v1/account?limit=5&symbol=BTCUSDT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SigningString(1699123456789, tt.method, tt.path, tt.query))
		})
	}
}

func TestOrderQuery(t *testing.T) {
	q := OrderQuery(map[string]any{
		"symbol":   "BTCUSDT",
		"side":     "BUY",
		"amount":   "100.5",
		"leverage": int64(10),
	}, 1699123456789)

	assert.Equal(t, "amount=100.5&leverage=10&side=BUY&symbol=BTCUSDT&timestamp=1699123456789", q.Encode())

	// timestamp из полей перезаписывается
	q = OrderQuery(map[string]any{"timestamp": "0"}, 42)
	assert.Equal(t, "timestamp=42", q.Encode())
}

func TestBuildHeaders_OrderQuery(t *testing.T) {
	now := time.UnixMilli(1699123456789)
	creds := &models.ExchangeCredentials{APIKey: "k", APISecret: []byte("test_secret_key")}
	query := OrderQuery(map[string]any{"symbol": "BTCUSDT", "amount": "100"}, now.UnixMilli())

	headers, err := BuildHeaders(creds, OrderEndpoint(), query, now)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("test_secret_key"))
	mac.Write([]byte("1699123456789POST/api/v1/order?amount=100&symbol=BTCUSDT&timestamp=1699123456789"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), headers[HeaderSignature])

	other := OrderQuery(map[string]any{"symbol": "ETHUSDT", "amount": "100"}, now.UnixMilli())
	assert.True(t, VerifyHeaders(headers, creds.APISecret, OrderEndpoint(), query))
	assert.False(t, VerifyHeaders(headers, creds.APISecret, OrderEndpoint(), other))
	assert.False(t, VerifyHeaders(headers, creds.APISecret, OrderEndpoint(), nil))
}

func TestBuildHeaders(t *testing.T) {
	now := time.UnixMilli(1699123456789)
	creds := &models.ExchangeCredentials{APIKey: "test_api_key", APISecret: []byte("test_secret_key")}

	headers, err := BuildHeaders(creds, OrderEndpoint(), nil, now)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("test_secret_key"))
	mac.Write([]byte("1699123456789POST/api/v1/order"))

	assert.Equal(t, "test_api_key", headers[HeaderAPIKey])
	assert.Equal(t, "1699123456789", headers[HeaderTimestamp])
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), headers[HeaderSignature])
	assert.Equal(t, "application/json", headers[HeaderType])

	for _, v := range headers {
		assert.NotContains(t, v, "test_secret_key")
	}

	assert.True(t, VerifyHeaders(headers, creds.APISecret, OrderEndpoint(), nil))
	assert.False(t, VerifyHeaders(headers, []byte("other"), OrderEndpoint(), nil))
	assert.False(t, VerifyHeaders(headers, creds.APISecret, Endpoint{Method: "GET", Path: DefaultOrderPath}, nil))
}

func TestBuildHeaders_DefaultEndpoint(t *testing.T) {
	now := time.UnixMilli(1)
	creds := &models.ExchangeCredentials{APIKey: "k", APISecret: []byte("s")}

	a, err := BuildHeaders(creds, Endpoint{}, nil, now)
	require.NoError(t, err)
	b, err := BuildHeaders(creds, OrderEndpoint(), nil, now)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildHeaders_MissingCredentials(t *testing.T) {
	tests := []struct {
		creds *models.ExchangeCredentials
		name  string
	}{
		{name: "nil", creds: nil},
		{name: "no key", creds: &models.ExchangeCredentials{APISecret: []byte("s")}},
		{name: "no secret", creds: &models.ExchangeCredentials{APIKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildHeaders(tt.creds, OrderEndpoint(), nil, time.Now())
			assert.ErrorIs(t, err, ErrMissingCredentials)
		})
	}
}

func TestVerifyHeaders_BadTimestamp(t *testing.T) {
	assert.False(t, VerifyHeaders(map[string]string{HeaderTimestamp: "abc"}, []byte("s"), OrderEndpoint(), nil))
}

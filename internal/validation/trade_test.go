package validation

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tradeguard/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestDefaultPolicy_Symbols(t *testing.T) {
	require.Len(t, DefaultSymbols, 24)
	for _, s := range DefaultSymbols {
		assert.True(t, strings.HasSuffix(s, QuoteCurrency), s)
	}
}

func TestValidateSymbol(t *testing.T) {
	v := New(DefaultPolicy())

	// Все одобренные символы валидны в любом регистре
	for _, s := range DefaultSymbols {
		mixed := " " + s[:1] + strings.ToLower(s[1:]) + " "
		for _, input := range []string{s, strings.ToLower(s), mixed} {
			res := v.ValidateSymbol(input)
			require.True(t, res.Valid, input)
			assert.Equal(t, s, res.Symbol)
			assert.NoError(t, res.Err())
		}
	}

	for _, s := range []string{"BTCUSD", "INVALID", "ETHBTC", "FAKEUSD", "", "BTC USDT"} {
		t.Run("invalid "+s, func(t *testing.T) {
			res := v.ValidateSymbol(s)
			assert.False(t, res.Valid)
			assert.NotEmpty(t, res.Error)
			assert.ErrorIs(t, res.Err(), ErrSymbolNotApproved)
		})
	}

	res := v.ValidateSymbol("fakeusd")
	assert.Contains(t, res.Error, "not approved")
}

func TestValidateAmount(t *testing.T) {
	v := New(DefaultPolicy())

	tests := []struct {
		name        string
		amount      string
		market      models.Market
		errMsg      string
		wantKind    error
		wantWarning bool
	}{
		{name: "minimum", amount: "5", market: models.MarketSpot},
		{name: "typical", amount: "100.0", market: models.MarketSpot},
		{name: "spot maximum", amount: "10000", market: models.MarketSpot, wantWarning: true},
		{name: "spot at high value threshold", amount: "5000", market: models.MarketSpot},
		{name: "spot above high value threshold", amount: "5000.01", market: models.MarketSpot, wantWarning: true},
		{name: "futures high value", amount: "15000", market: models.MarketFutures, wantWarning: true},
		{name: "futures maximum", amount: "50000", market: models.MarketFutures, wantWarning: true},
		{name: "zero", amount: "0", market: models.MarketSpot, wantKind: ErrAmountOutOfBounds, errMsg: "below minimum"},
		{name: "negative", amount: "-100", market: models.MarketSpot, wantKind: ErrAmountOutOfBounds, errMsg: "below minimum"},
		{name: "below minimum", amount: "4.99", market: models.MarketSpot, wantKind: ErrAmountOutOfBounds, errMsg: "below minimum"},
		{name: "above spot maximum", amount: "10000.01", market: models.MarketSpot, wantKind: ErrAmountOutOfBounds, errMsg: "exceeds maximum"},
		{name: "above futures maximum", amount: "50001", market: models.MarketFutures, wantKind: ErrAmountOutOfBounds, errMsg: "exceeds maximum"},
		{name: "unknown market", amount: "100", market: "options", wantKind: ErrInvalidField, errMsg: "unknown market"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateAmount(dec(tt.amount), tt.market)

			if tt.wantKind != nil {
				assert.False(t, res.Valid)
				assert.Contains(t, res.Error, tt.errMsg)
				assert.ErrorIs(t, res.Err(), tt.wantKind)
				return
			}

			require.True(t, res.Valid, res.Error)
			assert.True(t, dec(tt.amount).Equal(res.Amount))
			if tt.wantWarning {
				assert.NotEmpty(t, res.Warning)
			} else {
				assert.Empty(t, res.Warning)
			}
		})
	}
}

func TestValidateLeverage(t *testing.T) {
	v := New(DefaultPolicy())

	tests := []struct {
		name        string
		leverage    string
		want        int64
		wantErr     bool
		wantWarning bool
	}{
		{name: "1x", leverage: "1", want: 1},
		{name: "10x", leverage: "10", want: 10},
		{name: "19x", leverage: "19", want: 19},
		{name: "20x warns", leverage: "20", want: 20, wantWarning: true},
		{name: "50x warns", leverage: "50", want: 50, wantWarning: true},
		{name: "max", leverage: "125", want: 125, wantWarning: true},
		{name: "integral decimal", leverage: "5.0", want: 5},
		{name: "zero", leverage: "0", wantErr: true},
		{name: "negative", leverage: "-1", wantErr: true},
		{name: "above max", leverage: "150", wantErr: true},
		{name: "fractional", leverage: "2.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateLeverage(dec(tt.leverage))

			if tt.wantErr {
				assert.False(t, res.Valid)
				assert.NotEmpty(t, res.Error)
				assert.ErrorIs(t, res.Err(), ErrLeverageOutOfBounds)
				return
			}

			require.True(t, res.Valid, res.Error)
			assert.Equal(t, tt.want, res.Leverage)
			if tt.wantWarning {
				assert.Contains(t, res.Warning, "High leverage")
			} else {
				assert.Empty(t, res.Warning)
			}
		})
	}

	assert.Contains(t, v.ValidateLeverage(dec("150")).Error, "exceeds maximum")
}

func TestValidateSlippage(t *testing.T) {
	v := New(DefaultPolicy())

	for _, s := range []string{"0.1", "1.0", "5.0", "10.0", "20.0"} {
		res := v.ValidateSlippage(dec(s))
		require.True(t, res.Valid, s)
		assert.True(t, dec(s).Equal(res.Slippage))
	}

	for _, s := range []string{"0", "-1", "25.0", "20.0001"} {
		res := v.ValidateSlippage(dec(s))
		assert.False(t, res.Valid, s)
		assert.ErrorIs(t, res.Err(), ErrSlippageOutOfBounds)
	}

	assert.Empty(t, v.ValidateSlippage(dec("5")).Warning)
	assert.NotEmpty(t, v.ValidateSlippage(dec("5.5")).Warning)
}

func TestValidateWalletAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		chain   models.Chain
		valid   bool
	}{
		{name: "ethereum checksummed", address: "0x742d35Cc6634C0532925a3b8D1C6C5D8c4c59ae1", chain: models.ChainEthereum, valid: true},
		{name: "ethereum usdt", address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", chain: models.ChainEthereum, valid: true},
		{name: "ethereum garbage", address: "invalid_address", chain: models.ChainEthereum},
		{name: "ethereum too short", address: "0x123", chain: models.ChainEthereum},
		{name: "ethereum missing 0x", address: "742d35Cc6634C0532925a3b8D1C6C5D8c4c59ae1", chain: models.ChainEthereum},
		{name: "ethereum empty", address: "", chain: models.ChainEthereum},
		{name: "ethereum non-hex", address: "0xZZ2d35Cc6634C0532925a3b8D1C6C5D8c4c59ae1", chain: models.ChainEthereum},
		{name: "solana", address: "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", chain: models.ChainSolana, valid: true},
		{name: "solana with zero", address: "0WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", chain: models.ChainSolana},
		{name: "aptos", address: "0x1", chain: models.ChainAptos, valid: true},
		{name: "unknown chain", address: "0x742d35Cc6634C0532925a3b8D1C6C5D8c4c59ae1", chain: "bitcoin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateWalletAddress(tt.address, tt.chain)
			assert.Equal(t, tt.valid, res.Valid)
			if tt.valid {
				assert.Equal(t, tt.address, res.Address)
			} else {
				assert.ErrorIs(t, res.Err(), ErrInvalidWalletAddress)
			}
		})
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte("symbol=BTCUSDT&quantity=1.0&timestamp=1699123456789")
	secret := []byte("test_secret_key")

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifySignature(payload, expected, secret))
	assert.False(t, VerifySignature(payload, "invalid_sig", secret))
	assert.False(t, VerifySignature(payload, expected, []byte("other")))
	assert.False(t, VerifySignature(append(payload, '0'), expected, secret))
}

func TestValidateTrade(t *testing.T) {
	v := New(DefaultPolicy())

	t.Run("normalizes and defaults", func(t *testing.T) {
		req, warnings, err := v.ValidateTrade(models.TradeRequest{
			Symbol: "btcusdt",
			Side:   "buy",
			Amount: dec("100"),
		})
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, "BTCUSDT", req.Symbol)
		assert.Equal(t, models.SideBuy, req.Side)
		assert.Equal(t, models.OrderTypeMarket, req.OrderType)
		assert.Equal(t, models.MarketSpot, req.Market)
	})

	t.Run("futures with warnings", func(t *testing.T) {
		_, warnings, err := v.ValidateTrade(models.TradeRequest{
			Symbol:   "ETHUSDT",
			Side:     models.SideSell,
			Amount:   dec("15000"),
			Market:   models.MarketFutures,
			Leverage: decPtr("50"),
			Slippage: decPtr("6"),
		})
		require.NoError(t, err)
		assert.Len(t, warnings, 3)
	})

	tests := []struct {
		name  string
		kind  error
		field string
		req   models.TradeRequest
	}{
		{
			name:  "symbol",
			req:   models.TradeRequest{Symbol: "FAKEUSD", Side: models.SideBuy, Amount: dec("100")},
			kind:  ErrSymbolNotApproved,
			field: "symbol",
		},
		{
			name:  "side",
			req:   models.TradeRequest{Symbol: "BTCUSDT", Side: "HOLD", Amount: dec("100")},
			kind:  ErrInvalidField,
			field: "side",
		},
		{
			name:  "type",
			req:   models.TradeRequest{Symbol: "BTCUSDT", Side: models.SideBuy, OrderType: "STOP", Amount: dec("100")},
			kind:  ErrInvalidField,
			field: "type",
		},
		{
			name:  "amount",
			req:   models.TradeRequest{Symbol: "BTCUSDT", Side: models.SideBuy, Amount: dec("0")},
			kind:  ErrAmountOutOfBounds,
			field: "amount",
		},
		{
			name:  "leverage",
			req:   models.TradeRequest{Symbol: "BTCUSDT", Side: models.SideBuy, Amount: dec("500"), Market: models.MarketFutures, Leverage: decPtr("150")},
			kind:  ErrLeverageOutOfBounds,
			field: "leverage",
		},
		{
			name:  "slippage",
			req:   models.TradeRequest{Symbol: "BTCUSDT", Side: models.SideBuy, Amount: dec("100"), Slippage: decPtr("25")},
			kind:  ErrSlippageOutOfBounds,
			field: "slippage",
		},
	}

	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			_, warnings, err := v.ValidateTrade(tt.req)
			require.Error(t, err)
			assert.Nil(t, warnings)
			assert.ErrorIs(t, err, tt.kind)

			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

package validation

import (
	"github.com/shopspring/decimal"

	"github.com/iudanet/tradeguard/internal/models"
)

// QuoteCurrency - все одобренные символы котируются в USDT
const QuoteCurrency = "USDT"

// DefaultSymbols - разрешенные торговые пары
var DefaultSymbols = []string{
	"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT", "ADAUSDT",
	"DOGEUSDT", "AVAXUSDT", "DOTUSDT", "LINKUSDT", "MATICUSDT", "LTCUSDT",
	"ATOMUSDT", "UNIUSDT", "APTUSDT", "ARBUSDT", "OPUSDT", "SUIUSDT",
	"NEARUSDT", "FILUSDT", "TRXUSDT", "INJUSDT", "SEIUSDT", "ASTERUSDT",
}

// MarketBounds are notional limits of one market, in quote units.
type MarketBounds struct {
	Min       decimal.Decimal
	Max       decimal.Decimal
	HighValue decimal.Decimal // выше - предупреждение, не отказ
}

// Policy is the static configuration read by the validators.
type Policy struct {
	Markets         map[models.Market]MarketBounds
	MaxSlippage     decimal.Decimal
	SlippageWarning decimal.Decimal
	Symbols         []string
	MaxLeverage     int64
	LeverageWarning int64
}

// DefaultPolicy returns the production trading limits.
func DefaultPolicy() Policy {
	return Policy{
		Symbols: DefaultSymbols,
		Markets: map[models.Market]MarketBounds{
			models.MarketSpot: {
				Min:       decimal.NewFromInt(5),
				Max:       decimal.NewFromInt(10000),
				HighValue: decimal.NewFromInt(5000),
			},
			models.MarketFutures: {
				Min:       decimal.NewFromInt(5),
				Max:       decimal.NewFromInt(50000),
				HighValue: decimal.NewFromInt(10000),
			},
		},
		MaxLeverage:     125,
		LeverageWarning: 20,
		MaxSlippage:     decimal.NewFromInt(20),
		SlippageWarning: decimal.NewFromInt(5),
	}
}

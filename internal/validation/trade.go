package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iudanet/tradeguard/internal/crypto"
	"github.com/iudanet/tradeguard/internal/models"
)

var (
	ethereumAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	// base58 без 0, O, I, l
	solanaAddressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	aptosAddressPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)
)

// Validator checks trade parameters against a Policy. It has no mutable
// state and is safe for concurrent use.
type Validator struct {
	symbols map[string]struct{}
	policy  Policy
}

// New creates a Validator for policy.
func New(policy Policy) *Validator {
	symbols := make(map[string]struct{}, len(policy.Symbols))
	for _, s := range policy.Symbols {
		symbols[NormalizeSymbol(s)] = struct{}{}
	}
	return &Validator{policy: policy, symbols: symbols}
}

// Policy returns the policy the validator was built with.
func (v *Validator) Policy() Policy {
	return v.policy
}

// NormalizeSymbol trims and upper-cases a symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateSymbol matches symbol case-insensitively against the allow-list.
func (v *Validator) ValidateSymbol(symbol string) Result {
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return invalid(ErrSymbolNotApproved, "symbol", "symbol is required")
	}

	if _, ok := v.symbols[normalized]; !ok {
		return invalid(ErrSymbolNotApproved, "symbol",
			fmt.Sprintf("symbol %s is not approved for trading", normalized))
	}

	return Result{Valid: true, Symbol: normalized}
}

// ValidateAmount checks the notional amount against the market bounds.
func (v *Validator) ValidateAmount(amount decimal.Decimal, market models.Market) Result {
	bounds, ok := v.policy.Markets[market]
	if !ok {
		return invalid(ErrInvalidField, "market", fmt.Sprintf("unknown market %q", market))
	}

	switch {
	case amount.LessThanOrEqual(decimal.Zero), amount.LessThan(bounds.Min):
		return invalid(ErrAmountOutOfBounds, "amount",
			fmt.Sprintf("amount %s is below minimum %s %s", amount, bounds.Min, QuoteCurrency))
	case amount.GreaterThan(bounds.Max):
		return invalid(ErrAmountOutOfBounds, "amount",
			fmt.Sprintf("amount %s exceeds maximum %s %s for %s", amount, bounds.Max, QuoteCurrency, market))
	}

	res := Result{Valid: true, Amount: amount}
	if amount.GreaterThan(bounds.HighValue) {
		res.Warning = fmt.Sprintf("High value trade: %s %s exceeds %s %s", amount, QuoteCurrency, bounds.HighValue, QuoteCurrency)
	}

	return res
}

// ValidateLeverage accepts integer leverage in [1, MaxLeverage].
func (v *Validator) ValidateLeverage(leverage decimal.Decimal) Result {
	if !leverage.IsInteger() {
		return invalid(ErrLeverageOutOfBounds, "leverage",
			fmt.Sprintf("leverage must be a whole number, got %s", leverage))
	}

	switch {
	case leverage.LessThan(decimal.NewFromInt(1)):
		return invalid(ErrLeverageOutOfBounds, "leverage",
			fmt.Sprintf("leverage %s is below minimum 1", leverage))
	case leverage.GreaterThan(decimal.NewFromInt(v.policy.MaxLeverage)):
		return invalid(ErrLeverageOutOfBounds, "leverage",
			fmt.Sprintf("leverage %s exceeds maximum %d", leverage, v.policy.MaxLeverage))
	}

	lev := leverage.IntPart()
	res := Result{Valid: true, Leverage: lev}
	if lev >= v.policy.LeverageWarning {
		res.Warning = fmt.Sprintf("High leverage %dx increases liquidation risk", lev)
	}

	return res
}

// ValidateSlippage accepts a percent in (0, MaxSlippage].
func (v *Validator) ValidateSlippage(pct decimal.Decimal) Result {
	switch {
	case pct.LessThanOrEqual(decimal.Zero):
		return invalid(ErrSlippageOutOfBounds, "slippage", "slippage must be greater than 0%")
	case pct.GreaterThan(v.policy.MaxSlippage):
		return invalid(ErrSlippageOutOfBounds, "slippage",
			fmt.Sprintf("slippage %s%% exceeds maximum %s%%", pct, v.policy.MaxSlippage))
	}

	res := Result{Valid: true, Slippage: pct}
	if pct.GreaterThan(v.policy.SlippageWarning) {
		res.Warning = fmt.Sprintf("High slippage tolerance %s%%", pct)
	}

	return res
}

// ValidateWalletAddress performs a chain-specific format check.
func ValidateWalletAddress(address string, chain models.Chain) Result {
	var pattern *regexp.Regexp
	switch chain {
	case models.ChainEthereum:
		pattern = ethereumAddressPattern
	case models.ChainSolana:
		pattern = solanaAddressPattern
	case models.ChainAptos:
		pattern = aptosAddressPattern
	default:
		return invalid(ErrInvalidWalletAddress, "address", fmt.Sprintf("unknown chain %q", chain))
	}

	if !pattern.MatchString(address) {
		return invalid(ErrInvalidWalletAddress, "address",
			fmt.Sprintf("address is not a valid %s address", chain))
	}

	return Result{Valid: true, Address: address}
}

// VerifySignature reports whether signature is HMAC-SHA256(payload, secret)
// in hex. Comparison is constant-time.
func VerifySignature(payload []byte, signature string, secret []byte) bool {
	return crypto.VerifyHMAC(payload, secret, signature)
}

// ValidateTrade runs every field check of a trade request and returns the
// normalized request with collected warnings. The first failing field wins.
func (v *Validator) ValidateTrade(req models.TradeRequest) (models.TradeRequest, []string, error) {
	var warnings []string
	collect := func(r Result) error {
		if r.Warning != "" {
			warnings = append(warnings, r.Warning)
		}
		return r.Err()
	}

	sym := v.ValidateSymbol(req.Symbol)
	if err := collect(sym); err != nil {
		return req, nil, err
	}
	req.Symbol = sym.Symbol

	side, err := models.ParseSide(string(req.Side))
	if err != nil {
		return req, nil, &FieldError{Kind: ErrInvalidField, Field: "side", Message: err.Error()}
	}
	req.Side = side

	orderType, err := models.ParseOrderType(string(req.OrderType))
	if err != nil {
		return req, nil, &FieldError{Kind: ErrInvalidField, Field: "type", Message: err.Error()}
	}
	req.OrderType = orderType

	if req.Market == "" {
		req.Market = models.MarketSpot
	}
	if err := collect(v.ValidateAmount(req.Amount, req.Market)); err != nil {
		return req, nil, err
	}

	if req.Leverage != nil {
		if err := collect(v.ValidateLeverage(*req.Leverage)); err != nil {
			return req, nil, err
		}
	}

	if req.Slippage != nil {
		if err := collect(v.ValidateSlippage(*req.Slippage)); err != nil {
			return req, nil, err
		}
	}

	return req, warnings, nil
}

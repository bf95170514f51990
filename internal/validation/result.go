package validation

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Error kinds of validation failures
var (
	ErrSymbolNotApproved    = errors.New("symbol not approved")
	ErrAmountOutOfBounds    = errors.New("amount out of bounds")
	ErrLeverageOutOfBounds  = errors.New("leverage out of bounds")
	ErrSlippageOutOfBounds  = errors.New("slippage out of bounds")
	ErrInvalidWalletAddress = errors.New("invalid wallet address")
	ErrSignatureMismatch    = errors.New("signature mismatch")
	// ErrInvalidField covers enumerated fields: side, type, market.
	ErrInvalidField = errors.New("invalid field")
)

// FieldError describes a single rejected field.
type FieldError struct {
	Kind    error  `json:"-"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Message
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

// Result is returned by every validator. On success Error is empty and the
// normalized value is set; Warning may be set either way and must be shown to
// the user without blocking.
type Result struct {
	Kind     error           `json:"-"`
	Amount   decimal.Decimal `json:"amount"`
	Slippage decimal.Decimal `json:"slippage"`
	Field    string          `json:"field,omitempty"`
	Error    string          `json:"error,omitempty"`
	Warning  string          `json:"warning,omitempty"`
	Symbol   string          `json:"symbol,omitempty"`
	Address  string          `json:"address,omitempty"`
	Leverage int64           `json:"leverage,omitempty"`
	Valid    bool            `json:"valid"`
}

// Err returns nil for a valid result, otherwise a *FieldError matching Kind.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &FieldError{Kind: r.Kind, Field: r.Field, Message: r.Error}
}

func invalid(kind error, field, msg string) Result {
	return Result{Kind: kind, Field: field, Error: msg}
}

package trade

import (
	"errors"
)

var (
	// ErrPermissionDenied - у аккаунта нет права trade
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRateLimited - превышен лимит на эндпоинте trade
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidTradeRequest - заявка не прошла валидацию
	ErrInvalidTradeRequest = errors.New("invalid trade request")
	// ErrNoWalletConfigured - у пользователя нет кошелька
	ErrNoWalletConfigured = errors.New("no wallet configured")
)

// Rejection is a terminal gate failure. It matches its Kind with errors.Is
// and, for validation failures, the field-specific validation kind as well.
type Rejection struct {
	Kind   error
	Cause  error
	Field  string // поле заявки для ErrInvalidTradeRequest
	Reason string // одна человекочитаемая причина
	Hint   string // что сделать пользователю, может быть пустым
}

func (r *Rejection) Error() string {
	if r.Field != "" {
		return r.Kind.Error() + ": " + r.Field + ": " + r.Reason
	}
	return r.Kind.Error() + ": " + r.Reason
}

func (r *Rejection) Unwrap() []error {
	if r.Cause == nil {
		return []error{r.Kind}
	}
	return []error{r.Kind, r.Cause}
}

// label - значение label для метрик
func (r *Rejection) label() string {
	switch {
	case errors.Is(r.Kind, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(r.Kind, ErrRateLimited):
		return "rate_limited"
	case errors.Is(r.Kind, ErrInvalidTradeRequest):
		return "invalid_request"
	case errors.Is(r.Kind, ErrNoWalletConfigured):
		return "no_wallet"
	default:
		return "other"
	}
}

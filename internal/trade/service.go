// Package trade turns an authenticated trade request into a signed payload
// ready for the exchange call.
package trade

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/iudanet/tradeguard/internal/crypto"
	"github.com/iudanet/tradeguard/internal/exchange"
	"github.com/iudanet/tradeguard/internal/metrics"
	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/ratelimit"
	"github.com/iudanet/tradeguard/internal/validation"
	"github.com/iudanet/tradeguard/internal/vault"
)

// Endpoint - имя эндпоинта в лимитере
const Endpoint = "trade"

// Validator checks and normalizes a trade request.
type Validator interface {
	ValidateTrade(req models.TradeRequest) (models.TradeRequest, []string, error)
}

// Limiter admits requests per endpoint and identity.
type Limiter interface {
	Check(ctx context.Context, endpoint, identity string) (ratelimit.Decision, error)
}

// Signer signs trade fields with the owner's wallet.
type Signer interface {
	Sign(ctx context.Context, ownerID string, fields map[string]any) (*vault.SignResult, error)
}

// CredentialSource opens the exchange credentials of a user.
type CredentialSource interface {
	ExchangeCredentials(user *models.User) (*models.ExchangeCredentials, error)
}

// Auditor records sensitive actions.
type Auditor interface {
	Record(ctx context.Context, action, userID, clientIP string, details map[string]any) (*models.AuditRecord, error)
}

// Principal is an authenticated caller.
type Principal struct {
	User    *models.User
	Session *models.Session
}

// Config holds orchestrator dependencies. Auditor, Logger and Metrics are optional.
type Config struct {
	Validator   Validator
	Limiter     Limiter
	Signer      Signer
	Credentials CredentialSource
	Auditor     Auditor
	Now         func() time.Time
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Endpoint    exchange.Endpoint
}

// Service is the Trade Signing Orchestrator.
type Service struct {
	validator   Validator
	limiter     Limiter
	signer      Signer
	credentials CredentialSource
	auditor     Auditor
	logger      *zap.Logger
	metrics     *metrics.Metrics
	endpoint    exchange.Endpoint
}

// NewService creates the orchestrator.
func NewService(cfg Config) (*Service, error) {
	if cfg.Validator == nil || cfg.Limiter == nil || cfg.Signer == nil || cfg.Credentials == nil {
		return nil, fmt.Errorf("trade service: validator, limiter, signer and credentials are required")
	}

	s := &Service{
		validator:   cfg.Validator,
		limiter:     cfg.Limiter,
		signer:      cfg.Signer,
		credentials: cfg.Credentials,
		auditor:     cfg.Auditor,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		endpoint:    cfg.Endpoint,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.endpoint.Method == "" {
		s.endpoint.Method = exchange.DefaultOrderMethod
	}
	if s.endpoint.Path == "" {
		s.endpoint.Path = exchange.DefaultOrderPath
	}
	return s, nil
}

// ExecuteSecureTrade runs the gates in order: permission, validation, rate
// limit, wallet and signature, exchange headers. The first failing gate
// aborts with a *Rejection; vault and storage faults are returned as is.
func (s *Service) ExecuteSecureTrade(ctx context.Context, p Principal, req models.TradeRequest) (*models.SignedTradePayload, error) {
	if p.User == nil || p.Session == nil {
		return nil, fmt.Errorf("trade: unauthenticated request")
	}
	if p.Session.Mode != models.SessionModeLive && p.Session.Mode != models.SessionModeDemo {
		return nil, fmt.Errorf("trade: unknown session mode %s", p.Session.Mode)
	}
	userID := p.User.ID

	// 1. Права
	if !p.User.Permissions.Has(models.PermissionTrade) {
		return nil, s.reject(ctx, p, &Rejection{
			Kind:   ErrPermissionDenied,
			Reason: "trade permission is required",
			Hint:   "ask an administrator to grant the trade permission",
		})
	}

	// 2. Валидация до лимитера: невалидная заявка не расходует квоту
	normalized, warnings, err := s.validator.ValidateTrade(req)
	if err != nil {
		return nil, s.reject(ctx, p, invalidRequest(err))
	}

	// 3. Лимит
	decision, err := s.limiter.Check(ctx, Endpoint, userID)
	if err != nil {
		s.logger.Error("rate limit check failed", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("trade: %w", err)
	}
	if !decision.Allowed {
		return nil, s.reject(ctx, p, &Rejection{
			Kind:   ErrRateLimited,
			Cause:  ratelimit.ErrRateLimited,
			Reason: decision.Error,
			Hint:   fmt.Sprintf("retry in %s", decision.RetryAfter.Round(time.Second)),
		})
	}

	// 4-5. Кошелек и подпись
	fields := normalized.Fields()
	signed, err := s.signer.Sign(ctx, userID, fields)
	if err != nil {
		if errors.Is(err, vault.ErrNoWalletForOwner) {
			return nil, s.reject(ctx, p, &Rejection{
				Kind:   ErrNoWalletConfigured,
				Reason: "no wallet is configured for this account",
				Hint:   "create or import a wallet before trading",
			})
		}
		return nil, fmt.Errorf("trade: %w", err)
	}

	payload := &models.SignedTradePayload{
		TradeData:     fields,
		Signature:     signed.Signature,
		WalletAddress: signed.Address,
		Message:       signed.Message,
		Warnings:      warnings,
		Timestamp:     signed.Timestamp,
		Nonce:         signed.Nonce,
	}

	// 6. Ветвление по режиму сессии
	switch p.Session.Mode {
	case models.SessionModeLive:
		query := exchange.OrderQuery(fields, signed.Timestamp)
		headers, err := s.headers(p.User, query, time.UnixMilli(signed.Timestamp))
		if err != nil {
			return nil, err
		}
		payload.Headers = headers
		payload.Query = query.Encode()
		payload.Status = models.TradeStatusReadyForExecution
	case models.SessionModeDemo:
		payload.Status = models.TradeStatusSimulated
	default:
		return nil, fmt.Errorf("trade: unknown session mode %s", p.Session.Mode)
	}

	s.metrics.TradeSigned(p.Session.Mode.String())
	s.logger.Info("trade signed",
		zap.String("user_id", userID),
		zap.String("symbol", normalized.Symbol),
		zap.String("side", string(normalized.Side)),
		zap.String("mode", p.Session.Mode.String()),
		zap.Strings("warnings", warnings),
	)
	s.audit(ctx, p, "trade_signed", map[string]any{
		"symbol":         normalized.Symbol,
		"side":           string(normalized.Side),
		"amount":         normalized.Amount.String(),
		"market":         string(normalized.Market),
		"mode":           p.Session.Mode.String(),
		"status":         string(payload.Status),
		"wallet_address": payload.WalletAddress,
	})

	return payload, nil
}

// headers открывает секрет биржи только на время вычисления HMAC над query
func (s *Service) headers(user *models.User, query url.Values, ts time.Time) (map[string]string, error) {
	creds, err := s.credentials.ExchangeCredentials(user)
	if err != nil {
		return nil, fmt.Errorf("trade: exchange credentials: %w", err)
	}
	defer crypto.Wipe(creds.APISecret)

	headers, err := exchange.BuildHeaders(creds, s.endpoint, query, ts)
	if err != nil {
		return nil, fmt.Errorf("trade: %w", err)
	}
	return headers, nil
}

func (s *Service) reject(ctx context.Context, p Principal, r *Rejection) error {
	s.metrics.TradeRejected(r.label())
	s.logger.Warn("trade rejected",
		zap.String("user_id", p.User.ID),
		zap.String("kind", r.label()),
		zap.String("field", r.Field),
		zap.String("reason", r.Reason),
	)
	s.audit(ctx, p, "trade_rejected", map[string]any{
		"kind":   r.label(),
		"field":  r.Field,
		"reason": r.Reason,
	})
	return r
}

// audit не прерывает операцию: сбой записи только логируется
func (s *Service) audit(ctx context.Context, p Principal, action string, details map[string]any) {
	if s.auditor == nil {
		return
	}
	if _, err := s.auditor.Record(ctx, action, p.User.ID, p.Session.IPAddress, details); err != nil {
		s.logger.Error("failed to record audit", zap.String("action", action), zap.Error(err))
	}
}

func invalidRequest(err error) *Rejection {
	r := &Rejection{Kind: ErrInvalidTradeRequest, Cause: err, Reason: "trade request is invalid"}

	var fe *validation.FieldError
	if errors.As(err, &fe) {
		r.Field = fe.Field
		r.Reason = fe.Message
		r.Hint = hintFor(fe)
	}
	return r
}

func hintFor(fe *validation.FieldError) string {
	switch {
	case errors.Is(fe, validation.ErrSymbolNotApproved):
		return "choose a symbol from the approved list"
	case errors.Is(fe, validation.ErrAmountOutOfBounds):
		return "adjust the amount to the allowed range before retrying"
	case errors.Is(fe, validation.ErrLeverageOutOfBounds):
		return "use a whole-number leverage within the allowed range"
	case errors.Is(fe, validation.ErrSlippageOutOfBounds):
		return "lower the slippage tolerance"
	default:
		return "correct the " + fe.Field + " field"
	}
}

package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side - направление сделки
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide parses BUY/SELL case-insensitively.
func ParseSide(raw string) (Side, error) {
	switch s := Side(strings.ToUpper(strings.TrimSpace(raw))); s {
	case SideBuy, SideSell:
		return s, nil
	default:
		return "", fmt.Errorf("side must be BUY or SELL, got %q", raw)
	}
}

// OrderType - тип ордера
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// ParseOrderType parses MARKET/LIMIT case-insensitively; empty means MARKET.
func ParseOrderType(raw string) (OrderType, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return OrderTypeMarket, nil
	}
	switch t := OrderType(raw); t {
	case OrderTypeMarket, OrderTypeLimit:
		return t, nil
	default:
		return "", fmt.Errorf("order type must be MARKET or LIMIT, got %q", raw)
	}
}

// Market - рынок, от которого зависят границы суммы
type Market string

const (
	MarketSpot    Market = "spot"
	MarketFutures Market = "futures"
)

// TradeRequest - эфемерная заявка, не сохраняется как есть
type TradeRequest struct {
	Amount    decimal.Decimal  `json:"amount"` // номинал в валюте котировки (USDT)
	Leverage  *decimal.Decimal `json:"leverage,omitempty"`
	Slippage  *decimal.Decimal `json:"slippage,omitempty"` // проценты
	Symbol    string           `json:"symbol"`
	Side      Side             `json:"side"`
	OrderType OrderType        `json:"type"`
	Market    Market           `json:"market"`
}

// Fields returns the trade fields in the shape embedded into the signed
// message and the outbound trade data. Amount and slippage are rendered as
// decimal strings so that no float rounding reaches the signature.
func (r TradeRequest) Fields() map[string]any {
	fields := map[string]any{
		"symbol": r.Symbol,
		"side":   string(r.Side),
		"amount": r.Amount.String(),
		"type":   string(r.OrderType),
		"market": string(r.Market),
	}
	if r.Leverage != nil {
		fields["leverage"] = r.Leverage.IntPart()
	}
	if r.Slippage != nil {
		fields["slippage"] = r.Slippage.String()
	}
	return fields
}

// TradeStatus - итоговый статус подготовленной заявки
type TradeStatus string

const (
	TradeStatusReadyForExecution TradeStatus = "ready_for_execution"
	TradeStatusSimulated         TradeStatus = "simulated"
)

// SignedTradePayload is the unit handed to the exchange-call collaborator.
type SignedTradePayload struct {
	TradeData     map[string]any    `json:"trade_data"`
	Headers       map[string]string `json:"headers,omitempty"`
	Query         string            `json:"query,omitempty"` // параметры, покрытые X-MBX-SIGNATURE
	Signature     string            `json:"signature"`
	WalletAddress string            `json:"wallet_address"`
	Message       string            `json:"message"`
	Status        TradeStatus       `json:"status"`
	Warnings      []string          `json:"warnings,omitempty"`
	Timestamp     int64             `json:"timestamp"` // unix ms
	Nonce         uint64            `json:"nonce"`
}

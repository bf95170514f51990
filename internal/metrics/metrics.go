// Package metrics holds the prometheus collectors of the security core.
// All methods are no-ops on a nil *Metrics.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradeguard"

// Metrics is a set of counters registered on a private registry.
type Metrics struct {
	registry       *prometheus.Registry
	logins         *prometheus.CounterVec
	sessions       *prometheus.CounterVec
	tradesSigned   *prometheus.CounterVec
	tradesRejected *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
	vaultOps       *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by result.",
			},
			[]string{"result"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_validations_total",
				Help:      "Session token validations by result.",
			},
			[]string{"result"},
		),
		tradesSigned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_signed_total",
				Help:      "Signed trade payloads by session mode.",
			},
			[]string{"mode"},
		),
		tradesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_rejected_total",
				Help:      "Rejected trade requests by rejection kind.",
			},
			[]string{"kind"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter.",
			},
			[]string{"endpoint"},
		),
		vaultOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vault_operations_total",
				Help:      "Wallet vault operations by operation and result.",
			},
			[]string{"op", "result"},
		),
	}

	m.registry.MustRegister(m.logins, m.sessions, m.tradesSigned, m.tradesRejected, m.rateLimited, m.vaultOps)
	m.registry.MustRegister(collectors.NewGoCollector())

	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Login counts a login attempt; result is "success", "invalid" or "error".
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// SessionValidation counts a token validation.
func (m *Metrics) SessionValidation(result string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(result).Inc()
}

// TradeSigned counts a signed payload.
func (m *Metrics) TradeSigned(mode string) {
	if m == nil {
		return
	}
	m.tradesSigned.WithLabelValues(mode).Inc()
}

// TradeRejected counts a rejected trade.
func (m *Metrics) TradeRejected(kind string) {
	if m == nil {
		return
	}
	m.tradesRejected.WithLabelValues(kind).Inc()
}

// RateLimited counts a rejection by the limiter.
func (m *Metrics) RateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

// VaultOp counts a vault operation.
func (m *Metrics) VaultOp(op, result string) {
	if m == nil {
		return
	}
	m.vaultOps.WithLabelValues(op, result).Inc()
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iudanet/tradeguard/internal/app"
	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/trade"
)

type tradeFlags struct {
	symbol    string
	side      string
	amount    string
	orderType string
	market    string
	leverage  string
	slippage  string
}

func (f tradeFlags) request() (models.TradeRequest, error) {
	amount, err := decimal.NewFromString(f.amount)
	if err != nil {
		return models.TradeRequest{}, fmt.Errorf("invalid --amount %q", f.amount)
	}

	req := models.TradeRequest{
		Symbol:    f.symbol,
		Side:      models.Side(f.side),
		Amount:    amount,
		OrderType: models.OrderType(f.orderType),
		Market:    models.Market(f.market),
	}

	if f.leverage != "" {
		lev, err := decimal.NewFromString(f.leverage)
		if err != nil {
			return models.TradeRequest{}, fmt.Errorf("invalid --leverage %q", f.leverage)
		}
		req.Leverage = &lev
	}
	if f.slippage != "" {
		slip, err := decimal.NewFromString(f.slippage)
		if err != nil {
			return models.TradeRequest{}, fmt.Errorf("invalid --slippage %q", f.slippage)
		}
		req.Slippage = &slip
	}

	return req, nil
}

func (r *runner) tradeCommand() *cobra.Command {
	var f tradeFlags

	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Validate and sign a trade request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			return r.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return r.runTrade(ctx, a, req)
			})
		},
	}

	cmd.Flags().StringVar(&f.symbol, "symbol", "", "trading pair, e.g. BTCUSDT")
	cmd.Flags().StringVar(&f.side, "side", "", "BUY or SELL")
	cmd.Flags().StringVar(&f.amount, "amount", "", "notional amount in USDT")
	cmd.Flags().StringVar(&f.orderType, "type", "MARKET", "MARKET or LIMIT")
	cmd.Flags().StringVar(&f.market, "market", string(models.MarketSpot), "spot or futures")
	cmd.Flags().StringVar(&f.leverage, "leverage", "", "whole-number leverage")
	cmd.Flags().StringVar(&f.slippage, "slippage", "", "slippage tolerance in percent")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("side")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func (r *runner) runTrade(ctx context.Context, a *app.App, req models.TradeRequest) error {
	p, _, err := r.principal(ctx, a)
	if err != nil {
		return err
	}

	payload, err := a.Trades.ExecuteSecureTrade(ctx, p, req)
	if err != nil {
		var rej *trade.Rejection
		if errors.As(err, &rej) && rej.Hint != "" {
			return fmt.Errorf("%w (%s)", err, rej.Hint)
		}
		return err
	}

	for _, w := range payload.Warnings {
		r.io.Printf("⚠️  %s\n", w)
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	r.io.Printf("%s\n", out)

	return nil
}

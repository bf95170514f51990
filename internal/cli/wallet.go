package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tradeguard/internal/app"
	"github.com/iudanet/tradeguard/internal/models"
)

func (r *runner) walletCommand() *cobra.Command {
	var chain string

	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the signing wallet",
	}
	cmd.PersistentFlags().StringVar(&chain, "chain", string(models.ChainEthereum), "wallet chain")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Generate a new wallet, replacing the current one",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return r.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
					return r.runWalletStore(ctx, a, chain, false)
				})
			},
		},
		&cobra.Command{
			Use:   "import",
			Short: "Import a hex private key, replacing the current wallet",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return r.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
					return r.runWalletStore(ctx, a, chain, true)
				})
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the wallet address",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return r.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
					p, _, err := r.principal(ctx, a)
					if err != nil {
						return err
					}
					info, err := a.Vault.GetWallet(ctx, p.User.ID)
					if err != nil {
						return err
					}
					r.printWallet(info)
					return nil
				})
			},
		},
	)

	return cmd
}

func (r *runner) runWalletStore(ctx context.Context, a *app.App, rawChain string, imported bool) error {
	c, err := models.ParseChain(rawChain)
	if err != nil {
		return err
	}

	p, _, err := r.principal(ctx, a)
	if err != nil {
		return err
	}

	var (
		info   *models.WalletInfo
		action = "wallet_created"
	)
	if imported {
		action = "wallet_imported"
		key, err := r.io.ReadPassword("Private key (hex): ")
		if err != nil {
			return fmt.Errorf("failed to read private key: %w", err)
		}
		info, err = a.Vault.ImportWallet(ctx, p.User.ID, c, key)
		if err != nil {
			return err
		}
	} else {
		info, err = a.Vault.CreateWallet(ctx, p.User.ID, c)
		if err != nil {
			return err
		}
	}

	record(ctx, a, action, p.User.ID, p.Session.IPAddress, map[string]any{
		"chain":   string(info.Chain),
		"address": info.Address,
	})

	r.io.Println("✓ Wallet ready")
	r.printWallet(info)
	return nil
}

func (r *runner) printWallet(info *models.WalletInfo) {
	r.io.Printf("Chain:   %s\n", info.Chain)
	r.io.Printf("Address: %s\n", info.Address)
	r.io.Printf("Created: %s\n", info.CreatedAt.Format(time.RFC3339))
	if info.LastUsed != nil {
		r.io.Printf("Last used: %s\n", info.LastUsed.Format(time.RFC3339))
	}
}

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tradeguard/internal/app"
	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/session"
)

// CLI работает локально, IP клиента известен заранее
const localClientIP = "127.0.0.1"

func (r *runner) registerCommand() *cobra.Command {
	var email, apiKey string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return r.runRegister(ctx, a, email, apiKey)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "exchange API key")

	return cmd
}

func (r *runner) runRegister(ctx context.Context, a *app.App, email, apiKey string) error {
	r.io.Println("=== Registration ===")

	var err error
	if email == "" {
		if email, err = r.io.ReadInput("Email: "); err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}

	password, err := r.io.ReadPassword("Password (min 12 chars): ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := r.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if apiKey == "" {
		if apiKey, err = r.io.ReadInput("Exchange API key: "); err != nil {
			return fmt.Errorf("failed to read api key: %w", err)
		}
	}
	apiSecret, err := r.io.ReadPassword("Exchange API secret: ")
	if err != nil {
		return fmt.Errorf("failed to read api secret: %w", err)
	}

	user, err := a.Credentials.CreateUser(ctx, email, password, apiKey, apiSecret)
	if err != nil {
		return err
	}

	record(ctx, a, "user_registered", user.ID, localClientIP, map[string]any{
		"email":       user.Email,
		"permissions": user.Permissions.Strings(),
	})

	r.io.Println("✓ Registration successful!")
	r.io.Printf("User ID: %s\n", user.ID)
	r.io.Printf("Email: %s\n", user.Email)
	r.io.Printf("Permissions: %s\n", strings.Join(user.Permissions.Strings(), ", "))
	r.io.Println("Please run 'tradeguard login' to start trading.")

	return nil
}

func (r *runner) loginCommand() *cobra.Command {
	var email, mode string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessionMode, err := models.ParseSessionMode(strings.ToUpper(mode))
			if err != nil {
				return err
			}
			return r.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return r.runLogin(ctx, a, email, sessionMode)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&mode, "mode", "live", "session mode: live or demo")

	return cmd
}

func (r *runner) runLogin(ctx context.Context, a *app.App, email string, mode models.SessionMode) error {
	var err error
	if email == "" {
		if email, err = r.io.ReadInput("Email: "); err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}
	password, err := r.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	sess, err := a.Sessions.Login(ctx, session.LoginRequest{
		Email:    email,
		Password: password,
		ClientIP: localClientIP,
		Mode:     mode,
	})
	if err != nil {
		return err
	}

	if err := saveToken(a.Config.CLI.SessionFile, sess.Token); err != nil {
		return err
	}

	record(ctx, a, "login", sess.UserID, localClientIP, map[string]any{"mode": mode.String()})

	r.io.Println("✓ Login successful!")
	r.io.Printf("Mode: %s\n", mode)
	r.io.Printf("Session expires at: %s\n", sess.ExpiresAt.Format(time.RFC3339))

	return nil
}

func (r *runner) logoutCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, token, err := r.principal(ctx, a)
				if err != nil {
					return err
				}

				if all {
					n, err := a.Sessions.RevokeAll(ctx, p.User.ID)
					if err != nil {
						return err
					}
					r.io.Printf("Revoked %d sessions\n", n)
				} else if err := a.Sessions.Revoke(ctx, token); err != nil {
					return err
				}

				record(ctx, a, "logout", p.User.ID, localClientIP, map[string]any{"all": all})

				if err := removeToken(a.Config.CLI.SessionFile); err != nil {
					return err
				}
				r.io.Println("✓ Logged out")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "revoke every session of the account")

	return cmd
}

func (r *runner) sessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session housekeeping",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired and revoked sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Sessions.PurgeExpired(ctx)
				if err != nil {
					return err
				}
				r.io.Printf("Purged %d sessions\n", n)
				return nil
			})
		},
	})

	return cmd
}

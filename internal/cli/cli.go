// Package cli implements the tradeguard command line.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iudanet/tradeguard/internal/app"
	"github.com/iudanet/tradeguard/internal/config"
	"github.com/iudanet/tradeguard/internal/logging"
	"github.com/iudanet/tradeguard/internal/session"
	"github.com/iudanet/tradeguard/internal/trade"
)

// BuildInfo - версия, заданная через ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// Options configures the root command.
type Options struct {
	IO    IO
	Build BuildInfo
	// Load по умолчанию config.Load
	Load func(path string) (*config.Config, error)
}

type runner struct {
	io              IO
	load            func(path string) (*config.Config, error)
	configPath      string
	metricsTextfile string
	token           string
	build           BuildInfo
}

// NewRootCommand builds the command tree.
func NewRootCommand(opts Options) *cobra.Command {
	r := &runner{io: opts.IO, load: opts.Load, build: opts.Build}
	if r.io == nil {
		r.io = NewStdio()
	}
	if r.load == nil {
		r.load = config.Load
	}

	root := &cobra.Command{
		Use:           "tradeguard",
		Short:         "Security core of the trading assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&r.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&r.metricsTextfile, "metrics-textfile", "", "write prometheus metrics to this file on exit")
	root.PersistentFlags().StringVar(&r.token, "token", "", "session token (overrides "+tokenEnv+" and the session file)")

	root.AddCommand(
		r.registerCommand(),
		r.loginCommand(),
		r.logoutCommand(),
		r.walletCommand(),
		r.tradeCommand(),
		r.auditCommand(),
		r.sessionsCommand(),
		r.versionCommand(),
	)

	return root
}

// withApp собирает приложение на время одной команды
func (r *runner) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) (err error) {
	cfg, err := r.load(r.configPath)
	if err != nil {
		return err
	}
	if r.metricsTextfile != "" {
		cfg.Metrics.Textfile = r.metricsTextfile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("failed to close application", zap.Error(closeErr))
			err = errors.Join(err, closeErr)
		}
	}()

	return fn(ctx, a)
}

// principal проверяет сохраненный токен
func (r *runner) principal(ctx context.Context, a *app.App) (trade.Principal, string, error) {
	token, err := loadToken(r.token, a.Config.CLI.SessionFile)
	if err != nil {
		return trade.Principal{}, "", err
	}

	user, sess, err := a.Sessions.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrSessionExpiredOrInvalid) {
			return trade.Principal{}, "", fmt.Errorf("%w, run 'tradeguard login' again", err)
		}
		return trade.Principal{}, "", err
	}

	return trade.Principal{User: user, Session: sess}, token, nil
}

// record пишет аудит; сбой не прерывает команду
func record(ctx context.Context, a *app.App, action, userID, clientIP string, details map[string]any) {
	if _, err := a.Audit.Record(ctx, action, userID, clientIP, details); err != nil {
		a.Logger.Warn("failed to record audit", zap.String("action", action), zap.Error(err))
	}
}

func (r *runner) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r.io.Printf("tradeguard\n")
			r.io.Printf("Version:    %s\n", r.build.Version)
			r.io.Printf("Build Date: %s\n", r.build.BuildDate)
			r.io.Printf("Git Commit: %s\n", r.build.GitCommit)
			return nil
		},
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nhlagent/internal/app"
)

type cliOptions struct {
	configPath string
	logLevel   string
	cfg        app.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := cliOptions{
		logger: zap.NewNop(),
	}

	root := &cobra.Command{
		Use:           "nhlagent",
		Short:         "Fantasy NHL analytics agent over a cutoff-bounded NHL API gateway",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newAskCmd(&opts),
		newEvaluateCmd(&opts),
		newCatalogCmd(&opts),
		newServeCmd(&opts),
		newValidateCmd(&opts),
	)

	return root
}

func (o *cliOptions) load() error {
	cfg, err := app.LoadConfig(o.configPath, nil)
	if err != nil {
		return exitDomain(err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		return exitError{code: 2, message: err.Error()}
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}

// run builds the application for one command and dumps metrics after fn.
func (o *cliOptions) run(cmd *cobra.Command, fn func(ctx context.Context, application *app.Application) error) error {
	ctx, cancel := signalAwareContext(cmd.Context())
	defer cancel()

	application, cleanup, err := app.InitializeApplication(ctx, o.cfg, o.logger)
	if err != nil {
		return exitDomain(err)
	}
	defer cleanup()

	runErr := fn(ctx, application)
	if err := application.DumpMetrics(); err != nil {
		o.logger.Warn("metrics dump failed", zap.Error(err))
	}
	return runErr
}

func versionString() string {
	if app.Build == "" {
		return app.Version
	}
	return app.Version + " (" + app.Build + ")"
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

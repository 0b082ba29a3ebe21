package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"travelmcp/internal/app"
)

type cliOptions struct {
	configPath string
	envFile    string
	root       string
	dryRun     bool
	verbose    int
	level      zap.AtomicLevel
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{
		level:  zap.NewAtomicLevel(),
		logger: zap.NewNop(),
	}

	root := &cobra.Command{
		Use:           "travelmcp",
		Short:         "Unified registry and delegation gateway for sibling MCP servers",
		Long:          "Discovers sibling *_server packages, supervises their processes and exposes their tools behind one MCP endpoint.\nWithout a subcommand every discovered server is started.",
		Version:       app.Version + " (" + app.Build + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, err := app.ResolveLevel(opts.verbose, "")
			if err != nil {
				return err
			}
			opts.level.SetLevel(level)
			logger, err := app.BuildLogger(opts.level)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStartAll(cmd, &opts, opts.dryRun)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "runtime config file (default runtime_config.yaml or $MCP_CONFIG_PATH)")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file (default .env or $MCP_ENV_FILE)")
	flags.StringVar(&opts.root, "root", "", "directory containing the *_server packages")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "report what would be started without spawning")
	flags.CountVarP(&opts.verbose, "verbose", "v", "increase log verbosity (repeatable)")

	root.AddCommand(
		newListCmd(&opts),
		newStartCmd(&opts),
		newStartAllCmd(&opts),
		newStopCmd(&opts),
		newHealthCmd(&opts),
		newStatusCmd(&opts),
		newPIDsCmd(&opts),
		newVerifyKeyCmd(&opts),
		newToolsCmd(&opts),
		newCallCmd(&opts),
		newConfigCmd(&opts),
		newServeCmd(&opts),
	)
	return root
}

func (o *cliOptions) serveConfig() app.ServeConfig {
	return app.ServeConfig{
		ConfigPath: o.configPath,
		EnvFile:    o.envFile,
		Root:       o.root,
	}
}

// withApplication opens the application for one command and closes it when
// run returns. A configured log level applies unless -v was given.
func (o *cliOptions) withApplication(cmd *cobra.Command, run func(context.Context, *app.Application) error) error {
	ctx, cancel := signalAwareContext(cmd.Context())
	defer cancel()

	application, cleanup, err := app.New(o.logger).Open(ctx, o.serveConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	if o.verbose == 0 {
		level, err := app.ResolveLevel(0, application.Runtime().LogLevel)
		if err != nil {
			o.logger.Warn("ignoring log level", zap.Error(err))
		}
		o.level.SetLevel(level)
	}
	return run(ctx, application)
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

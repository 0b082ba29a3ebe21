package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"travelmcp/internal/app"
	"travelmcp/internal/domain"
	"travelmcp/internal/infra/gateway"
)

func newListCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTool(cmd, opts, "list_servers", nil)
		},
	}
}

func newStartCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start <server>",
		Short: "Start one server in the background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, opts, "start_server", map[string]any{
				"server":  args[0],
				"dry_run": opts.dryRun,
			})
		},
	}
}

func newStartAllCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start-all",
		Short: "Start every discovered server; exits 2 when any fails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStartAll(cmd, opts, opts.dryRun)
		},
	}
}

func runStartAll(cmd *cobra.Command, opts *cliOptions, dryRun bool) error {
	return opts.withApplication(cmd, func(ctx context.Context, application *app.Application) error {
		results, err := application.Supervisor().StartAll(ctx, dryRun)
		if err != nil {
			return exitError{code: exitCodeStartFailure, message: "Error: " + describeError(err)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), gateway.FormatStartAll(results, dryRun))
		for _, ok := range results {
			if !ok {
				return exitSilent(exitCodeStartFailure)
			}
		}
		return nil
	})
}

func newStopCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <server|pid>",
		Short: "Stop a server by name or by process id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"server": args[0]}
			applyToolFlagBindings(cmd.Flags(), params)
			return runTool(cmd, opts, "stop_server", params)
		},
	}
	cmd.Flags().Float64("timeout", domain.DefaultStopTimeout.Seconds(), "seconds to wait before force-killing")
	return cmd
}

func newHealthCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health <server>",
		Short: "Check whether a server's entrypoint is present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, opts, "health_check", map[string]any{"server": args[0]})
		},
	}
}

func newStatusCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize discovered and running servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTool(cmd, opts, "get_status", nil)
		},
	}
}

func newPIDsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pids",
		Short: "List registered server process ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTool(cmd, opts, "list_pids", nil)
		},
	}
}

func newVerifyKeyCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-key",
		Short: "Verify SERPAPI_KEY with one search request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]any{}
			applyToolFlagBindings(cmd.Flags(), params)
			return runTool(cmd, opts, "verify_serpapi_key", params)
		},
	}
	cmd.Flags().Float64("timeout", domain.DefaultVerifyTimeout.Seconds(), "request timeout in seconds")
	return cmd
}

func newToolsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Load every server and list the unified tool namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApplication(cmd, func(ctx context.Context, application *app.Application) error {
				tools, err := application.Tools(ctx)
				if err != nil {
					return err
				}
				return printTools(cmd.OutOrStdout(), tools)
			})
		},
	}
}

func newCallCmd(opts *cliOptions) *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Call an administrative or delegated tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseToolArgs(rawArgs)
			if err != nil {
				return err
			}
			return runTool(cmd, opts, args[0], params)
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "tool arguments as a JSON object")
	return cmd
}

func newConfigCmd(opts *cliOptions) *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApplication(cmd, func(_ context.Context, application *app.Application) error {
				settings := application.Config().Redacted()
				if showSecrets {
					settings = application.Config().Settings()
				}
				return writeYAML(cmd.OutOrStdout(), settings)
			})
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print credentials instead of masking them")
	return cmd
}

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the unified tool surface over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApplication(cmd, func(ctx context.Context, application *app.Application) error {
				err := application.Serve(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

func runTool(cmd *cobra.Command, opts *cliOptions, name string, params map[string]any) error {
	return opts.withApplication(cmd, func(ctx context.Context, application *app.Application) error {
		result, err := application.Call(ctx, name, params)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
	})
}

// applyToolFlagBindings copies explicitly set tool flags into params so
// unset flags fall back to the configured defaults.
func applyToolFlagBindings(flags *pflag.FlagSet, params map[string]any) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "timeout":
			params["timeout"], _ = flags.GetFloat64("timeout")
		}
	})
}

func parseToolArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("--args must be a JSON object: %w", err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

func describeError(err error) string {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return err.Error()
}

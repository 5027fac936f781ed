package main

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"sahayak/internal/backend"
	"sahayak/internal/cli"
	"sahayak/internal/config"
	"sahayak/internal/log"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

type rootOptions struct {
	envFiles []string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sahayak",
		Short: "Transaction dashboard service",
		Long: `sahayak aggregates bank transactions from a backend or a snapshot file
into dashboard views: spending by mode, monthly totals, top debits and
daily spend. Results are cached by transaction fingerprint.

Configuration comes from the environment (see .env.example).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.LoadEnvFile(opts.envFiles...)
		},
	}

	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "env files to load before reading configuration (default .env)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	cmd.AddCommand(
		newServeCmd(opts),
		newSummaryCmd(opts),
		newChecksumCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// setup loads and validates configuration and creates the logger writing
// to w.
func (o *rootOptions) setup(w io.Writer) (*config.Config, *log.Logger, error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, cli.SetupLogger(w, cfg.LogLevel), nil
}

// openSource builds the transaction source selected by cfg.
func openSource(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.SourceResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateSource(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s source: %w", bcfg.Type, err)
	}
	return res, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sahayak %s (%s)\n", Version, runtime.Version())
		},
	}
}

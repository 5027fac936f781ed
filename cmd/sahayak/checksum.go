package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sahayak/internal/aggregate"
	"sahayak/internal/filter"
)

func newChecksumCmd(root *rootOptions) *cobra.Command {
	var (
		mode    string
		account string
	)

	cmd := &cobra.Command{
		Use:   "checksum",
		Short: "Print the fingerprint of the current transactions",
		Long: `Fetch transactions from the configured source and print the fingerprint
the aggregate cache is keyed by. Two runs print the same value exactly when
the cache would be reused.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if mode == "" {
				mode = cfg.ChecksumMode
			}

			txns, err := fetchTransactions(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			txns = filter.ByAccount(txns, account)

			_, err = fmt.Fprintln(cmd.OutOrStdout(), aggregate.ChecksumFor(mode)(txns))
			return err
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "checksum mode: fast or strict (default CHECKSUM_MODE)")
	cmd.Flags().StringVar(&account, "account", "", "restrict to one account")
	return cmd
}

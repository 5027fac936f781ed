package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sahayak/internal/aggregate"
	"sahayak/internal/config"
	"sahayak/internal/core"
	"sahayak/internal/filter"
	"sahayak/internal/log"
	"sahayak/internal/report"
)

type summaryOptions struct {
	rangeSel string
	from     string
	to       string
	account  string
	top      int
	months   int
	style    string
	width    int
	raw      bool
}

func newSummaryCmd(root *rootOptions) *cobra.Command {
	opts := &summaryOptions{}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a spending summary",
		Long: `Fetch transactions from the configured source once, aggregate them and
print a Markdown summary rendered for the terminal.`,
		Example: `  sahayak summary --range 30d
  sahayak summary --account 1234 --top 10 --style dark
  sahayak summary --range custom --from 2024-01-01 --to 2024-03-31 --raw`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd.Context(), root, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.rangeSel, "range", "overall", "date range: today, yesterday, 7d, 30d, this_month, last_month, custom, overall")
	f.StringVar(&opts.from, "from", "", "start date (YYYY-MM-DD) for --range custom")
	f.StringVar(&opts.to, "to", "", "end date (YYYY-MM-DD) for --range custom")
	f.StringVar(&opts.account, "account", core.AllAccounts, "account number, or ALL")
	f.IntVar(&opts.top, "top", aggregate.DefaultTopN, "number of top debits to list")
	f.IntVar(&opts.months, "months", 12, "most recent months in the monthly table, 0 for all")
	f.StringVar(&opts.style, "style", "dark", "glamour style: dark, light, notty, ascii, dracula")
	f.IntVar(&opts.width, "width", 100, "wrap width, 0 to disable")
	f.BoolVar(&opts.raw, "raw", false, "print Markdown without terminal rendering")
	return cmd
}

func runSummary(ctx context.Context, root *rootOptions, opts *summaryOptions, out, errOut io.Writer) error {
	cfg, logger, err := root.setup(errOut)
	if err != nil {
		return err
	}

	txns, err := fetchTransactions(ctx, cfg, logger)
	if err != nil {
		return err
	}

	now := time.Now()
	scope := filter.Scope{
		Range:   filter.ParseRange(opts.rangeSel),
		From:    opts.from,
		To:      opts.to,
		Account: opts.account,
	}
	scoped := scope.Apply(txns, now)
	result := aggregate.Compute(scoped)
	logger.Debug("Summary computed", log.FieldTxnCount, len(scoped), log.FieldRange, string(scope.Range))

	ropts := report.DefaultOptions()
	ropts.TopN = opts.top
	ropts.Months = opts.months
	ropts.Scope = scopeLabel(scope, len(scoped))
	md := report.Markdown(result, ropts)

	if opts.raw {
		_, err := io.WriteString(out, md)
		return err
	}
	rendered, err := report.RenderTerminal(md, opts.style, opts.width)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, rendered)
	return err
}

// fetchTransactions reads every transaction from the configured source.
func fetchTransactions(ctx context.Context, cfg *config.Config, logger *log.Logger) ([]core.Transaction, error) {
	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer src.Cleanup()

	txns, err := src.Source.Transactions(ctx, core.AllAccounts)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return txns, nil
}

func scopeLabel(scope filter.Scope, n int) string {
	var b strings.Builder
	if scope.Range == filter.Custom {
		fmt.Fprintf(&b, "%s to %s", scope.From, scope.To)
	} else {
		b.WriteString(string(scope.Range))
	}
	if a := strings.TrimSpace(scope.Account); a != "" && !strings.EqualFold(a, core.AllAccounts) {
		fmt.Fprintf(&b, ", account %s", a)
	}
	fmt.Fprintf(&b, ", %d transactions", n)
	return b.String()
}

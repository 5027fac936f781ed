// Package report renders dashboard aggregates as a Markdown summary, for
// the terminal and for the browser.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"sahayak/internal/aggregate"
	"sahayak/internal/core"
)

// DefaultCurrency is the ISO code amounts are displayed in.
const DefaultCurrency = money.INR

// Options controls the Markdown summary.
type Options struct {
	Title    string
	Scope    string // free text shown under the title, e.g. "last 30 days, account 1234"
	TopN     int
	Months   int // most recent months in the monthly table; 0 means all
	Currency string
}

// DefaultOptions returns the summary used by the CLI and the HTTP report.
func DefaultOptions() Options {
	return Options{
		Title:    "Spending summary",
		TopN:     aggregate.DefaultTopN,
		Months:   12,
		Currency: DefaultCurrency,
	}
}

// FormatAmount displays d in the given currency, e.g. "₹1,250.00". Unknown
// currency codes fall back to a plain two-decimal number.
func FormatAmount(d decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return d.StringFixed(2)
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := d.Mul(factor).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

// Markdown renders result as a Markdown document.
func Markdown(result core.AggregateResult, opts Options) string {
	if opts.TopN <= 0 {
		opts.TopN = aggregate.DefaultTopN
	}
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	amt := func(d decimal.Decimal) string { return FormatAmount(d, opts.Currency) }

	var b strings.Builder
	title := opts.Title
	if title == "" {
		title = DefaultOptions().Title
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if opts.Scope != "" {
		fmt.Fprintf(&b, "_%s_\n\n", opts.Scope)
	}

	var credit, debit decimal.Decimal
	for _, m := range result.MonthlySeries {
		credit = credit.Add(m.Credit)
		debit = debit.Add(m.Debit)
	}
	fmt.Fprintf(&b, "- **Credits:** %s\n", amt(credit))
	fmt.Fprintf(&b, "- **Debits:** %s\n", amt(debit))
	fmt.Fprintf(&b, "- **Net:** %s\n\n", amt(credit.Sub(debit)))

	b.WriteString("## Spending by mode\n\n")
	shares := aggregate.Shares(result.ModeBreakdown)
	if len(shares) == 0 {
		b.WriteString("No debits in this period.\n\n")
	} else {
		b.WriteString("| Mode | Amount | Share |\n|---|---:|---:|\n")
		for _, s := range shares {
			fmt.Fprintf(&b, "| %s | %s | %s%% |\n", escapeCell(s.Mode), amt(s.Value), s.Percent.StringFixed(1))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Monthly totals\n\n")
	months := result.MonthlySeries
	if opts.Months > 0 && len(months) > opts.Months {
		months = months[len(months)-opts.Months:]
	}
	if len(months) == 0 {
		b.WriteString("No dated transactions.\n\n")
	} else {
		b.WriteString("| Month | Credit | Debit |\n|---|---:|---:|\n")
		for _, m := range months {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", m.Month, amt(m.Credit), amt(m.Debit))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Top %d debits\n\n", opts.TopN)
	top := aggregate.Top(result, opts.TopN)
	if len(top) == 0 {
		b.WriteString("No debits in this period.\n")
	} else {
		b.WriteString("| # | Date | Mode | Description | Amount |\n|---:|---|---|---|---:|\n")
		for i, t := range top {
			date := t.RawTimestamp()
			if ts, ok := t.Time(); ok {
				date = ts.Format("2006-01-02")
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				i+1, escapeCell(date), escapeCell(t.NormalizedMode()), escapeCell(t.Description.String()), amt(t.AmountNum))
		}
	}

	return b.String()
}

// escapeCell keeps free text from breaking a table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// RenderHTML converts Markdown to an HTML fragment with GitHub-flavoured
// tables.
func RenderHTML(md string) ([]byte, error) {
	var buf bytes.Buffer
	conv := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := conv.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// HTMLPage wraps the rendered Markdown in a minimal standalone page.
func HTMLPage(title, md string) ([]byte, error) {
	body, err := RenderHTML(md)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	buf.WriteString(htmlEscaper.Replace(title))
	buf.WriteString("</title><style>body{font-family:sans-serif;max-width:52rem;margin:2rem auto}table{border-collapse:collapse}td,th{padding:.25rem .75rem;border-bottom:1px solid #ddd}</style></head><body>\n")
	buf.Write(body)
	buf.WriteString("</body></html>\n")
	return buf.Bytes(), nil
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;")

// RenderTerminal renders Markdown for a terminal. style is a glamour
// standard style name ("dark", "light", "notty", ...); empty selects
// "notty". width <= 0 disables wrapping.
func RenderTerminal(md, style string, width int) (string, error) {
	if style == "" {
		style = "notty"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width, 0)),
	)
	if err != nil {
		return "", fmt.Errorf("create terminal renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render terminal: %w", err)
	}
	return out, nil
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sahayak/internal/aggregate"
	"sahayak/internal/core"
	"sahayak/internal/filter"
	"sahayak/internal/log"
	"sahayak/internal/report"
	"sahayak/internal/services"
)

type aggregatesResponse struct {
	Fingerprint string               `json:"fingerprint"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Range       filter.RangeKind     `json:"range"`
	Account     string               `json:"account"`
	Aggregates  core.AggregateResult `json:"aggregates"`
	ModeShares  []core.ModeShare     `json:"mode_shares"`
}

type dailyResponse struct {
	Year  int              `json:"year"`
	Month int              `json:"month"`
	Days  []core.DayAmount `json:"days"`
}

type transactionsResponse struct {
	Total int                `json:"total"`
	Data  []core.Transaction `json:"data"`
}

type accountsResponse struct {
	Accounts     []core.Account      `json:"accounts"`
	Balances     []core.BalanceShare `json:"balances"`
	TotalBalance decimal.Decimal     `json:"total_balance"`
}

type refreshRequest struct {
	Kind core.ChangeKind `json:"kind"`
}

// scopedAggregates returns the aggregates of snap restricted to scope. The
// unscoped result is the refresher's own; scoped ones are memoized per
// fingerprint so a reload invalidates them.
func (s *Server) scopedAggregates(snap services.Snapshot, scope filter.Scope, now time.Time) core.AggregateResult {
	if scope.IsZero() {
		return snap.Aggregates.Normalize()
	}
	key := snap.Fingerprint + "|" + scope.Key(now)
	return s.scoped.GetOrCompute(key, func() core.AggregateResult {
		return aggregate.Compute(scope.Apply(snap.Transactions, now))
	})
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	snap := s.dash.Current()
	scope := parseScope(r.URL.Query())

	result := s.scopedAggregates(snap, scope, now)
	account := scope.Account
	if account == "" {
		account = core.AllAccounts
	}
	writeJSON(w, r, http.StatusOK, aggregatesResponse{
		Fingerprint: snap.Fingerprint,
		UpdatedAt:   snap.UpdatedAt,
		Range:       scope.Range,
		Account:     account,
		Aggregates:  result,
		ModeShares:  aggregate.Shares(result.ModeBreakdown),
	})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	q := r.URL.Query()
	year, month := parseYearMonth(q, now)
	txns := parseScope(q).Apply(s.dash.Current().Transactions, now)

	writeJSON(w, r, http.StatusOK, dailyResponse{
		Year:  year,
		Month: int(month),
		Days:  aggregate.DailySpend(txns, year, month),
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txns := parseScope(q).Apply(s.dash.Current().Transactions, s.now())
	txns = filter.Search(txns, sanitizeInput(q.Get("q")))
	txns = filter.Sort(txns, filter.ParseSort(q.Get("sort")))

	writeJSON(w, r, http.StatusOK, transactionsResponse{
		Total: len(txns),
		Data:  filter.Limit(txns, parseLimit(q)),
	})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := s.dash.Current().Accounts
	if accounts == nil {
		accounts = []core.Account{}
	}
	shares, total := aggregate.BalanceShares(accounts)
	writeJSON(w, r, http.StatusOK, accountsResponse{
		Accounts:     accounts,
		Balances:     shares,
		TotalBalance: total,
	})
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	snap := s.dash.Current()
	writeJSON(w, r, http.StatusOK, map[string][]int{
		"years": aggregate.AvailableYears(snap.Aggregates, snap.Transactions, s.now()),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	req := refreshRequest{Kind: core.TransactionsChanged}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1024))
	if err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Kind == "" {
			req.Kind = core.TransactionsChanged
		}
	}

	if err := s.dash.Notify(req.Kind); err != nil {
		if errors.Is(err, core.ErrUnknownKind) {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown change kind %q", req.Kind))
			return
		}
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Refresh trigger failed", err,
			log.ComponentHTTP, log.OpNotify, log.LogFields{log.FieldChangeKind: string(req.Kind)})
		writeError(w, r, http.StatusInternalServerError, "refresh failed")
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Refresh scheduled", log.FieldChangeKind, req.Kind)
	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "scheduled", "kind": string(req.Kind)})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.ips.ClientIP(r), log.FieldPath, r.URL.Path)
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	q := r.URL.Query()
	scope := parseScope(q)
	result := s.scopedAggregates(s.dash.Current(), scope, now)

	opts := report.DefaultOptions()
	opts.Scope = describeScope(scope)
	if n, err := strconv.Atoi(q.Get("top")); err == nil && n > 0 {
		opts.TopN = min(n, 50)
	}
	md := report.Markdown(result, opts)

	switch strings.ToLower(q.Get("format")) {
	case "", "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = io.WriteString(w, md)
	case "html":
		page, err := report.HTMLPage(opts.Title, md)
		if err != nil {
			log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Report rendering failed", err,
				log.ComponentReport, log.OpRender, nil)
			writeError(w, r, http.StatusInternalServerError, "report rendering failed")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	default:
		writeError(w, r, http.StatusBadRequest, "format must be md or html")
	}
}

// describeScope renders the scope for the report subtitle.
func describeScope(scope filter.Scope) string {
	parts := []string{}
	switch scope.Range {
	case filter.Overall:
		parts = append(parts, "all time")
	case filter.Custom:
		parts = append(parts, fmt.Sprintf("%s to %s", scope.From, scope.To))
	default:
		parts = append(parts, "range "+string(scope.Range))
	}
	if a := scope.Account; a != "" && !strings.EqualFold(a, core.AllAccounts) {
		parts = append(parts, "account "+a)
	} else {
		parts = append(parts, "all accounts")
	}
	return strings.Join(parts, ", ")
}

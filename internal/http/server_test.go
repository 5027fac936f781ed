package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sahayak/internal/aggregate"
	"sahayak/internal/core"
	"sahayak/internal/middleware/ratelimit"
	"sahayak/internal/middleware/trace"
	"sahayak/internal/services"
)

type fakeDashboard struct {
	mu    sync.Mutex
	snap  services.Snapshot
	ready bool
	kinds []core.ChangeKind
}

func (f *fakeDashboard) Current() services.Snapshot { return f.snap }
func (f *fakeDashboard) Ready() bool                { return f.ready }

func (f *fakeDashboard) Notify(kind core.ChangeKind) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	return nil
}

func sampleSnapshot() services.Snapshot {
	txns := []core.Transaction{
		{ID: "1", Amount: core.NewAmount(1000), Type: "debit", Mode: "UPI", TxnDatetime: "2024-01-10T10:00:00", AccountNumber: "1234", Description: "rent"},
		{ID: "2", Amount: core.NewAmount(250), Type: "debit", Mode: "card", TxnDatetime: "2024-01-15T10:00:00", AccountNumber: "5678", Description: "groceries"},
		{ID: "3", Amount: core.NewAmount(5000), Type: "credit", Mode: "NEFT", TxnDatetime: "2024-02-01T10:00:00", AccountNumber: "1234", Description: "salary"},
	}
	return services.Snapshot{
		Accounts: []core.Account{
			{ID: "a", Number: "1234", Acronym: "HDFC", Balance: core.NewAmount(7500)},
			{ID: "b", Number: "5678", Balance: core.NewAmount(2500)},
		},
		Transactions: txns,
		Aggregates:   aggregate.Compute(txns),
		Fingerprint:  aggregate.Checksum(txns),
		UpdatedAt:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, cfg ServerConfig) (*Server, *fakeDashboard) {
	t.Helper()
	dash := &fakeDashboard{snap: sampleSnapshot(), ready: true}
	srv, err := NewServer(cfg, dash, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	srv.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local) }
	t.Cleanup(func() { _ = srv.Shutdown(t.Context()) })
	return srv, dash
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, dash := newTestServer(t, ServerConfig{})

	if rr := do(srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rr.Code, rr.Body.String())
	}

	dash.ready = false
	if rr := do(srv, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before load = %d, want 503", rr.Code)
	}
	dash.ready = true
	if rr := do(srv, http.MethodGet, "/readyz", ""); rr.Code != http.StatusOK {
		t.Fatalf("readyz after load = %d, want 200", rr.Code)
	}
}

func TestAggregates(t *testing.T) {
	srv, dash := newTestServer(t, ServerConfig{})

	t.Run("unscoped returns the snapshot aggregates", func(t *testing.T) {
		rr := do(srv, http.MethodGet, "/api/aggregates", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		if rr.Header().Get(trace.RequestIDHeader) == "" {
			t.Error("missing request ID header")
		}
		if got := rr.Header().Get("Cache-Control"); got != "no-store" {
			t.Errorf("Cache-Control = %q, want no-store", got)
		}

		got := decode[aggregatesResponse](t, rr)
		if got.Fingerprint != dash.snap.Fingerprint {
			t.Errorf("fingerprint = %q, want %q", got.Fingerprint, dash.snap.Fingerprint)
		}
		if got.Account != core.AllAccounts || got.Range != "overall" {
			t.Errorf("scope = %s/%s, want overall/ALL", got.Range, got.Account)
		}
		if len(got.Aggregates.MonthlySeries) != 2 {
			t.Errorf("monthly series = %+v, want 2 months", got.Aggregates.MonthlySeries)
		}
		if len(got.ModeShares) != 2 || got.ModeShares[0].Mode != "UPI" || !got.ModeShares[0].Percent.Equal(decimal.NewFromInt(80)) {
			t.Errorf("mode shares = %+v", got.ModeShares)
		}
		if srv.scoped.Size() != 0 {
			t.Error("unscoped requests should not populate the scope cache")
		}
	})

	t.Run("custom range", func(t *testing.T) {
		rr := do(srv, http.MethodGet, "/api/aggregates?range=custom&from=2024-01-01&to=2024-01-31", "")
		got := decode[aggregatesResponse](t, rr)

		if len(got.Aggregates.MonthlySeries) != 1 {
			t.Fatalf("monthly series = %+v, want January only", got.Aggregates.MonthlySeries)
		}
		m := got.Aggregates.MonthlySeries[0]
		if m.Month != "2024-01" || !m.Debit.Equal(decimal.NewFromInt(1250)) || !m.Credit.IsZero() {
			t.Errorf("january = %+v", m)
		}
	})

	t.Run("account scope is memoized", func(t *testing.T) {
		before := srv.scoped.Size()
		for i := 0; i < 2; i++ {
			rr := do(srv, http.MethodGet, "/api/aggregates?account=5678", "")
			got := decode[aggregatesResponse](t, rr)
			if len(got.Aggregates.TopDebits) != 1 || got.Aggregates.TopDebits[0].ID != "2" {
				t.Fatalf("top debits = %+v, want only transaction 2", got.Aggregates.TopDebits)
			}
		}
		if got := srv.scoped.Size(); got != before+1 {
			t.Errorf("scope cache size = %d, want %d", got, before+1)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		if rr := do(srv, http.MethodPost, "/api/aggregates", ""); rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rr.Code)
		}
	})
}

func TestDaily(t *testing.T) {
	srv, _ := newTestServer(t, ServerConfig{})

	rr := do(srv, http.MethodGet, "/api/aggregates/daily?year=2024&month=1", "")
	got := decode[dailyResponse](t, rr)

	if got.Year != 2024 || got.Month != 1 || len(got.Days) != 31 {
		t.Fatalf("got %d-%d with %d days", got.Year, got.Month, len(got.Days))
	}
	if !got.Days[9].Value.Equal(decimal.NewFromInt(1000)) || !got.Days[14].Value.Equal(decimal.NewFromInt(250)) {
		t.Errorf("days 10 and 15 = %v, %v", got.Days[9].Value, got.Days[14].Value)
	}

	rr = do(srv, http.MethodGet, "/api/aggregates/daily?month=13&account=1234", "")
	got = decode[dailyResponse](t, rr)
	if got.Year != 2024 || got.Month != 3 {
		t.Errorf("invalid month should fall back to now, got %d-%d", got.Year, got.Month)
	}
}

func TestTransactions(t *testing.T) {
	srv, _ := newTestServer(t, ServerConfig{})

	tests := []struct {
		name      string
		query     string
		wantTotal int
		wantIDs   []string
	}{
		{"all latest first", "?sort=latest", 3, []string{"3", "2", "1"}},
		{"account", "?account=1234&sort=oldest", 2, []string{"1", "3"}},
		{"search", "?q=GROC", 1, []string{"2"}},
		{"amount desc with limit", "?sort=amountDesc&limit=2", 3, []string{"3", "1"}},
		{"range", "?range=custom&from=2024-02-01&to=2024-02-29", 1, []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, http.MethodGet, "/api/transactions"+tt.query, "")
			got := decode[transactionsResponse](t, rr)

			if got.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", got.Total, tt.wantTotal)
			}
			if len(got.Data) != len(tt.wantIDs) {
				t.Fatalf("data has %d rows, want %d", len(got.Data), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got.Data[i].ID.String() != id {
					t.Errorf("row %d = %s, want %s", i, got.Data[i].ID, id)
				}
			}
		})
	}
}

func TestAccountsAndYears(t *testing.T) {
	srv, _ := newTestServer(t, ServerConfig{})

	acc := decode[accountsResponse](t, do(srv, http.MethodGet, "/api/accounts", ""))
	if len(acc.Accounts) != 2 || !acc.TotalBalance.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("accounts = %+v", acc)
	}
	if acc.Balances[0].Name != "HDFC" || !acc.Balances[0].Percent.Equal(decimal.NewFromInt(75)) {
		t.Errorf("first balance = %+v", acc.Balances[0])
	}

	years := decode[map[string][]int](t, do(srv, http.MethodGet, "/api/years", ""))
	if got := years["years"]; len(got) != 1 || got[0] != 2024 {
		t.Errorf("years = %v, want [2024]", got)
	}
}

func TestRefresh(t *testing.T) {
	srv, dash := newTestServer(t, ServerConfig{
		RefreshLimit: ratelimit.Config{Limit: 4, Window: time.Minute},
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"empty body", "", http.StatusAccepted},
		{"accounts", `{"kind":"accounts_changed"}`, http.StatusAccepted},
		{"unknown kind", `{"kind":"everything_changed"}`, http.StatusBadRequest},
		{"invalid json", `{kind`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, http.MethodPost, "/api/refresh", tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}

	want := []core.ChangeKind{core.TransactionsChanged, core.AccountsChanged}
	if len(dash.kinds) != len(want) || dash.kinds[0] != want[0] || dash.kinds[1] != want[1] {
		t.Errorf("notified kinds = %v, want %v", dash.kinds, want)
	}

	rr := do(srv, http.MethodPost, "/api/refresh", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("fifth refresh status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestReport(t *testing.T) {
	srv, _ := newTestServer(t, ServerConfig{})

	rr := do(srv, http.MethodGet, "/api/report?account=1234", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/markdown") {
		t.Fatalf("markdown report = %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	body := rr.Body.String()
	if !strings.Contains(body, "_all time, account 1234_") || !strings.Contains(body, "₹1,000.00") {
		t.Errorf("unexpected report:\n%s", body)
	}
	if strings.Contains(body, "groceries") {
		t.Error("report should only include account 1234")
	}

	rr = do(srv, http.MethodGet, "/api/report?format=html", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "<table>") {
		t.Fatalf("html report = %d\n%s", rr.Code, rr.Body.String())
	}
	if csp := rr.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "style-src 'unsafe-inline'") {
		t.Errorf("html report CSP = %q", csp)
	}

	if rr := do(srv, http.MethodGet, "/api/report?format=pdf", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("pdf status = %d, want 400", rr.Code)
	}
}

func TestDescribeScope(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"", "all time, all accounts"},
		{"range=30d&account=ALL", "range 30d, all accounts"},
		{"range=custom&from=2024-01-01&to=2024-01-31&account=1234", "2024-01-01 to 2024-01-31, account 1234"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/report?"+tt.query, nil)
		if got := describeScope(parseScope(r.URL.Query())); got != tt.want {
			t.Errorf("describeScope(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

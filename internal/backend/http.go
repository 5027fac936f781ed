package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"sahayak/internal/core"
)

// HTTPSource reads accounts and transactions from the finance backend's
// REST API.
type HTTPSource struct {
	client  *http.Client
	baseURL string
	txPath  string
}

// NewHTTPSource returns a source rooted at baseURL. txPath is the JSONPath
// locating the list inside a wrapped response; bare arrays are accepted
// whatever its value.
func NewHTTPSource(client *http.Client, baseURL, txPath string) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if txPath == "" {
		txPath = "$.data"
	}
	return &HTTPSource{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		txPath:  txPath,
	}, nil
}

// Accounts implements Source.
func (s *HTTPSource) Accounts(ctx context.Context) ([]core.Account, error) {
	var accounts []core.Account
	if err := s.list(ctx, s.baseURL+"/accounts", &accounts); err != nil {
		return nil, fmt.Errorf("fetch accounts: %w", err)
	}
	return accounts, nil
}

// Transactions implements Source.
func (s *HTTPSource) Transactions(ctx context.Context, account string) ([]core.Transaction, error) {
	addr := s.baseURL + "/transactions/all"
	if a := strings.TrimSpace(account); a != "" && !strings.EqualFold(a, core.AllAccounts) {
		addr = s.baseURL + "/transactions/" + url.PathEscape(a)
	}

	var txns []core.Transaction
	if err := s.list(ctx, addr, &txns); err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return txns, nil
}

// list GETs addr, locates the list in the payload and decodes it into out.
func (s *HTTPSource) list(ctx context.Context, addr string, out any) error {
	var jobj any
	if err := jwget(ctx, s.client, addr, &jobj); err != nil {
		return err
	}

	items, err := extractList(jobj, s.txPath)
	if err != nil {
		return err
	}

	// Round trip through JSON so the lenient core decoders see each item.
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// extractList returns jobj itself when it is a list, otherwise the list found
// at path.
func extractList(jobj any, path string) ([]any, error) {
	if list, ok := jobj.([]any); ok {
		return list, nil
	}

	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnexpectedPayload, path, err)
	}
	// wildcard paths wrap their single match in a list
	if jlist, ok := jval.([]any); ok && len(jlist) == 1 {
		if inner, ok := jlist[0].([]any); ok {
			jval = inner
		}
	}
	list, ok := jval.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, not a list", ErrUnexpectedPayload, path, jval)
	}
	return list, nil
}

// jwget GETs addr and decodes the JSON body into data. Numbers are kept as
// json.Number.
func jwget(ctx context.Context, client *http.Client, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}

	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	return dec.Decode(data)
}

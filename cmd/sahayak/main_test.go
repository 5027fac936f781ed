package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/joho/godotenv"
)

const snapshotYAML = `
accounts:
  - id: a1
    account_number: "1234"
    acronym: HDFC
    current_balance: "12,500.00"
transactions:
  - id: t1
    amount: "1,000.00"
    type: DEBIT
    mode: upi
    txn_datetime: "2024-01-10T10:00:00"
    account_number: "1234"
    description: rent
  - id: t2
    amount: 5000
    type: credit
    mode: NEFT
    txn_datetime: "2024-01-01"
    account_number: "1234"
    description: salary
`

func setupEnv(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	if err := os.WriteFile(path, []byte(snapshotYAML), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SOURCE_TYPE", "file")
	t.Setenv("SOURCE_FILE", path)
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AMQP_URL", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestSummaryCommand(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "summary", "--raw", "--account", "1234")
	if err != nil {
		t.Fatalf("summary error = %v", err)
	}
	for _, want := range []string{
		"# Spending summary",
		"_overall, account 1234, 2 transactions_",
		"- **Credits:** ₹5,000.00",
		"| UPI | ₹1,000.00 | 100.0% |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "summary", "--style", "notty", "--width", "120")
	if err != nil {
		t.Fatalf("rendered summary error = %v", err)
	}
	if !strings.Contains(out, "Spending summary") || !strings.Contains(out, "₹1,000.00") {
		t.Errorf("unexpected rendered output:\n%s", out)
	}
}

func TestChecksumCommand(t *testing.T) {
	setupEnv(t)

	first, err := execute(t, "checksum")
	if err != nil {
		t.Fatalf("checksum error = %v", err)
	}
	if first != "2|2024-01-01|6000\n" {
		t.Errorf("checksum output = %q, want fast fingerprint", first)
	}

	strict, err := execute(t, "checksum", "--mode", "strict")
	if err != nil {
		t.Fatalf("strict checksum error = %v", err)
	}
	if !regexp.MustCompile(`^2\|[0-9a-f]{32}\n$`).MatchString(strict) {
		t.Errorf("strict checksum output = %q", strict)
	}

	other, err := execute(t, "checksum", "--account", "9999")
	if err != nil {
		t.Fatalf("checksum error = %v", err)
	}
	if other == first {
		t.Error("account filter should change the fingerprint")
	}
}

func TestInvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("CHECKSUM_MODE", "sha1")

	if _, err := execute(t, "checksum"); err == nil || !strings.Contains(err.Error(), "checksum mode") {
		t.Errorf("expected checksum mode validation error, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "sahayak dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestEnvExampleListsConfigKeys(t *testing.T) {
	env, err := godotenv.Read(filepath.Join("..", "..", ".env.example"))
	if err != nil {
		t.Fatalf("read .env.example: %v", err)
	}

	src, err := os.ReadFile(filepath.Join("..", "..", "internal", "config", "config.go"))
	if err != nil {
		t.Fatal(err)
	}
	keys := regexp.MustCompile(`getEnv\w*\("([A-Z_]+)"`).FindAllStringSubmatch(string(src), -1)
	if len(keys) == 0 {
		t.Fatal("no configuration keys found")
	}
	for _, k := range keys {
		if _, ok := env[k[1]]; !ok {
			t.Errorf(".env.example is missing %s", k[1])
		}
	}
}

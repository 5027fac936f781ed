package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "sahayak.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get(ctx, KeyAccounts); err != nil || ok {
				t.Fatalf("missing key: ok=%v err=%v", ok, err)
			}

			if err := s.Set(ctx, KeyAccounts, `[{"id":1}]`); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Set(ctx, KeyAccounts, `[{"id":2}]`); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			v, ok, err := s.Get(ctx, KeyAccounts)
			if err != nil || !ok || v != `[{"id":2}]` {
				t.Fatalf("Get = %q, %v, %v", v, ok, err)
			}

			if err := s.Set(ctx, KeyTransactions, "[]"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Delete(ctx, KeyAccounts); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, "never-set"); err != nil {
				t.Fatalf("Delete missing: %v", err)
			}
			if _, ok, _ := s.Get(ctx, KeyAccounts); ok {
				t.Fatalf("deleted key still present")
			}
		})
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.SchemaVersion() != 1 {
		t.Fatalf("schema version = %d, want 1", s.SchemaVersion())
	}
	if err := s.Set(ctx, "b", "2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	keys, err := reopened.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Fatalf("Keys = %v", keys)
	}
	if err := reopened.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestOpen(t *testing.T) {
	if s, err := Open(BackendMemory, ""); err != nil {
		t.Fatalf("Open(memory): %v", err)
	} else if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("Open(memory) returned %T", s)
	}
	if _, err := Open("redis", ""); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

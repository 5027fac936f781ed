package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sahayak/internal/core"
	"sahayak/internal/filter"
)

// FileSource serves a snapshot stored in a YAML or JSON file with top-level
// accounts and transactions lists. The file is read on every call so edits
// show up on the next reload.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type snapshotFile struct {
	Accounts     []core.Account     `json:"accounts"`
	Transactions []core.Transaction `json:"transactions"`
}

// Accounts implements Source.
func (s *FileSource) Accounts(ctx context.Context) ([]core.Account, error) {
	snap, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Accounts, nil
}

// Transactions implements Source.
func (s *FileSource) Transactions(ctx context.Context, account string) ([]core.Transaction, error) {
	snap, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return filter.ByAccount(snap.Transactions, account), nil
}

func (s *FileSource) read(ctx context.Context) (snapshotFile, error) {
	if err := ctx.Err(); err != nil {
		return snapshotFile{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return snapshotFile{}, fmt.Errorf("read snapshot file: %w", err)
	}

	raw := data
	if !strings.EqualFold(filepath.Ext(s.path), ".json") {
		// YAML goes through a generic value so the JSON decoders of the
		// core types apply to both formats.
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return snapshotFile{}, fmt.Errorf("parse snapshot file %s: %w", s.path, err)
		}
		if raw, err = json.Marshal(doc); err != nil {
			return snapshotFile{}, fmt.Errorf("convert snapshot file %s: %w", s.path, err)
		}
	}

	var snap snapshotFile
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return snap, nil
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snapshotFile{}, fmt.Errorf("decode snapshot file %s: %w", s.path, err)
	}
	return snap, nil
}

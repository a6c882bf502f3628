package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

// FileLedger keeps processed ids as a JSON array on disk.
type FileLedger struct {
	path string
}

var _ ports.LedgerStore = (*FileLedger)(nil)

// NewFileLedger stores the ledger at path.
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

// Path returns the ledger location.
func (l *FileLedger) Path() string {
	return l.path
}

// Load returns nil for a missing file and ErrLedgerCorrupt for undecodable content.
func (l *FileLedger) Load(_ context.Context) ([]string, error) {
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", l.path, err)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrLedgerCorrupt, l.path, err)
	}
	return ids, nil
}

// Save replaces the ledger atomically: a temp file in the same directory is
// written, synced and renamed over the old one.
func (l *FileLedger) Save(_ context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	payload, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		cleanup()
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

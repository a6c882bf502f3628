// Package ledger tracks which messages have already been emitted so a run
// never writes the same message twice.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

// ErrFlush is returned when the ledger could not be persisted after retries.
var ErrFlush = errors.New("ledger flush failed")

// Options configures batching, retries and retention.
type Options struct {
	BatchSaveCount int
	FlushAttempts  int
	// MaxIDs keeps only the most recent ids on flush; zero keeps everything.
	MaxIDs        int
	RetryInterval time.Duration
	// OnFlush observes every flush attempt sequence; err is nil on success.
	OnFlush func(err error)
}

// Tracker is the processed-message ledger. Marks stay pending in memory
// until a flush persists persisted+pending in one Save call.
type Tracker struct {
	store  ports.LedgerStore
	opts   Options
	logger *slog.Logger

	persisted []string
	pending   []string
	seen      map[string]struct{}
}

// Load reads the ledger from store. A missing or corrupt ledger starts empty.
func Load(ctx context.Context, store ports.LedgerStore, opts Options, logger *slog.Logger) (*Tracker, error) {
	if opts.BatchSaveCount < 1 {
		opts.BatchSaveCount = 1
	}
	if opts.FlushAttempts < 1 {
		opts.FlushAttempts = 1
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tracker{
		store:  store,
		opts:   opts,
		logger: logger.With("component", "ledger"),
		seen:   map[string]struct{}{},
	}

	ids, err := store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrLedgerCorrupt):
		t.logger.Warn("ledger is corrupt, starting empty", "error", err)
		ids = nil
	case err != nil:
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	for _, id := range ids {
		if _, dup := t.seen[id]; dup || id == "" {
			continue
		}
		t.seen[id] = struct{}{}
		t.persisted = append(t.persisted, id)
	}
	t.logger.Debug("ledger loaded", "ids", len(t.persisted))
	return t, nil
}

// Seen reports whether id was emitted in this or an earlier run.
func (t *Tracker) Seen(id string) bool {
	_, ok := t.seen[id]
	return ok
}

// Mark records id as emitted and flushes once the batch is full.
func (t *Tracker) Mark(ctx context.Context, id string) error {
	if id == "" || t.Seen(id) {
		return nil
	}
	t.seen[id] = struct{}{}
	t.pending = append(t.pending, id)

	if len(t.pending) >= t.opts.BatchSaveCount {
		return t.Flush(ctx)
	}
	return nil
}

// Flush persists pending marks. On failure they stay pending.
func (t *Tracker) Flush(ctx context.Context) error {
	if len(t.pending) == 0 {
		return nil
	}

	all := make([]string, 0, len(t.persisted)+len(t.pending))
	all = append(all, t.persisted...)
	all = append(all, t.pending...)
	var dropped []string
	if limit := t.opts.MaxIDs; limit > 0 && len(all) > limit {
		dropped = all[:len(all)-limit]
		all = all[len(all)-limit:]
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.opts.RetryInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(t.opts.FlushAttempts-1)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := t.store.Save(ctx, all); err != nil {
			t.logger.Warn("ledger flush attempt failed", "attempt", attempt, "error", err)
			return err
		}
		return nil
	}, retry)
	if t.opts.OnFlush != nil {
		t.opts.OnFlush(err)
	}
	if err != nil {
		return fmt.Errorf("%w: %d pending ids: %w", ErrFlush, len(t.pending), err)
	}

	t.logger.Debug("ledger flushed", "ids", len(all), "new", len(t.pending))
	t.persisted = all
	t.pending = nil
	for _, id := range dropped {
		delete(t.seen, id)
	}
	return nil
}

// Pending returns the number of marks not yet persisted.
func (t *Tracker) Pending() int {
	return len(t.pending)
}

// Len returns the number of known ids, persisted or pending.
func (t *Tracker) Len() int {
	return len(t.persisted) + len(t.pending)
}

// IDs returns known ids in insertion order.
func (t *Tracker) IDs() []string {
	out := make([]string, 0, t.Len())
	out = append(out, t.persisted...)
	return append(out, t.pending...)
}

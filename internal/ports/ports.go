package ports

import (
	"context"
	"time"

	"NewsletterScanner/internal/domain"
)

// MessageSource lists newsletter emails received since the given instant.
type MessageSource interface {
	FetchSince(ctx context.Context, since time.Time) ([]domain.RawMessage, error)
}

// RecordSink stores structured records in the external document database.
type RecordSink interface {
	Write(ctx context.Context, record domain.StructuredRecord) error
}

// Categorizer assigns a category outcome to message content.
type Categorizer interface {
	Name() domain.Strategy
	Categorize(ctx context.Context, subject, content string) domain.CategoryOutcome
}

// ChatClient sends one prompt to an LLM completion endpoint and returns the raw reply.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LedgerStore persists the set of processed message identifiers.
type LedgerStore interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, ids []string) error
}

// Throttle suspends the caller until another rate-limited call is allowed.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// ProcessedLedger remembers which message ids were already emitted.
type ProcessedLedger interface {
	Seen(id string) bool
	Mark(ctx context.Context, id string) error
	Flush(ctx context.Context) error
	Pending() int
}

// Message results reported to Metrics.
const (
	ResultEmitted = "emitted"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Metrics receives pipeline counters.
type Metrics interface {
	Message(result string)
	Categorized(outcome domain.CategoryOutcome)
	RunFinished(d time.Duration)
}

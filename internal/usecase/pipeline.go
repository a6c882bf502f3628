package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/extract"
	"NewsletterScanner/internal/ledger"
	"NewsletterScanner/internal/ports"
	"NewsletterScanner/internal/structure"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source      ports.MessageSource
	Sink        ports.RecordSink
	Categorizer ports.Categorizer
	// Throttle is only set when the categorizer calls a rate-limited API.
	Throttle   ports.Throttle
	Ledger     ports.ProcessedLedger
	Extractor  *extract.LinkExtractor
	Structurer *structure.Structurer
	Notifier   ports.Notifier
	Metrics    ports.Metrics
	Logger     *slog.Logger

	HistoryDays int
	// MaxMessages caps the messages processed in one pass. Already seen
	// messages do not count; zero means no cap.
	MaxMessages   int
	SinkAttempts  int
	RetryInterval time.Duration
	// Location renders dates in the digest; nil means UTC.
	Location *time.Location
	Now      func() time.Time
}

// Pipeline implements one pass of the newsletter workflow: fetch, skip seen
// messages, categorize, structure, write and mark.
type Pipeline struct {
	source        ports.MessageSource
	sink          ports.RecordSink
	categorizer   ports.Categorizer
	throttle      ports.Throttle
	ledger        ports.ProcessedLedger
	extractor     *extract.LinkExtractor
	structurer    *structure.Structurer
	notifier      ports.Notifier
	metrics       ports.Metrics
	logger        *slog.Logger
	historyDays   int
	maxMessages   int
	sinkAttempts  int
	retryInterval time.Duration
	location      *time.Location
	now           func() time.Time
}

// RunReport summarizes one pass.
type RunReport struct {
	RunID   string
	Fetched int
	Skipped int
	Failed  int
	// Deferred counts unseen messages left for a later pass by MaxMessages.
	Deferred int
	Emitted  []domain.StructuredRecord
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:        deps.Source,
		sink:          deps.Sink,
		categorizer:   deps.Categorizer,
		throttle:      deps.Throttle,
		ledger:        deps.Ledger,
		extractor:     deps.Extractor,
		structurer:    deps.Structurer,
		notifier:      deps.Notifier,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		historyDays:   deps.HistoryDays,
		maxMessages:   deps.MaxMessages,
		sinkAttempts:  deps.SinkAttempts,
		retryInterval: deps.RetryInterval,
		location:      deps.Location,
		now:           deps.Now,
	}
	if p.extractor == nil {
		p.extractor = extract.NewLinkExtractor(nil, nil)
	}
	if p.structurer == nil {
		p.structurer = structure.New(structure.Options{})
	}
	if p.metrics == nil {
		p.metrics = noopMetrics{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.sinkAttempts < 1 {
		p.sinkAttempts = 1
	}
	if p.retryInterval <= 0 {
		p.retryInterval = 500 * time.Millisecond
	}
	if p.location == nil {
		p.location = time.UTC
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run performs one pass. Failures of a single message are logged and the
// message stays unmarked; listing and ledger flush failures abort the pass.
// On cancellation the loop stops between messages and completed marks are
// still flushed.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	start := p.now()
	report := RunReport{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", report.RunID)
	defer func() { p.metrics.RunFinished(p.now().Sub(start)) }()

	if p.source == nil || p.sink == nil || p.categorizer == nil || p.ledger == nil {
		return report, fmt.Errorf("pipeline misconfigured")
	}

	since := start.AddDate(0, 0, -p.historyDays)
	messages, err := p.source.FetchSince(ctx, since)
	if err != nil {
		return report, fmt.Errorf("fetch messages: %w", err)
	}
	report.Fetched = len(messages)
	logger.Info("pass started", "messages", len(messages), "since", since.Format(time.RFC3339),
		"strategy", string(p.categorizer.Name()))

	var fatal error
	for i, msg := range messages {
		if ctx.Err() != nil {
			logger.Warn("pass interrupted", "error", ctx.Err(), "pending", p.ledger.Pending())
			break
		}
		if p.ledger.Seen(msg.ID) {
			report.Skipped++
			p.metrics.Message(ports.ResultSkipped)
			continue
		}
		if p.maxMessages > 0 && report.Failed+len(report.Emitted) >= p.maxMessages {
			report.Deferred = p.countUnseen(messages[i:])
			logger.Info("per-pass message cap reached", "max", p.maxMessages, "deferred", report.Deferred)
			break
		}

		rec, err := p.process(ctx, msg)
		if errors.Is(err, ledger.ErrFlush) {
			fatal = err
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			report.Failed++
			p.metrics.Message(ports.ResultFailed)
			logger.Error("message failed", "message_id", msg.ID, "subject", msg.Subject, "error", err)
			continue
		}

		report.Emitted = append(report.Emitted, rec)
		p.metrics.Message(ports.ResultEmitted)
		logger.Info("message emitted", "message_id", msg.ID, "category", rec.Category, "title", rec.Title)
	}

	if err := p.ledger.Flush(context.WithoutCancel(ctx)); err != nil && fatal == nil {
		fatal = err
	}
	if fatal != nil {
		return report, fmt.Errorf("persist ledger: %w", fatal)
	}

	logger.Info("pass finished",
		"emitted", len(report.Emitted),
		"skipped", report.Skipped,
		"failed", report.Failed,
		"deferred", report.Deferred,
		"duration", p.now().Sub(start).String(),
	)

	if p.notifier != nil && len(report.Emitted) > 0 {
		if err := p.notifier.PublishDigest(ctx, buildDigestMessage(report.Emitted, p.location)); err != nil {
			logger.Warn("digest not delivered", "error", err)
		}
	}
	return report, nil
}

// Preview categorizes and structures msg without writing or marking it.
func (p *Pipeline) Preview(ctx context.Context, msg domain.RawMessage) (domain.StructuredRecord, error) {
	if p.categorizer == nil {
		return domain.StructuredRecord{}, fmt.Errorf("pipeline misconfigured")
	}
	return p.structureMessage(ctx, msg)
}

func (p *Pipeline) countUnseen(messages []domain.RawMessage) int {
	n := 0
	for _, msg := range messages {
		if !p.ledger.Seen(msg.ID) {
			n++
		}
	}
	return n
}

func (p *Pipeline) process(ctx context.Context, msg domain.RawMessage) (domain.StructuredRecord, error) {
	rec, err := p.structureMessage(ctx, msg)
	if err != nil {
		return domain.StructuredRecord{}, err
	}
	if err := p.write(ctx, rec); err != nil {
		return domain.StructuredRecord{}, err
	}
	if err := p.ledger.Mark(ctx, msg.ID); err != nil {
		return domain.StructuredRecord{}, fmt.Errorf("mark %s: %w", msg.ID, err)
	}
	return rec, nil
}

func (p *Pipeline) structureMessage(ctx context.Context, msg domain.RawMessage) (domain.StructuredRecord, error) {
	text := extract.PlainText(msg.Body, msg.HTML)
	links := p.extractor.Extract(msg.Body, msg.HTML)

	if p.throttle != nil {
		if err := p.throttle.Wait(ctx); err != nil {
			return domain.StructuredRecord{}, fmt.Errorf("throttle: %w", err)
		}
	}
	outcome := p.categorizer.Categorize(ctx, msg.Subject, text)
	p.metrics.Categorized(outcome)

	rec := p.structurer.Build(msg, text, links.Links, links.Source, outcome)
	if err := p.structurer.Validate(rec); err != nil {
		return domain.StructuredRecord{}, fmt.Errorf("validate: %w", err)
	}
	return rec, nil
}

type transient interface {
	Transient() bool
}

// write retries sink errors that report themselves as transient.
func (p *Pipeline) write(ctx context.Context, rec domain.StructuredRecord) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.retryInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.sinkAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		err := p.sink.Write(ctx, rec)
		if err == nil {
			return nil
		}
		var t transient
		if errors.As(err, &t) && t.Transient() {
			return err
		}
		return backoff.Permanent(err)
	}, retry)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func buildDigestMessage(records []domain.StructuredRecord, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d new newsletter entries\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&b, "- %s\nDate: %s\nCategory: %s\n%s\n\n",
			rec.Title, rec.PublishedDate.In(loc).Format("January 02, 2006 15:04"), rec.Category, rec.SourceURL)
	}
	return b.String()
}

type noopMetrics struct{}

func (noopMetrics) Message(string)                     {}
func (noopMetrics) Categorized(domain.CategoryOutcome) {}
func (noopMetrics) RunFinished(time.Duration)          {}

// Package app wires configuration to adapters and use cases.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"NewsletterScanner/internal/classify"
	"NewsletterScanner/internal/config"
	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/extract"
	"NewsletterScanner/internal/infrastructure/llm"
	"NewsletterScanner/internal/infrastructure/mailbox"
	"NewsletterScanner/internal/infrastructure/metrics"
	"NewsletterScanner/internal/infrastructure/notion"
	"NewsletterScanner/internal/infrastructure/scheduler"
	"NewsletterScanner/internal/infrastructure/storage"
	"NewsletterScanner/internal/infrastructure/telegram"
	"NewsletterScanner/internal/ledger"
	"NewsletterScanner/internal/logging"
	"NewsletterScanner/internal/ports"
	"NewsletterScanner/internal/structure"
	"NewsletterScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	tracker  *ledger.Tracker
	metrics  *metrics.Recorder
	closers  []io.Closer
}

// Options overrides adapters that are otherwise built from configuration.
type Options struct {
	// Output receives records when the stdout sink is selected.
	Output io.Writer
}

// New validates cfg and builds every adapter. Close releases them.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	a := &Application{cfg: cfg, logger: baseLogger, metrics: metrics.New()}

	sink, err := a.buildSink(ctx, opts.Output)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := a.buildLedgerStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tracker, err = ledger.Load(ctx, store, ledger.Options{
		BatchSaveCount: cfg.Settings.BatchSaveCount,
		FlushAttempts:  cfg.Ledger.FlushAttempts,
		MaxIDs:         cfg.Ledger.MaxIDs,
		OnFlush:        a.metrics.Flushed,
	}, baseLogger)
	if err != nil {
		a.Close()
		return nil, err
	}

	categorizer, throttle := buildCategorizer(cfg, baseLogger, a.metrics)

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram); tg.Enabled() {
		notifier = tg
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:       mailbox.NewSource(cfg.Source.Dir, cfg.Senders, baseLogger),
		Sink:         sink,
		Categorizer:  categorizer,
		Throttle:     throttle,
		Ledger:       a.tracker,
		Extractor:    newExtractor(cfg),
		Structurer:   newStructurer(cfg),
		Notifier:     notifier,
		Metrics:      a.metrics,
		Logger:       baseLogger.With("component", "pipeline"),
		HistoryDays:  cfg.Settings.HistoryDays,
		MaxMessages:  cfg.Settings.MaxEmailsPerRun,
		SinkAttempts: cfg.Sink.Attempts,
		Location:     cfg.Scheduler.Location(),
	})
	baseLogger.Debug("application ready",
		"strategy", string(categorizer.Name()),
		"categories", cfg.CategoryNames(),
		"sink", cfg.Sink.Kind,
		"ledger", cfg.Ledger.Kind,
	)
	return a, nil
}

// Run performs a single pass and exports metrics.
func (a *Application) Run(ctx context.Context) (usecase.RunReport, error) {
	report, err := a.pipeline.Run(ctx)
	a.exportMetrics()
	return report, err
}

// Serve runs passes on the configured interval until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	sched := usecase.NewScheduler(
		scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval()),
		a.pipeline,
		a.logger.With("component", "scheduler"),
		func(usecase.RunReport, error) { a.exportMetrics() },
	)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("serving", "interval", a.cfg.Scheduler.Interval().String())

	<-ctx.Done()
	return sched.Stop(context.WithoutCancel(ctx))
}

// Close releases database handles.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) exportMetrics() {
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.logger.Warn("metrics export failed", "path", a.cfg.Metrics.Textfile, "error", err)
	}
}

func (a *Application) buildSink(ctx context.Context, out io.Writer) (ports.RecordSink, error) {
	switch a.cfg.Sink.Kind {
	case "notion":
		return notion.NewSink(a.cfg.Notion, a.cfg.Scheduler.Location(), a.logger), nil
	case "sql":
		db, err := storage.Open(ctx, a.cfg.Sink.Driver, a.cfg.Sink.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sink: %w", err)
		}
		a.closers = append(a.closers, db)
		return storage.NewSQLSink(db), nil
	default:
		return storage.NewJSONLinesSink(out), nil
	}
}

func (a *Application) buildLedgerStore(ctx context.Context) (ports.LedgerStore, error) {
	store, closer, err := openLedgerStore(ctx, a.cfg.Ledger)
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	return store, err
}

func openLedgerStore(ctx context.Context, cfg config.LedgerConfig) (ports.LedgerStore, io.Closer, error) {
	if cfg.Kind != "sql" {
		return storage.NewFileLedger(cfg.Path), nil, nil
	}
	db, err := storage.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	return storage.NewSQLLedger(db), db, nil
}

func buildCategorizer(cfg config.Config, logger *slog.Logger, rec *metrics.Recorder) (ports.Categorizer, ports.Throttle) {
	categories := make([]classify.Category, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		categories = append(categories, classify.Category{Name: c.Name, Keywords: c.Keywords})
	}
	keywords := classify.NewKeywordCategorizer(categories, cfg.Settings.CategorizationThreshold)
	if !cfg.LLM.Enabled {
		return keywords, nil
	}

	categorizer := classify.NewLLMCategorizer(
		llm.NewOpenAIClient(cfg.LLM),
		categories,
		keywords,
		classify.LLMOptions{
			Threshold:         cfg.Settings.CategorizationThreshold,
			DefaultConfidence: cfg.LLM.DefaultConfidence,
			MaxContentRunes:   cfg.LLM.MaxContentRunes,
			OnDegrade:         rec.Degraded,
		},
		logger.With("component", "categorizer"),
	)
	return categorizer, usecase.NewRateThrottle(cfg.LLM.RequestsPerMinute)
}

func newExtractor(cfg config.Config) *extract.LinkExtractor {
	return extract.NewLinkExtractor(cfg.Settings.SourceLinkPhrases, cfg.Settings.IgnoreLinkPatterns)
}

func newStructurer(cfg config.Config) *structure.Structurer {
	return structure.New(structure.Options{
		DescriptionMaxLength: cfg.Settings.DescriptionMaxLength,
		MaxOtherCategories:   cfg.Settings.MaxOtherCategories,
		OtherCategoriesMin:   cfg.Settings.OtherCategoriesMin,
		UncategorizedLabel:   cfg.Settings.UncategorizedLabel,
		SourceFallbackURL:    cfg.Settings.SourceFallbackURL,
	})
}

// Categorize structures one file without touching the sink or the ledger.
// .eml files are parsed as mail; anything else is read as the body, HTML
// when the extension says so.
func Categorize(ctx context.Context, cfg config.Config, logger *slog.Logger, path string) (domain.StructuredRecord, error) {
	if logger == nil {
		logger = logging.New(cfg.Logging.Level)
	}
	msg, err := readMessageFile(path)
	if err != nil {
		return domain.StructuredRecord{}, err
	}

	categorizer, _ := buildCategorizer(cfg, logger, metrics.New())
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Categorizer: categorizer,
		Extractor:   newExtractor(cfg),
		Structurer:  newStructurer(cfg),
		Logger:      logger.With("component", "pipeline"),
	})
	return pipeline.Preview(ctx, msg)
}

func readMessageFile(path string) (domain.RawMessage, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".eml" {
		return mailbox.ParseFile(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RawMessage{}, fmt.Errorf("read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return domain.RawMessage{}, fmt.Errorf("stat %s: %w", path, err)
	}
	base := filepath.Base(path)
	return domain.RawMessage{
		ID:         strings.TrimSuffix(base, filepath.Ext(base)),
		Subject:    strings.TrimSuffix(base, filepath.Ext(base)),
		ReceivedAt: info.ModTime(),
		Body:       string(raw),
		HTML:       ext == ".html" || ext == ".htm",
	}, nil
}

// LedgerInfo describes the processed-id ledger.
type LedgerInfo struct {
	Kind     string `json:"kind"`
	Location string `json:"location"`
	IDs      int    `json:"ids"`
}

// InspectLedger loads the configured ledger and reports its size.
func InspectLedger(ctx context.Context, cfg config.Config, logger *slog.Logger) (LedgerInfo, error) {
	store, closer, err := openLedgerStore(ctx, cfg.Ledger)
	if err != nil {
		return LedgerInfo{}, err
	}
	if closer != nil {
		defer closer.Close()
	}

	tracker, err := ledger.Load(ctx, store, ledger.Options{}, logger)
	if err != nil {
		return LedgerInfo{}, err
	}

	info := LedgerInfo{Kind: "file", Location: cfg.Ledger.Path, IDs: tracker.Len()}
	if cfg.Ledger.Kind == "sql" {
		info.Kind, info.Location = "sql", cfg.Ledger.Driver
	}
	return info, nil
}

// ListRecords reads back the records the sql sink stored under category.
func ListRecords(ctx context.Context, cfg config.Config, category string) ([]storage.StoredRecord, error) {
	if cfg.Sink.Kind != "sql" {
		return nil, fmt.Errorf("listing records needs the sql sink, configured sink is %q", cfg.Sink.Kind)
	}
	db, err := storage.Open(ctx, cfg.Sink.Driver, cfg.Sink.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	defer db.Close()

	return storage.NewSQLSink(db).ByCategory(ctx, category)
}

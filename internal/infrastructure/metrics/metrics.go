// Package metrics counts pipeline activity on a private prometheus registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

// Recorder owns the pipeline collectors.
type Recorder struct {
	registry        *prometheus.Registry
	messages        *prometheus.CounterVec
	categorizations *prometheus.CounterVec
	degraded        *prometheus.CounterVec
	flushes         *prometheus.CounterVec
	runDuration     prometheus.Histogram
}

var _ ports.Metrics = (*Recorder)(nil)

// New registers every collector on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_messages_total",
			Help: "Messages seen by the pipeline, by result.",
		}, []string{"result"}),
		categorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_categorizations_total",
			Help: "Category outcomes by deciding strategy and outcome kind.",
		}, []string{"strategy", "outcome"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_llm_degraded_total",
			Help: "LLM categorizations that fell back to keywords, by reason.",
		}, []string{"reason"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsletter_ledger_flushes_total",
			Help: "Ledger flushes by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsletter_run_duration_seconds",
			Help:    "Wall time of one pipeline pass.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	r.registry.MustRegister(r.messages, r.categorizations, r.degraded, r.flushes, r.runDuration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Message counts one message with result emitted, skipped or failed.
func (r *Recorder) Message(result string) {
	r.messages.WithLabelValues(result).Inc()
}

// Categorized counts a category outcome.
func (r *Recorder) Categorized(outcome domain.CategoryOutcome) {
	kind := "fallback"
	if _, ok := outcome.(domain.Primary); ok {
		kind = "primary"
	}
	r.categorizations.WithLabelValues(string(outcome.Source()), kind).Inc()
}

// Degraded counts an LLM fallback to keywords.
func (r *Recorder) Degraded(reason domain.FallbackReason) {
	r.degraded.WithLabelValues(string(reason)).Inc()
}

// Flushed counts a ledger flush.
func (r *Recorder) Flushed(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.flushes.WithLabelValues(result).Inc()
}

// RunFinished observes the duration of a pass.
func (r *Recorder) RunFinished(d time.Duration) {
	r.runDuration.Observe(d.Seconds())
}

// WriteTextfile exports the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

// JSONLinesSink prints one JSON object per record, for dry runs.
type JSONLinesSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

var _ ports.RecordSink = (*JSONLinesSink)(nil)

// NewJSONLinesSink writes to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLinesSink{enc: enc}
}

// Write encodes rec as a single line.
func (s *JSONLinesSink) Write(_ context.Context, rec domain.StructuredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record %s: %w", rec.MessageID, err)
	}
	return nil
}

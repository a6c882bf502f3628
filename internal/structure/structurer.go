// Package structure turns a categorized message into the bounded record
// stored by the sinks.
package structure

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"NewsletterScanner/internal/domain"
)

const (
	noSubject       = "No Subject"
	ellipsis        = "..."
	fallbackIDToken = "{id}"
)

// Options bounds and labels the produced records.
type Options struct {
	DescriptionMaxLength int
	MaxOtherCategories   int
	OtherCategoriesMin   float64
	UncategorizedLabel   string
	SourceFallbackURL    string
}

// Structurer builds StructuredRecords. It holds no per-message state.
type Structurer struct {
	opts     Options
	validate *validator.Validate
}

// New returns a Structurer with sane defaults for zero options.
func New(opts Options) *Structurer {
	if opts.DescriptionMaxLength <= len(ellipsis) {
		opts.DescriptionMaxLength = 1990
	}
	if opts.UncategorizedLabel == "" {
		opts.UncategorizedLabel = "Sin categoría"
	}
	return &Structurer{opts: opts, validate: validator.New()}
}

// Build assembles the record for msg. text is the cleaned body; links and
// source come from the link extractor.
func (s *Structurer) Build(msg domain.RawMessage, text string, links []domain.Link, source *domain.Link, outcome domain.CategoryOutcome) domain.StructuredRecord {
	rec := domain.StructuredRecord{
		MessageID:     msg.ID,
		Title:         recordTitle(msg.Subject, links),
		PublishedDate: msg.ReceivedAt,
		Sender:        msg.Sender,
		Links:         links,
		Body:          text,
	}

	var (
		confidence float64
		summary    string
	)
	switch o := outcome.(type) {
	case domain.Primary:
		rec.Category = o.Score.Category
		confidence = o.Score.Confidence
		rec.OtherCategories = s.others(o.Others)
		summary = o.Summary
	case domain.Fallback:
		rec.Category = s.opts.UncategorizedLabel
		rec.OtherCategories = s.others(o.Scores)
		summary = o.Summary
	default:
		rec.Category = s.opts.UncategorizedLabel
	}
	rec.Confidence = &confidence

	desc := strings.TrimSpace(summary)
	if desc == "" {
		desc = strings.TrimSpace(text)
	}
	if desc == "" {
		desc = rec.Title
	}
	rec.Description = Truncate(desc, s.opts.DescriptionMaxLength)

	rec.SourceURL = s.sourceURL(msg, source)
	for _, l := range links {
		if l.URL != rec.SourceURL {
			u := l.URL
			rec.ContentLink = &u
			break
		}
	}

	return rec
}

// Validate checks rec against the sink schema.
func (s *Structurer) Validate(rec domain.StructuredRecord) error {
	if err := s.validate.Struct(rec); err != nil {
		return fmt.Errorf("record %s: %w", rec.MessageID, err)
	}
	if n := len([]rune(rec.Description)); n > s.opts.DescriptionMaxLength {
		return fmt.Errorf("record %s: description has %d characters, limit %d", rec.MessageID, n, s.opts.DescriptionMaxLength)
	}
	return nil
}

func (s *Structurer) others(scores []domain.CategoryScore) []domain.CategoryScore {
	var out []domain.CategoryScore
	for _, sc := range scores {
		if len(out) >= s.opts.MaxOtherCategories {
			break
		}
		if sc.Confidence >= s.opts.OtherCategoriesMin {
			out = append(out, sc)
		}
	}
	return out
}

func (s *Structurer) sourceURL(msg domain.RawMessage, source *domain.Link) string {
	if source != nil && source.URL != "" {
		return source.URL
	}
	if tmpl := s.opts.SourceFallbackURL; tmpl != "" && msg.ID != "" {
		return strings.ReplaceAll(tmpl, fallbackIDToken, url.PathEscape(strings.Trim(msg.ID, "<>")))
	}
	return "mailto:" + senderAddress(msg.Sender)
}

func recordTitle(subject string, links []domain.Link) string {
	if t := strings.TrimSpace(subject); t != "" {
		return t
	}
	for _, l := range links {
		if t := strings.TrimSpace(l.Title); t != "" {
			return t
		}
	}
	return noSubject
}

func senderAddress(sender string) string {
	if addr, err := mail.ParseAddress(sender); err == nil {
		return addr.Address
	}
	return strings.TrimSpace(sender)
}

// Truncate shortens text to at most limit characters, cutting at the last
// whitespace before the limit and appending "...". The marker counts toward
// the limit; a single word longer than the limit is cut mid-word.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}

	cut := runes[:limit-len(ellipsis)]
	// A cut that lands on whitespace already ends on a whole word.
	if !unicode.IsSpace(runes[len(cut)]) {
		for i := len(cut) - 1; i > 0; i-- {
			if unicode.IsSpace(cut[i]) {
				cut = cut[:i]
				break
			}
		}
	}
	head := strings.TrimRightFunc(string(cut), unicode.IsSpace)
	return head + ellipsis
}

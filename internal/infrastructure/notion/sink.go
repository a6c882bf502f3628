// Package notion writes structured records as pages of a Notion database.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"NewsletterScanner/internal/config"
	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

const unknownPropertyMarker = "is not a property that exists"

// APIError is a non-2xx answer from the Notion API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion api %d %s: %s", e.Status, e.Code, e.Message)
}

// Transient reports whether retrying the same request may succeed.
func (e *APIError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// Sink implements ports.RecordSink with the Notion pages API.
type Sink struct {
	endpoint   string
	token      string
	databaseID string
	version    string
	location   *time.Location
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.RecordSink = (*Sink)(nil)

// NewSink builds a sink from configuration. Dates are rendered in loc, UTC
// when nil.
func NewSink(cfg config.NotionConfig, loc *time.Location, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Sink{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		token:      cfg.Token,
		databaseID: cfg.DatabaseID,
		version:    cfg.Version,
		location:   loc,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "notion_sink"),
	}
}

type createPage struct {
	Parent     map[string]string `json:"parent"`
	Properties map[string]any    `json:"properties"`
	Children   []Block           `json:"children,omitempty"`
}

// Write creates one page. When the database lacks one of the optional
// properties the page is created again with the basic property set.
func (s *Sink) Write(ctx context.Context, rec domain.StructuredRecord) error {
	rec.PublishedDate = rec.PublishedDate.In(s.location)
	blocks := PageBlocks(rec)

	err := s.create(ctx, createPage{
		Parent:     map[string]string{"database_id": s.databaseID},
		Properties: FullProperties(rec),
		Children:   blocks,
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && strings.Contains(apiErr.Message, unknownPropertyMarker) {
		s.logger.Warn("notion database lacks optional properties, retrying with basic set",
			"message_id", rec.MessageID, "error", apiErr.Message)
		err = s.create(ctx, createPage{
			Parent:     map[string]string{"database_id": s.databaseID},
			Properties: BasicProperties(rec),
			Children:   blocks,
		})
	}
	if err != nil {
		return fmt.Errorf("notion create page %s: %w", rec.MessageID, err)
	}

	s.logger.Info("created notion page", "message_id", rec.MessageID, "title", rec.Title, "category", rec.Category)
	return nil
}

func (s *Sink) create(ctx context.Context, page createPage) error {
	body, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/pages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Notion-Version", s.version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(payload))}
		var decoded struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(payload, &decoded) == nil && decoded.Message != "" {
			apiErr.Code = decoded.Code
			apiErr.Message = decoded.Message
		}
		return apiErr
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func richTextProperty(content string) map[string]any {
	return map[string]any{"rich_text": []map[string]any{{"text": map[string]string{"content": clip(content)}}}}
}

// BasicProperties are the columns every newsletter database has.
func BasicProperties(rec domain.StructuredRecord) map[string]any {
	return map[string]any{
		"Name":        map[string]any{"title": []map[string]any{{"text": map[string]string{"content": clip(rec.Title)}}}},
		"Category":    map[string]any{"select": map[string]string{"name": rec.Category}},
		"Source":      map[string]any{"url": rec.SourceURL},
		"Date":        map[string]any{"date": map[string]string{"start": rec.PublishedDate.Format(time.RFC3339)}},
		"Description": richTextProperty(rec.Description),
	}
}

// FullProperties adds the optional columns to BasicProperties.
func FullProperties(rec domain.StructuredRecord) map[string]any {
	props := BasicProperties(rec)
	if rec.ContentLink != nil {
		props["Content Link"] = map[string]any{"url": *rec.ContentLink}
	} else {
		props["Content Link"] = map[string]any{"url": nil}
	}
	if rec.Confidence != nil {
		props["Confidence"] = map[string]any{"number": *rec.Confidence}
	}
	props["Other Categories"] = richTextProperty(domain.FormatScores(rec.OtherCategories))
	props["Sender"] = richTextProperty(rec.Sender)
	return props
}

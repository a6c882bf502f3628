package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsletterScanner/internal/config"
	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/logging"
)

func testRecord() domain.StructuredRecord {
	conf := 0.75
	link := "https://openai.com/blog/model"
	return domain.StructuredRecord{
		MessageID:       "m-1",
		Title:           "TLDR AI",
		Category:        "IA > negocio",
		SourceURL:       "https://tldr.tech/ai/2025-03-04",
		PublishedDate:   time.Date(2025, 3, 4, 8, 30, 0, 0, time.UTC),
		Description:     "Short description.",
		ContentLink:     &link,
		Confidence:      &conf,
		OtherCategories: []domain.CategoryScore{{Category: "Curiosidad de la semana", Confidence: 0.25}},
		Sender:          "TLDR AI <dan@tldrnewsletter.com>",
		Links:           []domain.Link{{Title: "Model", URL: link, Position: 1}},
		Body:            "HEADLINES & LAUNCHES\nOpenAI ships a model\n• faster\n• cheaper",
	}
}

func testSink(url string) *Sink {
	return NewSink(config.NotionConfig{
		Endpoint:   url,
		Token:      "secret",
		DatabaseID: "db-1",
		Version:    "2022-06-28",
	}, nil, logging.Discard())
}

func TestWriteCreatesPage(t *testing.T) {
	t.Parallel()

	var page struct {
		Parent     map[string]string          `json:"parent"`
		Properties map[string]json.RawMessage `json:"properties"`
		Children   []Block                    `json:"children"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&page))
		_, _ = w.Write([]byte(`{"object":"page","id":"p-1"}`))
	}))
	defer srv.Close()

	require.NoError(t, testSink(srv.URL).Write(context.Background(), testRecord()))

	assert.Equal(t, "db-1", page.Parent["database_id"])
	assert.Contains(t, page.Properties, "Confidence")
	assert.Contains(t, string(page.Properties["Other Categories"]), "Curiosidad de la semana: 0.25")
	assert.Contains(t, string(page.Properties["Date"]), "2025-03-04T08:30:00Z")
	require.NotEmpty(t, page.Children)
	assert.Equal(t, "heading_2", page.Children[0].Type)
}

func TestWriteRendersDatesInLocation(t *testing.T) {
	t.Parallel()

	var page struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Children   []Block                    `json:"children"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&page))
		_, _ = w.Write([]byte(`{"object":"page"}`))
	}))
	defer srv.Close()

	sink := NewSink(config.NotionConfig{Endpoint: srv.URL, Token: "secret", DatabaseID: "db-1"},
		time.FixedZone("ART", -3*60*60), logging.Discard())
	rec := testRecord()
	rec.PublishedDate = time.Date(2025, 3, 4, 1, 30, 0, 0, time.UTC)
	require.NoError(t, sink.Write(context.Background(), rec))

	assert.Contains(t, string(page.Properties["Date"]), "2025-03-03T22:30:00-03:00")
	require.Greater(t, len(page.Children), 2)
	date := page.Children[2].Paragraph
	require.NotNil(t, date)
	require.Len(t, date.RichText, 2)
	assert.Equal(t, "March 03, 2025", date.RichText[1].Text.Content)
}

func TestWriteFallsBackToBasicProperties(t *testing.T) {
	t.Parallel()

	var calls []map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var page struct {
			Properties map[string]json.RawMessage `json:"properties"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&page))
		calls = append(calls, page.Properties)
		if len(calls) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"Confidence is not a property that exists."}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"page"}`))
	}))
	defer srv.Close()

	require.NoError(t, testSink(srv.URL).Write(context.Background(), testRecord()))

	require.Len(t, calls, 2)
	assert.Contains(t, calls[0], "Sender")
	assert.NotContains(t, calls[1], "Sender")
	assert.NotContains(t, calls[1], "Confidence")
	assert.Contains(t, calls[1], "Name")
}

func TestWriteReportsTransientErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":"rate_limited","message":"slow down"}`))
	}))
	defer srv.Close()

	err := testSink(srv.URL).Write(context.Background(), testRecord())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Transient())
	assert.Equal(t, "rate_limited", apiErr.Code)
}

func TestPageBlocksStayWithinLimits(t *testing.T) {
	t.Parallel()

	rec := testRecord()
	var body strings.Builder
	for s := 0; s < 15; s++ {
		fmt.Fprintf(&body, "SECTION NUMBER %d\n", s)
		for l := 0; l < 40; l++ {
			fmt.Fprintf(&body, "%s line %d\n", strings.Repeat("word ", 120), l)
		}
	}
	rec.Body = body.String()
	for i := 0; i < 25; i++ {
		rec.Links = append(rec.Links, domain.Link{Title: "l", URL: fmt.Sprintf("https://e.example.com/%d", i)})
	}

	blocks := PageBlocks(rec)

	assert.LessOrEqual(t, len(blocks), maxBlocks)
	for _, b := range blocks {
		for _, tb := range []*textBlock{b.Heading2, b.Heading3, b.Paragraph, b.BulletedListItem} {
			if tb == nil {
				continue
			}
			for _, rt := range tb.RichText {
				assert.LessOrEqual(t, len([]rune(rt.Text.Content)), maxTextRunes)
			}
		}
	}
}

func TestSplitSections(t *testing.T) {
	t.Parallel()

	sections := splitSections("intro line\n\nHEADLINES & LAUNCHES\n• one\n• two\n## Research\npaper")

	require.Len(t, sections, 3)
	assert.Equal(t, mainSectionName, sections[0].name)
	assert.Equal(t, "HEADLINES & LAUNCHES", sections[1].name)
	assert.Equal(t, []string{"• one", "• two"}, sections[1].lines)
	assert.Equal(t, "Research", sections[2].name)

	assert.Equal(t, "bulleted_list_item", lineBlock("• one").Type)
	assert.Equal(t, "paragraph", lineBlock("plain").Type)
}

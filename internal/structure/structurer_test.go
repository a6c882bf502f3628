package structure

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsletterScanner/internal/domain"
)

var received = time.Date(2025, 3, 4, 8, 30, 0, 0, time.UTC)

func testMessage() domain.RawMessage {
	return domain.RawMessage{
		ID:         "18c2f0a",
		Sender:     "TLDR AI <dan@tldrnewsletter.com>",
		Subject:    "OpenAI ships a model",
		ReceivedAt: received,
	}
}

func testOptions() Options {
	return Options{
		DescriptionMaxLength: 1990,
		MaxOtherCategories:   2,
		OtherCategoriesMin:   0.05,
		UncategorizedLabel:   "Sin categoría",
		SourceFallbackURL:    "https://mail.google.com/mail/u/0/#inbox/{id}",
	}
}

func TestBuildPrimary(t *testing.T) {
	t.Parallel()

	links := []domain.Link{
		{Title: "Launches", URL: "https://tldr.tech/ai/2025-03-04", Position: 1},
		{Title: "Launches", URL: "https://openai.com/blog/model", Position: 2},
	}
	source := links[0]
	outcome := domain.Primary{
		Score: domain.CategoryScore{Category: "A", Confidence: 0.6},
		Others: []domain.CategoryScore{
			{Category: "B", Confidence: 0.2},
			{Category: "C", Confidence: 0.1},
			{Category: "D", Confidence: 0.06},
		},
		Strategy: domain.StrategyKeyword,
	}

	s := New(testOptions())
	rec := s.Build(testMessage(), "Body text here.", links, &source, outcome)

	assert.Equal(t, "18c2f0a", rec.MessageID)
	assert.Equal(t, "OpenAI ships a model", rec.Title)
	assert.Equal(t, "A", rec.Category)
	require.NotNil(t, rec.Confidence)
	assert.InDelta(t, 0.6, *rec.Confidence, 1e-9)
	assert.Equal(t, []domain.CategoryScore{{Category: "B", Confidence: 0.2}, {Category: "C", Confidence: 0.1}}, rec.OtherCategories)
	assert.Equal(t, "Body text here.", rec.Description)
	assert.Equal(t, "https://tldr.tech/ai/2025-03-04", rec.SourceURL)
	require.NotNil(t, rec.ContentLink)
	assert.Equal(t, "https://openai.com/blog/model", *rec.ContentLink)
	assert.Equal(t, received, rec.PublishedDate)

	require.NoError(t, s.Validate(rec))
}

func TestBuildFallbackUsesUncategorizedLabel(t *testing.T) {
	t.Parallel()

	outcome := domain.Fallback{
		Reason: domain.ReasonBelowThreshold,
		Scores: []domain.CategoryScore{
			{Category: "A", Confidence: 0.04},
		},
		Summary: "LLM summary wins.",
	}

	s := New(testOptions())
	rec := s.Build(testMessage(), "Body text.", nil, nil, outcome)

	assert.Equal(t, "Sin categoría", rec.Category)
	require.NotNil(t, rec.Confidence)
	assert.Zero(t, *rec.Confidence)
	assert.Empty(t, rec.OtherCategories)
	assert.Equal(t, "LLM summary wins.", rec.Description)
	assert.Equal(t, "https://mail.google.com/mail/u/0/#inbox/18c2f0a", rec.SourceURL)
	assert.Nil(t, rec.ContentLink)

	require.NoError(t, s.Validate(rec))
}

func TestBuildTitleAndSourceFallbacks(t *testing.T) {
	t.Parallel()

	msg := testMessage()
	msg.Subject = "  "
	msg.ID = ""

	opts := testOptions()
	s := New(opts)

	rec := s.Build(msg, "", nil, nil, domain.Fallback{Reason: domain.ReasonNoKeywordHits})
	assert.Equal(t, "No Subject", rec.Title)
	assert.Equal(t, "No Subject", rec.Description)
	assert.Equal(t, "mailto:dan@tldrnewsletter.com", rec.SourceURL)
	require.NoError(t, s.Validate(rec))

	links := []domain.Link{{Title: "First story", URL: "https://a.example.com", Position: 1}}
	rec = s.Build(msg, "text", links, nil, domain.Fallback{Reason: domain.ReasonNoKeywordHits})
	assert.Equal(t, "First story", rec.Title)
	require.NotNil(t, rec.ContentLink)
	assert.Equal(t, "https://a.example.com", *rec.ContentLink)
}

func TestBuildDescriptionRespectsBound(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.DescriptionMaxLength = 40
	s := New(opts)

	body := strings.Repeat("palabra ", 30)
	rec := s.Build(testMessage(), body, nil, nil, domain.Fallback{Reason: domain.ReasonNoKeywordHits})

	assert.LessOrEqual(t, utf8.RuneCountInString(rec.Description), 40)
	assert.True(t, strings.HasSuffix(rec.Description, "palabra..."), rec.Description)
	require.NoError(t, s.Validate(rec))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{name: "fits", text: "short text", limit: 20, want: "short text"},
		{name: "exact", text: "0123456789", limit: 10, want: "0123456789"},
		{name: "word boundary", text: "alpha beta gamma delta", limit: 15, want: "alpha beta..."},
		{name: "long word", text: "supercalifragilistic", limit: 10, want: "superca..."},
		{name: "multibyte", text: "áéíóú áéíóú áéíóú", limit: 14, want: "áéíóú áéíóú..."},
		{name: "whole word before cut", text: "aaa bbb ccc", limit: 10, want: "aaa bbb..."},
		{name: "cut inside word", text: "aaa bbb ccc", limit: 9, want: "aaa..."},
	}

	for _, tc := range cases {
		got := Truncate(tc.text, tc.limit)
		assert.Equal(t, tc.want, got, tc.name)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), tc.limit, tc.name)
	}
}

func TestValidateRejectsBrokenRecords(t *testing.T) {
	t.Parallel()

	s := New(testOptions())
	rec := s.Build(testMessage(), "text", nil, nil, domain.Fallback{Reason: domain.ReasonNoKeywordHits})

	broken := rec
	broken.SourceURL = "not a url"
	assert.Error(t, s.Validate(broken))

	broken = rec
	broken.PublishedDate = time.Time{}
	assert.Error(t, s.Validate(broken))

	broken = rec
	broken.Category = ""
	assert.Error(t, s.Validate(broken))
}

package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/logging"
)

type stubChat struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubChat) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

var testCategories = []Category{
	{Name: "IA > negocio", Keywords: []string{"empresa", "ROI"}},
	{Name: "IA > políticas", Keywords: []string{"regulación"}},
}

func newTestLLM(chat *stubChat, threshold float64, degraded *[]domain.FallbackReason) *LLMCategorizer {
	return NewLLMCategorizer(chat, testCategories, NewKeywordCategorizer(testCategories, threshold), LLMOptions{
		Threshold: threshold,
		OnDegrade: func(r domain.FallbackReason) {
			if degraded != nil {
				*degraded = append(*degraded, r)
			}
		},
	}, logging.Discard())
}

func TestLLMCategorizePrimary(t *testing.T) {
	t.Parallel()

	chat := &stubChat{reply: "```json\n" + `{"category":"ia > NEGOCIO","confidence":0.9,` +
		`"scores":{"IA > políticas":0.2,"Unknown":0.5},"explanation":"business","summary":"A short summary."}` + "\n```"}
	c := newTestLLM(chat, 0.1, nil)

	out := c.Categorize(context.Background(), "Subject", "content")

	p, ok := out.(domain.Primary)
	require.True(t, ok, "expected Primary, got %T", out)
	assert.Equal(t, "IA > negocio", p.Score.Category)
	assert.InDelta(t, 0.9, p.Score.Confidence, 1e-9)
	assert.Equal(t, "A short summary.", p.Summary)
	assert.Equal(t, domain.StrategyLLM, p.Source())
	require.Len(t, p.Others, 1)
	assert.Equal(t, "IA > políticas", p.Others[0].Category)

	require.Len(t, chat.prompts, 1)
	assert.Contains(t, chat.prompts[0], "- IA > negocio: empresa, ROI")
	assert.Contains(t, chat.prompts[0], "Title: Subject")
}

func TestLLMCategorizeDefaultConfidence(t *testing.T) {
	t.Parallel()

	for _, reply := range []string{
		`{"category":"IA > negocio"}`,
		`{"category":"IA > negocio","confidence":7}`,
	} {
		out := newTestLLM(&stubChat{reply: reply}, 0.1, nil).Categorize(context.Background(), "", "x")
		p, ok := out.(domain.Primary)
		require.True(t, ok, reply)
		assert.InDelta(t, 0.8, p.Score.Confidence, 1e-9, reply)
	}
}

func TestLLMCategorizeBelowThreshold(t *testing.T) {
	t.Parallel()

	out := newTestLLM(&stubChat{reply: `{"category":"IA > negocio","confidence":0.3}`}, 0.5, nil).
		Categorize(context.Background(), "", "x")

	f, ok := out.(domain.Fallback)
	require.True(t, ok, "expected Fallback, got %T", out)
	assert.Equal(t, domain.ReasonBelowThreshold, f.Reason)
	assert.Equal(t, domain.StrategyLLM, f.Source())
}

func TestLLMCategorizeDegradesToKeywords(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		chat   *stubChat
		reason domain.FallbackReason
	}{
		{name: "unknown category", chat: &stubChat{reply: `{"category":"Sports","confidence":0.99}`}, reason: domain.ReasonUnrecognizedCategory},
		{name: "not json", chat: &stubChat{reply: "I think it is business."}, reason: domain.ReasonUnrecognizedCategory},
		{name: "transport error", chat: &stubChat{err: errors.New("boom")}, reason: domain.ReasonLLMUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var degraded []domain.FallbackReason
			out := newTestLLM(tc.chat, 0.1, &degraded).
				Categorize(context.Background(), "Nueva regulación", "la empresa")

			p, ok := out.(domain.Primary)
			require.True(t, ok, "expected Primary, got %T", out)
			assert.Equal(t, domain.StrategyKeyword, p.Source())
			assert.InDelta(t, 0.5, p.Score.Confidence, 1e-9)
			assert.Equal(t, []domain.FallbackReason{tc.reason}, degraded)
		})
	}
}

func TestPromptTruncatesContent(t *testing.T) {
	t.Parallel()

	c := NewLLMCategorizer(&stubChat{}, testCategories, nil, LLMOptions{MaxContentRunes: 5}, logging.Discard())

	prompt := c.Prompt("s", strings.Repeat("ñ", 10))

	assert.Contains(t, prompt, "ñññññ"+truncatedMarker)
	assert.NotContains(t, prompt, "ññññññ")
}

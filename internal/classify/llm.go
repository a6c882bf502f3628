package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

const truncatedMarker = "... [content truncated]"

// LLMOptions tunes the LLM categorizer.
type LLMOptions struct {
	Threshold         float64
	DefaultConfidence float64
	MaxContentRunes   int
	// OnDegrade is called every time a message falls back to keywords.
	OnDegrade func(reason domain.FallbackReason)
}

// LLMCategorizer asks a chat model for the category and degrades to keyword
// counting whenever the model is unavailable or answers outside the table.
type LLMCategorizer struct {
	client     ports.ChatClient
	categories []Category
	keywords   *KeywordCategorizer
	opts       LLMOptions
	logger     *slog.Logger
}

var _ ports.Categorizer = (*LLMCategorizer)(nil)

// NewLLMCategorizer wires the chat client with the keyword fallback.
func NewLLMCategorizer(client ports.ChatClient, categories []Category, keywords *KeywordCategorizer, opts LLMOptions, logger *slog.Logger) *LLMCategorizer {
	if opts.DefaultConfidence <= 0 || opts.DefaultConfidence > 1 {
		opts.DefaultConfidence = 0.8
	}
	if opts.MaxContentRunes <= 0 {
		opts.MaxContentRunes = 2000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMCategorizer{
		client:     client,
		categories: categories,
		keywords:   keywords,
		opts:       opts,
		logger:     logger.With("component", "llm_categorizer"),
	}
}

// Name identifies the strategy.
func (c *LLMCategorizer) Name() domain.Strategy {
	return domain.StrategyLLM
}

// Categorize never fails: transport errors and unusable replies degrade to
// the keyword strategy for this message only.
func (c *LLMCategorizer) Categorize(ctx context.Context, subject, content string) domain.CategoryOutcome {
	raw, err := c.client.Complete(ctx, c.Prompt(subject, content))
	if err != nil {
		return c.degrade(ctx, subject, content, domain.ReasonLLMUnavailable, err)
	}

	rep, err := parseReply(raw)
	if err != nil {
		return c.degrade(ctx, subject, content, domain.ReasonUnrecognizedCategory, err)
	}

	name, ok := c.match(rep.Category)
	if !ok {
		return c.degrade(ctx, subject, content, domain.ReasonUnrecognizedCategory,
			fmt.Errorf("category %q is not configured", rep.Category))
	}

	confidence := c.opts.DefaultConfidence
	if rep.Confidence != nil && *rep.Confidence >= 0 && *rep.Confidence <= 1 {
		confidence = *rep.Confidence
	}
	top := domain.CategoryScore{Category: name, Confidence: confidence}
	others := c.otherScores(rep.Scores, name)

	c.logger.Info("llm categorization",
		"category", name,
		"confidence", confidence,
		"explanation", rep.Explanation,
		"scores", domain.FormatScores(others),
	)

	if confidence < c.opts.Threshold {
		return domain.Fallback{
			Reason:      domain.ReasonBelowThreshold,
			Scores:      append([]domain.CategoryScore{top}, others...),
			Summary:     strings.TrimSpace(rep.Summary),
			Explanation: rep.Explanation,
			Strategy:    domain.StrategyLLM,
		}
	}
	return domain.Primary{
		Score:       top,
		Others:      others,
		Summary:     strings.TrimSpace(rep.Summary),
		Explanation: rep.Explanation,
		Strategy:    domain.StrategyLLM,
	}
}

// Prompt renders the user message sent to the model.
func (c *LLMCategorizer) Prompt(subject, content string) string {
	var b strings.Builder
	b.WriteString("Categorize the following newsletter content into exactly one of the predefined categories.\n\n")
	b.WriteString("CATEGORIES:\n")
	for _, cat := range c.categories {
		fmt.Fprintf(&b, "- %s: %s\n", cat.Name, strings.Join(cat.Keywords, ", "))
	}
	b.WriteString("\nNEWSLETTER:\n")
	fmt.Fprintf(&b, "Title: %s\n\nContent:\n%s\n\n", subject, truncateContent(content, c.opts.MaxContentRunes))
	b.WriteString("Reply with a single JSON object with these fields:\n")
	b.WriteString(`{"category": "<one category name exactly as listed>", "confidence": <0..1>, ` +
		`"scores": {"<category>": <0..1>, ...}, "explanation": "<1-2 sentences>", ` +
		`"summary": "<2-3 sentence summary of the newsletter>"}`)
	b.WriteString("\n")
	return b.String()
}

func (c *LLMCategorizer) degrade(ctx context.Context, subject, content string, reason domain.FallbackReason, cause error) domain.CategoryOutcome {
	c.logger.Warn("llm categorization degraded to keywords", "reason", string(reason), "error", cause)
	if c.opts.OnDegrade != nil {
		c.opts.OnDegrade(reason)
	}
	return c.keywords.Categorize(ctx, subject, content)
}

// match resolves a model answer to a configured name, ignoring case and
// surrounding quotes or punctuation.
func (c *LLMCategorizer) match(answer string) (string, bool) {
	answer = fold(strings.Trim(strings.TrimSpace(answer), `"'.*`))
	if answer == "" {
		return "", false
	}
	for _, cat := range c.categories {
		if fold(cat.Name) == answer {
			return cat.Name, true
		}
	}
	return "", false
}

func (c *LLMCategorizer) otherScores(scores map[string]float64, primary string) []domain.CategoryScore {
	out := make([]domain.CategoryScore, 0, len(scores))
	order := map[string]int{}
	for i, cat := range c.categories {
		order[cat.Name] = i
	}
	for answer, value := range scores {
		name, ok := c.match(answer)
		if !ok || name == primary || value < 0 || value > 1 {
			continue
		}
		out = append(out, domain.CategoryScore{Category: name, Confidence: value})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return order[out[i].Category] < order[out[j].Category]
	})
	return out
}

type reply struct {
	Category    string             `json:"category"`
	Confidence  *float64           `json:"confidence"`
	Scores      map[string]float64 `json:"scores"`
	Explanation string             `json:"explanation"`
	Summary     string             `json:"summary"`
}

var errEmptyReply = errors.New("empty llm reply")

// parseReply strips markdown code fences before decoding the JSON object.
func parseReply(raw string) (reply, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return reply{}, errEmptyReply
	}

	var rep reply
	if err := json.Unmarshal([]byte(text), &rep); err != nil {
		return reply{}, fmt.Errorf("decode llm reply: %w", err)
	}
	return rep, nil
}

func truncateContent(content string, limit int) string {
	if utf8.RuneCountInString(content) <= limit {
		return content
	}
	return string([]rune(content)[:limit]) + truncatedMarker
}

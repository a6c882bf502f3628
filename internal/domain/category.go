package domain

import (
	"fmt"
	"strings"
)

// CategoryScore pairs a configured category with a normalized confidence in [0,1].
type CategoryScore struct {
	Category   string  `json:"category" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Strategy names the categorization variant that produced an outcome.
type Strategy string

const (
	StrategyKeyword Strategy = "keyword"
	StrategyLLM     Strategy = "llm"
)

// FallbackReason explains why no primary category was assigned.
type FallbackReason string

const (
	ReasonNoKeywordHits        FallbackReason = "no_keyword_hits"
	ReasonBelowThreshold       FallbackReason = "below_threshold"
	ReasonUnrecognizedCategory FallbackReason = "unrecognized_category"
	ReasonLLMUnavailable       FallbackReason = "llm_unavailable"
)

// CategoryOutcome is either Primary or Fallback. Consumers switch on the
// concrete type; there is no nil or sentinel category.
type CategoryOutcome interface {
	outcome()
	// Source reports which strategy decided the outcome.
	Source() Strategy
}

// Primary is a classification at or above the configured threshold.
type Primary struct {
	Score       CategoryScore
	Others      []CategoryScore
	Summary     string
	Explanation string
	Strategy    Strategy
}

// Fallback marks a message that is delivered under the uncategorized token.
type Fallback struct {
	Reason      FallbackReason
	Scores      []CategoryScore
	Summary     string
	Explanation string
	Strategy    Strategy
}

func (Primary) outcome()  {}
func (Fallback) outcome() {}

func (p Primary) Source() Strategy  { return p.Strategy }
func (f Fallback) Source() Strategy { return f.Strategy }

// FormatScores renders scores as "A: 0.67, B: 0.33" for text sink fields.
func FormatScores(scores []CategoryScore) string {
	parts := make([]string, 0, len(scores))
	for _, s := range scores {
		parts = append(parts, fmt.Sprintf("%s: %.2f", s.Category, s.Confidence))
	}
	return strings.Join(parts, ", ")
}

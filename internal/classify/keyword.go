// Package classify assigns newsletter content to one of the configured
// categories, either by keyword counting or by asking an LLM.
package classify

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

// Category is one row of the category table.
type Category struct {
	Name     string
	Keywords []string
}

type foldedCategory struct {
	name     string
	keywords []string
}

// KeywordCategorizer scores content by counting configured keywords.
type KeywordCategorizer struct {
	table     []foldedCategory
	threshold float64
}

var _ ports.Categorizer = (*KeywordCategorizer)(nil)

// NewKeywordCategorizer folds every keyword once. Duplicate keywords inside a
// category count once.
func NewKeywordCategorizer(categories []Category, threshold float64) *KeywordCategorizer {
	table := make([]foldedCategory, 0, len(categories))
	for _, cat := range categories {
		seen := map[string]bool{}
		folded := make([]string, 0, len(cat.Keywords))
		for _, kw := range cat.Keywords {
			kw = fold(strings.TrimSpace(kw))
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			folded = append(folded, kw)
		}
		table = append(table, foldedCategory{name: cat.Name, keywords: folded})
	}
	return &KeywordCategorizer{table: table, threshold: threshold}
}

// Name identifies the strategy.
func (k *KeywordCategorizer) Name() domain.Strategy {
	return domain.StrategyKeyword
}

// Categorize scores subject and content together and applies the threshold.
func (k *KeywordCategorizer) Categorize(_ context.Context, subject, content string) domain.CategoryOutcome {
	scores := k.Score(subject + " " + content)
	return Select(scores, k.threshold, domain.StrategyKeyword)
}

// Score returns each category's share of all keyword hits, highest first.
// Categories without hits are omitted; ties keep declaration order.
func (k *KeywordCategorizer) Score(content string) []domain.CategoryScore {
	text := fold(content)

	hits := make([]int, len(k.table))
	total := 0
	for i, cat := range k.table {
		for _, kw := range cat.keywords {
			hits[i] += strings.Count(text, kw)
		}
		total += hits[i]
	}
	if total == 0 {
		return nil
	}

	scores := make([]domain.CategoryScore, 0, len(k.table))
	for i, cat := range k.table {
		if hits[i] == 0 {
			continue
		}
		scores = append(scores, domain.CategoryScore{
			Category:   cat.name,
			Confidence: float64(hits[i]) / float64(total),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})
	return scores
}

// fold applies NFC normalization and Unicode case folding so that composed
// and decomposed accents and letter case all compare equal.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

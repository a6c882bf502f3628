package classify

import "NewsletterScanner/internal/domain"

// Select turns ranked scores into a tagged outcome. The top score becomes
// Primary only when it reaches threshold; the remaining scores travel along
// as candidates for "other categories".
func Select(scores []domain.CategoryScore, threshold float64, strategy domain.Strategy) domain.CategoryOutcome {
	if len(scores) == 0 {
		return domain.Fallback{Reason: domain.ReasonNoKeywordHits, Strategy: strategy}
	}
	if scores[0].Confidence < threshold {
		return domain.Fallback{
			Reason:   domain.ReasonBelowThreshold,
			Scores:   scores,
			Strategy: strategy,
		}
	}
	return domain.Primary{
		Score:    scores[0],
		Others:   append([]domain.CategoryScore(nil), scores[1:]...),
		Strategy: strategy,
	}
}

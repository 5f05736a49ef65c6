package usecase

import (
	"sort"

	"github.com/pilltong/pill-identifier/internal/core/domain"
)

// RankTags merges per-image prediction lists into one global ranking.
// Probabilities are summed per tag, so the result depends only on the
// multiset of predictions, never on image completion order. Ties keep
// first-seen tag order, which makes the ranking deterministic for a
// fixed request.
func RankTags(perImage [][]domain.Prediction, topK int) []domain.TagScore {
	totals := make(map[string]float64)
	order := make([]string, 0)

	for _, predictions := range perImage {
		for _, p := range predictions {
			if _, seen := totals[p.TagName]; !seen {
				order = append(order, p.TagName)
			}
			totals[p.TagName] += p.Probability
		}
	}

	scores := make([]domain.TagScore, 0, len(order))
	for _, tag := range order {
		scores = append(scores, domain.TagScore{TagName: tag, Probability: totals[tag]})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Probability > scores[j].Probability
	})

	if topK > 0 && len(scores) > topK {
		scores = scores[:topK]
	}
	return scores
}

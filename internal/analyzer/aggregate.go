package analyzer

import "github.com/bdougie/emotion/internal/models"

// Aggregate averages the per-frame scores. The label set is taken from the
// first result; labels that only later frames carry are ignored, and a first
// frame label missing from a later frame is averaged over the frames that
// have it. No results gives an empty, non-nil mapping.
func Aggregate(results []models.FrameResult) models.Emotions {
	averaged := models.Emotions{}
	if len(results) == 0 {
		return averaged
	}

	sums := make(map[string]float64, len(results[0].Emotions))
	counts := make(map[string]int, len(results[0].Emotions))
	for label := range results[0].Emotions {
		sums[label] = 0
	}

	for _, result := range results {
		for label, score := range result.Emotions {
			if _, ok := sums[label]; !ok {
				continue
			}
			sums[label] += score
			counts[label]++
		}
	}

	for label, sum := range sums {
		averaged[label] = sum / float64(counts[label])
	}
	return averaged
}

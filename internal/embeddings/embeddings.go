// Package embeddings lays emotion scores out as fixed order vectors so they
// can be stored and compared with pgvector.
package embeddings

import (
	"math"

	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/emotion/internal/models"
)

// Labels is the canonical vector order. It matches the categories of the
// usual facial expression classifiers.
var Labels = []string{"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral"}

// Dimensions of every emotion vector
var Dimensions = len(Labels)

// FromEmotions builds a unit length vector from scores. Labels outside
// Labels are dropped and missing ones are zero. An all zero input stays zero.
func FromEmotions(e models.Emotions) pgvector.Vector {
	vec := make([]float32, len(Labels))
	var norm float64
	for i, label := range Labels {
		score := e[label]
		vec[i] = float32(score)
		norm += score * score
	}

	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return pgvector.NewVector(vec)
}

// Dominant returns the label with the highest score, or "" for no scores.
// Ties go to the alphabetically first label so the answer is stable.
func Dominant(e models.Emotions) string {
	best := ""
	for label, score := range e {
		if best == "" || score > e[best] || (score == e[best] && label < best) {
			best = label
		}
	}
	return best
}

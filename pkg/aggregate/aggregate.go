// Package aggregate turns raw classifier scores into an emotion distribution.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/menta2k/moodlens/pkg/types"
)

// ErrScoreCount is returned when the score row does not have one value per emotion
var ErrScoreCount = errors.New("unexpected number of scores")

// ErrNonFiniteScore is returned when a raw score is NaN or infinite
var ErrNonFiniteScore = errors.New("non-finite score")

// Softmax converts raw scores to probabilities. The maximum score is subtracted
// before exponentiation so large inputs cannot overflow.
func Softmax(raw []float64) []float64 {
	if len(raw) == 0 {
		return nil
	}
	probs := make([]float64, len(raw))
	copy(probs, raw)

	floats.AddConst(-floats.Max(probs), probs)
	for i, v := range probs {
		probs[i] = math.Exp(v)
	}
	floats.Scale(1/floats.Sum(probs), probs)
	return probs
}

// Aggregate applies softmax to one model output row and picks the most likely
// emotion. Ties go to the lowest ordinal.
func Aggregate(raw []float32) (types.ClassifierOutput, error) {
	if len(raw) != types.EmotionCount {
		return types.ClassifierOutput{}, fmt.Errorf("%w: got %d, want %d", ErrScoreCount, len(raw), types.EmotionCount)
	}

	scores := make([]float64, len(raw))
	for i, v := range raw {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return types.ClassifierOutput{}, fmt.Errorf("%w: %v at %s", ErrNonFiniteScore, f, types.Emotion(i))
		}
		scores[i] = f
	}
	probs := Softmax(scores)

	confidence := make(map[types.Emotion]float64, types.EmotionCount)
	for _, e := range types.AllEmotions() {
		confidence[e] = probs[e]
	}

	return types.ClassifierOutput{
		PredictedEmotion: types.Emotion(floats.MaxIdx(probs)),
		ConfidenceScores: confidence,
	}, nil
}

// Ranked is one emotion with its probability
type Ranked struct {
	Emotion    types.Emotion `json:"emotion"`
	Confidence float64       `json:"confidence"`
}

// Top returns the n most likely emotions, highest first, ties by ordinal
func Top(out types.ClassifierOutput, n int) []Ranked {
	ranked := make([]Ranked, 0, len(out.ConfidenceScores))
	for _, e := range types.AllEmotions() {
		if score, ok := out.ConfidenceScores[e]; ok {
			ranked = append(ranked, Ranked{Emotion: e, Confidence: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

package types

import (
	"fmt"
	"strings"
)

// Emotion is one of the mood classes predicted by the classifier.
//
// The ordinal value of each constant is the index of that class in the model's
// output row. Reordering these constants requires retraining the model.
type Emotion int

const (
	Happy Emotion = iota
	Sad
	Angry
	Neutral
	Mysterious
	Romantic
	Energetic
	Calm
)

// EmotionCount is the width of the model's output row
const EmotionCount = 8

var emotionNames = [EmotionCount]string{
	"HAPPY",
	"SAD",
	"ANGRY",
	"NEUTRAL",
	"MYSTERIOUS",
	"ROMANTIC",
	"ENERGETIC",
	"CALM",
}

// AllEmotions returns every emotion in ordinal order
func AllEmotions() []Emotion {
	out := make([]Emotion, EmotionCount)
	for i := range out {
		out[i] = Emotion(i)
	}
	return out
}

// Valid reports whether e is one of the declared emotions
func (e Emotion) Valid() bool {
	return e >= 0 && int(e) < EmotionCount
}

func (e Emotion) String() string {
	if !e.Valid() {
		return fmt.Sprintf("Emotion(%d)", int(e))
	}
	return emotionNames[e]
}

// ParseEmotion resolves a case-insensitive emotion name
func ParseEmotion(s string) (Emotion, error) {
	s = strings.TrimSpace(s)
	for i, name := range emotionNames {
		if strings.EqualFold(s, name) {
			return Emotion(i), nil
		}
	}
	return 0, fmt.Errorf("unknown emotion: %q", s)
}

// MarshalText encodes the emotion by name so JSON maps are keyed by name
func (e Emotion) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid emotion ordinal: %d", int(e))
	}
	return []byte(e.String()), nil
}

func (e *Emotion) UnmarshalText(text []byte) error {
	parsed, err := ParseEmotion(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

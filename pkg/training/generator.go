// Package training produces synthetic labeled inputs and exports them for out-of-process model training.
package training

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/menta2k/moodlens/pkg/types"
)

// Colors associated with each emotion
var emotionColors = map[types.Emotion][]types.Color{
	types.Happy: {
		types.NewColor("yellow", 255, 255, 0),
		types.NewColor("orange", 255, 165, 0),
		types.NewColor("bright green", 0, 255, 0),
	},
	types.Sad: {
		types.NewColor("blue", 0, 0, 255),
		types.NewColor("gray", 128, 128, 128),
		types.NewColor("dark blue", 0, 0, 139),
	},
	types.Angry: {
		types.NewColor("red", 255, 0, 0),
		types.NewColor("dark red", 139, 0, 0),
		types.NewColor("black", 0, 0, 0),
	},
	types.Neutral: {
		types.NewColor("beige", 245, 245, 220),
		types.NewColor("gray", 128, 128, 128),
		types.NewColor("tan", 210, 180, 140),
	},
	types.Mysterious: {
		types.NewColor("purple", 128, 0, 128),
		types.NewColor("deep blue", 0, 0, 139),
		types.NewColor("midnight blue", 25, 25, 112),
	},
	types.Romantic: {
		types.NewColor("pink", 255, 192, 203),
		types.NewColor("light red", 255, 102, 102),
		types.NewColor("lavender", 230, 230, 250),
	},
	types.Energetic: {
		types.NewColor("bright pink", 255, 105, 180),
		types.NewColor("neon green", 57, 255, 20),
		types.NewColor("electric blue", 125, 249, 255),
	},
	types.Calm: {
		types.NewColor("light blue", 173, 216, 230),
		types.NewColor("sage green", 176, 208, 176),
		types.NewColor("lavender", 230, 230, 250),
	},
}

// Object labels associated with each emotion
var emotionObjects = map[types.Emotion][]string{
	types.Happy:      {"sun", "flower", "puppy", "balloon", "party"},
	types.Sad:        {"rain", "cloud", "wilted flower", "tissue", "tear"},
	types.Angry:      {"fire", "storm", "broken glass", "lightning", "fist"},
	types.Neutral:    {"wall", "chair", "paper", "clock", "desk"},
	types.Mysterious: {"fog", "shadow", "moon", "mask", "cave"},
	types.Romantic:   {"heart", "rose", "candle", "wine glass", "sunset"},
	types.Energetic:  {"fireworks", "sports", "lightning", "wave", "runner"},
	types.Calm:       {"lake", "tree", "mountain", "book", "hammock"},
}

var fallbackColor = types.NewColor("gray", 128, 128, 128)

// Generator builds synthetic ClassifierInputs. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// Option configures a Generator
type Option func(*Generator)

// WithSeed makes generation reproducible
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewGenerator creates a time-seeded generator
func NewGenerator(opts ...Option) *Generator {
	seed := uint64(time.Now().UnixNano())
	g := &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns n inputs with uniformly drawn emotion labels
func (g *Generator) Generate(n int) ([]types.ClassifierInput, []types.Emotion) {
	if n < 0 {
		n = 0
	}
	inputs := make([]types.ClassifierInput, 0, n)
	labels := make([]types.Emotion, 0, n)
	for i := 0; i < n; i++ {
		emotion := types.Emotion(g.rng.IntN(types.EmotionCount))
		inputs = append(inputs, g.InputFor(emotion))
		labels = append(labels, emotion)
	}
	return inputs, labels
}

// InputFor builds one input typical of emotion: a main color from its palette,
// 1-2 secondary colors, 1-3 objects and intensity/complexity details in 1..10.
func (g *Generator) InputFor(emotion types.Emotion) types.ClassifierInput {
	palette := emotionColors[emotion]

	main := fallbackColor
	if len(palette) > 0 {
		main = palette[g.rng.IntN(len(palette))]
	}

	secondary := g.pickColors(palette, 1+g.rng.IntN(2))

	labels := g.pickLabels(emotionObjects[emotion], 1+g.rng.IntN(3))
	objects := make([]types.DetectedObject, 0, len(labels))
	for _, label := range labels {
		objects = append(objects, g.object(label))
	}

	return types.ClassifierInput{
		MainColor:       main,
		SecondaryColors: secondary,
		Objects:         objects,
		AdditionalDetails: map[string]string{
			"intensity":  strconv.Itoa(1 + g.rng.IntN(10)),
			"complexity": strconv.Itoa(1 + g.rng.IntN(10)),
		},
	}
}

func (g *Generator) pickColors(from []types.Color, n int) []types.Color {
	shuffled := append([]types.Color(nil), from...)
	g.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:min(n, len(shuffled))]
}

func (g *Generator) pickLabels(from []string, n int) []string {
	shuffled := append([]string(nil), from...)
	g.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:min(n, len(shuffled))]
}

// object places label in a random normalized box with probability in [0.7, 1.0)
func (g *Generator) object(label string) types.DetectedObject {
	x := g.rng.Float64() * 0.8
	y := g.rng.Float64() * 0.8
	w := g.rng.Float64()*0.3 + 0.1
	h := g.rng.Float64()*0.3 + 0.1
	return types.DetectedObject{
		Label:       label,
		XMin:        x,
		YMin:        y,
		XMax:        min(x+w, 1),
		YMax:        min(y+h, 1),
		Probability: g.rng.Float64()*0.3 + 0.7,
	}
}

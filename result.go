package moodlens

import (
	"fmt"
	"strings"

	"github.com/menta2k/moodlens/pkg/aggregate"
	"github.com/menta2k/moodlens/pkg/kmeans"
	"github.com/menta2k/moodlens/pkg/processing"
	"github.com/menta2k/moodlens/pkg/types"
)

// Result is one classified image
type Result struct {
	Source   string                 `json:"source,omitempty"`
	Image    processing.ImageInfo   `json:"image"`
	Palette  []types.Color          `json:"palette"`
	Clusters []kmeans.Cluster       `json:"-"`
	Input    types.ClassifierInput  `json:"input"`
	Output   types.ClassifierOutput `json:"output"`
}

// Top returns the n most confident emotions
func (r *Result) Top(n int) []aggregate.Ranked {
	return aggregate.Top(r.Output, n)
}

// Summary renders the prediction, the three most likely emotions, the
// detected objects and the palette as plain text
func (r *Result) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Predicted Emotion: %s\n", r.Output.PredictedEmotion)
	b.WriteString("Confidence Score for Possibilities:\n")
	for _, ranked := range r.Top(3) {
		fmt.Fprintf(&b, "  %s: %.2f%%\n", ranked.Emotion, ranked.Confidence*100)
	}

	for _, obj := range r.Input.Objects {
		fmt.Fprintf(&b, "  Detected Object: %s with %.2f%% confidence\n", obj.Label, obj.Probability*100)
	}

	colors := make([]string, 0, len(r.Palette))
	for _, c := range r.Palette {
		colors = append(colors, fmt.Sprintf("%s(%d,%d,%d)", c.Name, c.Red, c.Green, c.Blue))
	}
	fmt.Fprintf(&b, "Detected Colors: %s\n", strings.Join(colors, ", "))

	return b.String()
}

package types

// Color is a named RGB color. Components are always within [0,255].
type Color struct {
	Name  string `json:"name"`
	Red   int    `json:"red"`
	Green int    `json:"green"`
	Blue  int    `json:"blue"`
}

// NewColor builds a Color, clamping every component to [0,255]
func NewColor(name string, r, g, b int) Color {
	return Color{Name: name, Red: clampChannel(r), Green: clampChannel(g), Blue: clampChannel(b)}
}

// Normalized returns the RGB components scaled to [0,1]
func (c Color) Normalized() (float32, float32, float32) {
	return float32(c.Red) / 255, float32(c.Green) / 255, float32(c.Blue) / 255
}

func clampChannel(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// DetectedObject is a labeled bounding box produced by an object detector.
// Box coordinates are normalized to [0,1].
type DetectedObject struct {
	Label       string  `json:"label,omitempty"`
	XMin        float64 `json:"x_min"`
	YMin        float64 `json:"y_min"`
	XMax        float64 `json:"x_max"`
	YMax        float64 `json:"y_max"`
	Probability float64 `json:"probability"`
}

// ClassifierInput carries the evidence that gets encoded into a feature vector
type ClassifierInput struct {
	MainColor         Color             `json:"main_color"`
	SecondaryColors   []Color           `json:"secondary_colors,omitempty"`
	Objects           []DetectedObject  `json:"objects,omitempty"`
	AdditionalDetails map[string]string `json:"additional_details,omitempty"`
}

// ClassifierOutput is the aggregated result of one inference call
type ClassifierOutput struct {
	PredictedEmotion Emotion             `json:"predicted_emotion"`
	ConfidenceScores map[Emotion]float64 `json:"confidence_scores"`
}

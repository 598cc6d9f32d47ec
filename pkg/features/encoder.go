// Package features encodes classifier evidence into the fixed-length vector the model consumes.
//
// The layout of the vector is part of the model contract:
//
//	[ main color RGB | (maxColors-1) secondary RGB triples | maxObjects object blocks ]
//
// where each object block holds one indicator per category followed by one
// indicator per attribute. Changing maxColors, maxObjects or either vocabulary
// invalidates every model trained against the previous layout.
package features

import (
	"strings"

	"github.com/menta2k/moodlens/pkg/types"
)

const (
	// DefaultMaxColors is the number of color slots, main color included
	DefaultMaxColors = 3
	// DefaultMaxObjects is the number of object blocks
	DefaultMaxObjects = 5
)

// DefaultCategories is the object category vocabulary the bundled model was trained on
var DefaultCategories = []string{
	"nature", "animal", "vehicle", "food", "furniture",
	"building", "clothing", "technology", "art", "people",
}

// DefaultAttributes is the attribute vocabulary the bundled model was trained on
var DefaultAttributes = []string{
	"small", "large", "bright", "dark", "soft", "hard",
	"round", "square", "old", "new", "shiny", "dull",
	"warm", "cold", "smooth", "rough", "heavy", "light",
}

// Encoder maps a ClassifierInput to a feature vector. It holds no state besides
// its configuration and is safe for concurrent use.
type Encoder struct {
	categories []string
	attributes []string
	maxColors  int
	maxObjects int
}

// Config describes the vector layout
type Config struct {
	Categories []string `json:"categories" yaml:"categories"`
	Attributes []string `json:"attributes" yaml:"attributes"`
	MaxColors  int      `json:"max_colors" yaml:"max_colors"`
	MaxObjects int      `json:"max_objects" yaml:"max_objects"`
}

// DefaultConfig returns the layout used by the bundled model
func DefaultConfig() Config {
	return Config{
		Categories: append([]string(nil), DefaultCategories...),
		Attributes: append([]string(nil), DefaultAttributes...),
		MaxColors:  DefaultMaxColors,
		MaxObjects: DefaultMaxObjects,
	}
}

// New creates an Encoder with the default layout
func New() *Encoder {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an Encoder with a custom layout. Attributes are matched
// in lower case, so they are lowered once here.
func NewWithConfig(cfg Config) *Encoder {
	if cfg.MaxColors < 1 {
		cfg.MaxColors = 1
	}
	if cfg.MaxObjects < 0 {
		cfg.MaxObjects = 0
	}
	attributes := make([]string, len(cfg.Attributes))
	for i, a := range cfg.Attributes {
		attributes[i] = strings.ToLower(a)
	}
	return &Encoder{
		categories: append([]string(nil), cfg.Categories...),
		attributes: attributes,
		maxColors:  cfg.MaxColors,
		maxObjects: cfg.MaxObjects,
	}
}

// ObjectWidth is the number of values contributed by one object
func (e *Encoder) ObjectWidth() int {
	return len(e.categories) + len(e.attributes)
}

// Length is the size of every vector produced by Encode
func (e *Encoder) Length() int {
	return 3*e.maxColors + e.maxObjects*e.ObjectWidth()
}

// InputShape is the model input tensor shape, batch size one
func (e *Encoder) InputShape() []int64 {
	return []int64{1, int64(e.Length())}
}

// Encode builds the feature vector. Missing colors and objects are zero padded
// and surplus entries are dropped, so the result always has Length() values.
func (e *Encoder) Encode(input types.ClassifierInput) []float32 {
	out := make([]float32, 0, e.Length())

	out = appendColor(out, input.MainColor)

	secondary := input.SecondaryColors
	if len(secondary) > e.maxColors-1 {
		secondary = secondary[:e.maxColors-1]
	}
	for _, c := range secondary {
		out = appendColor(out, c)
	}
	out = pad(out, 3*(e.maxColors-1-len(secondary)))

	objects := input.Objects
	if len(objects) > e.maxObjects {
		objects = objects[:e.maxObjects]
	}
	for _, obj := range objects {
		out = e.appendObject(out, obj)
	}
	out = pad(out, (e.maxObjects-len(objects))*e.ObjectWidth())

	return out
}

// appendObject writes one indicator per category (case-insensitive equality)
// and one per attribute (substring of the lowered label). Several slots may be
// set at once; this is not a strict one-hot encoding.
func (e *Encoder) appendObject(out []float32, obj types.DetectedObject) []float32 {
	for _, category := range e.categories {
		out = append(out, indicator(obj.Label != "" && strings.EqualFold(obj.Label, category)))
	}
	label := strings.ToLower(obj.Label)
	for _, attr := range e.attributes {
		out = append(out, indicator(obj.Label != "" && strings.Contains(label, attr)))
	}
	return out
}

func appendColor(out []float32, c types.Color) []float32 {
	r, g, b := types.NewColor(c.Name, c.Red, c.Green, c.Blue).Normalized()
	return append(out, r, g, b)
}

func pad(out []float32, n int) []float32 {
	for i := 0; i < n; i++ {
		out = append(out, 0)
	}
	return out
}

func indicator(hit bool) float32 {
	if hit {
		return 1
	}
	return 0
}

package features

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/moodlens/pkg/types"
)

var red = types.NewColor("red", 255, 0, 0)

func objects(labels ...string) []types.DetectedObject {
	out := make([]types.DetectedObject, len(labels))
	for i, l := range labels {
		out[i] = types.DetectedObject{Label: l, XMax: 1, YMax: 1, Probability: 0.9}
	}
	return out
}

func colors(n int) []types.Color {
	out := make([]types.Color, n)
	for i := range out {
		out[i] = types.NewColor(fmt.Sprintf("c%d", i), i*10, i*20, i*30)
	}
	return out
}

func TestDefaultLength(t *testing.T) {
	enc := New()
	assert.Equal(t, 28, enc.ObjectWidth())
	assert.Equal(t, 149, enc.Length())
	assert.Equal(t, []int64{1, 149}, enc.InputShape())
}

func TestEncodeLengthIsInvariant(t *testing.T) {
	enc := New()
	for _, nColors := range []int{0, 1, 2, 5} {
		for _, nObjects := range []int{0, 3, 5, 9} {
			t.Run(fmt.Sprintf("colors=%d/objects=%d", nColors, nObjects), func(t *testing.T) {
				labels := make([]string, nObjects)
				for i := range labels {
					labels[i] = "large animal"
				}
				vec := enc.Encode(types.ClassifierInput{
					MainColor:       red,
					SecondaryColors: colors(nColors),
					Objects:         objects(labels...),
				})
				assert.Len(t, vec, enc.Length())
			})
		}
	}
}

func TestEncodeCustomLayoutLength(t *testing.T) {
	enc := NewWithConfig(Config{
		Categories: []string{"a", "b"},
		Attributes: []string{"x"},
		MaxColors:  4,
		MaxObjects: 2,
	})
	assert.Equal(t, 3*4+2*3, enc.Length())
	vec := enc.Encode(types.ClassifierInput{MainColor: red, Objects: objects("a", "b", "x", "ax")})
	assert.Len(t, vec, enc.Length())
}

func TestEncodeFireScenario(t *testing.T) {
	enc := New()
	vec := enc.Encode(types.ClassifierInput{
		MainColor: red,
		Objects:   objects("fire"),
	})
	require.Len(t, vec, 149)

	assert.Equal(t, []float32{1, 0, 0}, vec[0:3])
	assert.Equal(t, make([]float32, 6), vec[3:9], "secondary colors are zero padded")
	// "fire" is neither a category nor contains any attribute
	assert.Equal(t, make([]float32, 28), vec[9:37])
	assert.Equal(t, make([]float32, 112), vec[37:149], "missing objects are zero padded")
}

func TestEncodeObjectIndicators(t *testing.T) {
	enc := New()
	vec := enc.Encode(types.ClassifierInput{
		MainColor: red,
		Objects:   objects("Animal", "bright light"),
	})

	first := vec[9:37]
	second := vec[37:65]

	// category "animal" is index 1
	assert.Equal(t, float32(1), first[1])
	assert.InDelta(t, 1, sum(first), 1e-9)

	// "bright light" hits attributes bright (2) and light (17); "light" also hides in "bright light"
	attrs := second[len(DefaultCategories):]
	assert.Equal(t, float32(1), attrs[2])
	assert.Equal(t, float32(1), attrs[17])
	assert.InDelta(t, 2, sum(second), 1e-9)
}

func TestEncodeAttributeSubstringCaseInsensitive(t *testing.T) {
	enc := NewWithConfig(Config{Attributes: []string{"Old"}, MaxColors: 1, MaxObjects: 1})
	vec := enc.Encode(types.ClassifierInput{MainColor: red, Objects: objects("GOLDEN retriever")})
	assert.Equal(t, []float32{1, 0, 0, 1}, vec)
}

func TestEncodeMultipleCategoryMatches(t *testing.T) {
	enc := NewWithConfig(Config{Categories: []string{"cat", "CAT"}, MaxColors: 1, MaxObjects: 1})
	vec := enc.Encode(types.ClassifierInput{MainColor: red, Objects: objects("Cat")})
	assert.Equal(t, []float32{1, 0, 0, 1, 1}, vec)
}

func TestEncodeEmptyLabelMatchesNothing(t *testing.T) {
	enc := NewWithConfig(Config{Categories: []string{""}, Attributes: []string{""}, MaxColors: 1, MaxObjects: 1})
	vec := enc.Encode(types.ClassifierInput{MainColor: red, Objects: objects("")})
	assert.Equal(t, []float32{1, 0, 0, 0, 0}, vec)
}

func TestEncodeSecondaryColorsTruncated(t *testing.T) {
	enc := New()
	secondary := []types.Color{
		types.NewColor("a", 0, 255, 0),
		types.NewColor("b", 0, 0, 255),
		types.NewColor("c", 255, 255, 255),
	}
	vec := enc.Encode(types.ClassifierInput{MainColor: red, SecondaryColors: secondary})
	assert.Equal(t, []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}, vec[:9])
}

func TestEncodeSurplusObjectsDropped(t *testing.T) {
	enc := New()
	labels := []string{"nature", "animal", "vehicle", "food", "furniture", "people"}
	vec := enc.Encode(types.ClassifierInput{MainColor: red, Objects: objects(labels...)})
	require.Len(t, vec, 149)

	for i := 0; i < DefaultMaxObjects; i++ {
		block := vec[9+i*28 : 9+(i+1)*28]
		assert.Equal(t, float32(1), block[i], "object %d", i)
	}
	// "people" (category 9) was the sixth object and must not appear anywhere
	for i := 0; i < DefaultMaxObjects; i++ {
		assert.Equal(t, float32(0), vec[9+i*28+9])
	}
}

func TestEncodeIsPure(t *testing.T) {
	enc := New()
	input := types.ClassifierInput{
		MainColor:       red,
		SecondaryColors: colors(2),
		Objects:         objects("old building", "animal"),
	}
	assert.Equal(t, enc.Encode(input), enc.Encode(input))
}

func sum(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x)
	}
	return s
}

func BenchmarkEncode(b *testing.B) {
	enc := New()
	input := types.ClassifierInput{
		MainColor:       red,
		SecondaryColors: colors(2),
		Objects:         objects("old building", "animal", "shiny car"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		enc.Encode(input)
	}
}

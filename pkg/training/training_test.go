package training

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/moodlens/pkg/features"
	"github.com/menta2k/moodlens/pkg/types"
)

func TestGenerateShape(t *testing.T) {
	inputs, labels := NewGenerator(WithSeed(7)).Generate(500)
	require.Len(t, inputs, 500)
	require.Len(t, labels, 500)

	seen := map[types.Emotion]bool{}
	for i, in := range inputs {
		emotion := labels[i]
		require.True(t, emotion.Valid())
		seen[emotion] = true

		assert.Contains(t, emotionColors[emotion], in.MainColor)
		assert.GreaterOrEqual(t, len(in.SecondaryColors), 1)
		assert.LessOrEqual(t, len(in.SecondaryColors), 2)
		assert.GreaterOrEqual(t, len(in.Objects), 1)
		assert.LessOrEqual(t, len(in.Objects), 3)

		for _, obj := range in.Objects {
			assert.Contains(t, emotionObjects[emotion], obj.Label)
			assert.GreaterOrEqual(t, obj.Probability, 0.7)
			assert.Less(t, obj.Probability, 1.0)
			assert.LessOrEqual(t, obj.XMin, obj.XMax)
			assert.LessOrEqual(t, obj.XMax, 1.0)
			assert.LessOrEqual(t, obj.YMin, obj.YMax)
		}

		for _, key := range []string{"intensity", "complexity"} {
			v := in.AdditionalDetails[key]
			assert.Contains(t, []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}, v, key)
		}
	}
	assert.Len(t, seen, types.EmotionCount, "500 draws cover every emotion")
}

func TestGenerateReproducible(t *testing.T) {
	a, la := NewGenerator(WithSeed(42)).Generate(50)
	b, lb := NewGenerator(WithSeed(42)).Generate(50)
	assert.Equal(t, a, b)
	assert.Equal(t, la, lb)

	inputs, labels := NewGenerator().Generate(-3)
	assert.Empty(t, inputs)
	assert.Empty(t, labels)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	featuresPath := filepath.Join(dir, FeaturesFile)
	labelsPath := filepath.Join(dir, LabelsFile)
	encoder := features.New()

	inputs, labels := NewGenerator(WithSeed(3)).Generate(20)
	require.NoError(t, Export(featuresPath, labelsPath, inputs, labels, encoder))

	featureData, err := os.ReadFile(featuresPath)
	require.NoError(t, err)
	rows := strings.Split(strings.TrimRight(string(featureData), "\n"), "\n")
	require.Len(t, rows, 20)
	for _, row := range rows {
		assert.Len(t, strings.Split(row, ","), encoder.Length())
	}

	// first three columns are the normalized main color
	first := strings.Split(rows[0], ",")
	r, g, b := inputs[0].MainColor.Normalized()
	for i, want := range []float32{r, g, b} {
		got, err := strconv.ParseFloat(first[i], 32)
		require.NoError(t, err)
		assert.Equal(t, want, float32(got))
	}

	labelData, err := os.ReadFile(labelsPath)
	require.NoError(t, err)
	labelRows := strings.Split(strings.TrimRight(string(labelData), "\n"), "\n")
	require.Len(t, labelRows, 20)
	for i, row := range labelRows {
		assert.Equal(t, strconv.Itoa(int(labels[i])), row)
	}
}

func TestExportMismatch(t *testing.T) {
	dir := t.TempDir()
	inputs, labels := NewGenerator(WithSeed(1)).Generate(3)
	err := Export(filepath.Join(dir, "f.csv"), filepath.Join(dir, "l.csv"), inputs, labels[:2], features.New())
	assert.ErrorContains(t, err, "3 inputs but 2 labels")

	_, err = os.Stat(filepath.Join(dir, "f.csv"))
	assert.True(t, os.IsNotExist(err), "nothing written on mismatch")
}

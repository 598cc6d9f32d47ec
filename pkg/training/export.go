package training

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/menta2k/moodlens/pkg/features"
	"github.com/menta2k/moodlens/pkg/types"
)

// Default export file names
const (
	FeaturesFile = "training_features.csv"
	LabelsFile   = "training_labels.csv"
)

// Export writes one row of comma-joined features per input to featuresPath and
// the matching emotion ordinal per row to labelsPath. Column order is the
// encoder's concatenation order.
func Export(featuresPath, labelsPath string, inputs []types.ClassifierInput, labels []types.Emotion, encoder *features.Encoder) error {
	if len(inputs) != len(labels) {
		return fmt.Errorf("export: %d inputs but %d labels", len(inputs), len(labels))
	}
	for i, l := range labels {
		if !l.Valid() {
			return fmt.Errorf("export: invalid label %d at row %d", int(l), i)
		}
	}

	err := writeRows(featuresPath, len(inputs), func(i int) []string {
		vec := encoder.Encode(inputs[i])
		row := make([]string, len(vec))
		for j, v := range vec {
			row[j] = strconv.FormatFloat(float64(v), 'g', -1, 32)
		}
		return row
	})
	if err != nil {
		return fmt.Errorf("export features: %w", err)
	}

	err = writeRows(labelsPath, len(labels), func(i int) []string {
		return []string{strconv.Itoa(int(labels[i]))}
	})
	if err != nil {
		return fmt.Errorf("export labels: %w", err)
	}
	return nil
}

func writeRows(path string, n int, row func(int) []string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

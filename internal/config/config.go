package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/moodlens/pkg/features"
	"github.com/menta2k/moodlens/pkg/inference"
	"github.com/menta2k/moodlens/pkg/kmeans"
	"github.com/menta2k/moodlens/pkg/processing"
)

// Config holds the application configuration
type Config struct {
	Sampler    SamplerConfig    `json:"sampler" yaml:"sampler"`
	Clustering ClusteringConfig `json:"clustering" yaml:"clustering"`
	Encoder    features.Config  `json:"encoder" yaml:"encoder"`
	Model      ModelConfig      `json:"model" yaml:"model"`
	Detector   DetectorConfig   `json:"detector" yaml:"detector"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// SamplerConfig holds the working resolution for palette sampling
type SamplerConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// ClusteringConfig holds k-means settings. Seed 0 seeds from the clock.
type ClusteringConfig struct {
	K       int    `json:"k" yaml:"k"`
	Seed    uint64 `json:"seed" yaml:"seed"`
	Workers int    `json:"workers" yaml:"workers"`
}

// ModelConfig locates the trained classifier and tunes the runtime
type ModelConfig struct {
	Path           string `json:"path" yaml:"path"`
	LibraryPath    string `json:"library_path" yaml:"library_path"`
	IntraOpThreads int    `json:"intra_op_threads" yaml:"intra_op_threads"`
	InterOpThreads int    `json:"inter_op_threads" yaml:"inter_op_threads"`
}

// DetectorConfig holds settings for the optional vision-model object detector
type DetectorConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	URL     string `json:"url" yaml:"url"`
	Model   string `json:"model" yaml:"model"`
	TopK    int    `json:"top_k" yaml:"top_k"`
	MaxDim  int    `json:"max_dim" yaml:"max_dim"`
	Format  string `json:"format" yaml:"format"`
	Quality int    `json:"quality" yaml:"quality"`
}

// OutputConfig holds configuration for overlays and exports
type OutputConfig struct {
	Format    string `json:"format" yaml:"format"`
	Quality   int    `json:"quality" yaml:"quality"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	Suffix    string `json:"suffix" yaml:"suffix"`
}

// LoggingConfig selects the zap level and encoding
type LoggingConfig struct {
	Level    string `json:"level" yaml:"level"`
	Encoding string `json:"encoding" yaml:"encoding"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Sampler: SamplerConfig{
			Width:  processing.DefaultSampleSize,
			Height: processing.DefaultSampleSize,
		},
		Clustering: ClusteringConfig{
			K: kmeans.DefaultK,
		},
		Encoder: features.DefaultConfig(),
		Model: ModelConfig{
			Path:           "emotion_classifier_model.onnx",
			IntraOpThreads: 1,
			InterOpThreads: 1,
		},
		Detector: DetectorConfig{
			Backend: "none",
			URL:     "http://localhost:11434",
			Model:   "llava",
			TopK:    20,
			MaxDim:  1024,
			Format:  "jpg",
			Quality: 85,
		},
		Output: OutputConfig{
			Format:    "jpg",
			Quality:   90,
			OutputDir: "./output",
			Suffix:    "_overlay",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration as JSON, or YAML for .yaml/.yml names
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Sampler.Width < 1 || c.Sampler.Height < 1 {
		return fmt.Errorf("sampler.width and sampler.height must be positive")
	}

	if c.Clustering.K < 1 {
		return fmt.Errorf("clustering.k must be at least 1")
	}

	if c.Encoder.MaxColors < 1 {
		return fmt.Errorf("encoder.max_colors must be at least 1")
	}

	if c.Encoder.MaxObjects < 0 {
		return fmt.Errorf("encoder.max_objects cannot be negative")
	}

	if err := validateVocabulary("encoder.categories", c.Encoder.Categories); err != nil {
		return err
	}
	if err := validateVocabulary("encoder.attributes", c.Encoder.Attributes); err != nil {
		return err
	}

	if strings.TrimSpace(c.Model.Path) == "" {
		return fmt.Errorf("model.path cannot be empty")
	}

	switch strings.ToLower(c.Detector.Backend) {
	case "", "none", "ollama", "llamacpp":
	default:
		return fmt.Errorf("detector.backend must be one of none, ollama, llamacpp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

func validateVocabulary(field string, entries []string) error {
	if len(entries) == 0 {
		return fmt.Errorf("%s cannot be empty", field)
	}
	for i, e := range entries {
		if strings.TrimSpace(e) == "" {
			return fmt.Errorf("%s[%d] is blank", field, i)
		}
	}
	return nil
}

// FeatureLength is the encoded vector length the configured model must accept
func (c *Config) FeatureLength() int {
	return 3*c.Encoder.MaxColors + c.Encoder.MaxObjects*(len(c.Encoder.Categories)+len(c.Encoder.Attributes))
}

// Inference returns the runtime settings for the configured model
func (c *Config) Inference() inference.Config {
	cfg := inference.DefaultConfig()
	cfg.InputLength = c.FeatureLength()
	cfg.LibraryPath = c.Model.LibraryPath
	cfg.IntraOpThreads = c.Model.IntraOpThreads
	cfg.InterOpThreads = c.Model.InterOpThreads
	return cfg
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "moodlens", "config.json")
}

func isYAML(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

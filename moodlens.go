// Package moodlens predicts the mood of a still image.
//
// A Pipeline samples the image, clusters its pixels into a small palette,
// names each dominant color, encodes the palette and any detected objects into
// a fixed-length feature vector, runs the vector through a trained ONNX
// classifier and turns the raw scores into a probability per emotion.
//
// Basic usage:
//
//	p, err := moodlens.New(moodlens.WithSeed(1))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//
//	if err := p.Load("emotion_classifier_model.onnx"); err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := p.RunFile("photo.jpg", []types.DetectedObject{{Label: "tree", Probability: 0.9}})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Print(result.Summary())
//
// Models are trained out of process. pkg/training generates and exports labeled
// feature rows; the trained model must accept a [1, N] float32 row, where N is
// the encoder length, and return [1, 8] raw scores in emotion ordinal order.
package moodlens

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/menta2k/moodlens/internal/config"
	"github.com/menta2k/moodlens/pkg/aggregate"
	"github.com/menta2k/moodlens/pkg/colornamer"
	"github.com/menta2k/moodlens/pkg/colorspace"
	"github.com/menta2k/moodlens/pkg/detection"
	"github.com/menta2k/moodlens/pkg/features"
	"github.com/menta2k/moodlens/pkg/inference"
	"github.com/menta2k/moodlens/pkg/kmeans"
	"github.com/menta2k/moodlens/pkg/metrics"
	"github.com/menta2k/moodlens/pkg/processing"
	"github.com/menta2k/moodlens/pkg/types"
)

// Version of the moodlens library
const Version = "1.0.0"

var (
	ErrImageDecode        = processing.ErrImageDecode
	ErrModelNotFound      = inference.ErrModelNotFound
	ErrSessionNotLoaded   = inference.ErrSessionNotLoaded
	ErrNotSupported       = inference.ErrNotSupported
	ErrShapeMismatch      = inference.ErrShapeMismatch
	ErrInvalidColorFormat = colorspace.ErrInvalidColorFormat
	// ErrNoDetector is returned by DetectObjects when no detector is configured
	ErrNoDetector = errors.New("no object detector configured")
)

// Pipeline runs image -> palette -> features -> scores -> emotion.
// It is safe for concurrent use; forward passes are serialized by the engine.
type Pipeline struct {
	processor *processing.Processor
	encoder   *features.Encoder
	engine    *inference.Engine
	logger    *zap.Logger
	metrics   *metrics.Recorder

	// the clusterer's random source is not safe for concurrent use
	clusterMu sync.Mutex
	clusterer *kmeans.Clusterer

	detector      *detection.Detector
	detectorModel string
	detectMaxDim  int

	sampleWidth  int
	sampleHeight int
	k            int

	inferenceCfg  inference.Config
	engineOptions []inference.Option
	clusterOpts   []kmeans.Option
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger used by the pipeline and its engine
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records run counts and stage timings
func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithEncoder replaces the default feature layout
func WithEncoder(encoder *features.Encoder) Option {
	return func(p *Pipeline) {
		if encoder != nil {
			p.encoder = encoder
		}
	}
}

// WithSampleSize sets the working resolution used for clustering
func WithSampleSize(width, height int) Option {
	return func(p *Pipeline) {
		if width > 0 && height > 0 {
			p.sampleWidth, p.sampleHeight = width, height
		}
	}
}

// WithClusters sets the number of palette colors
func WithClusters(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.k = k
		}
	}
}

// WithSeed makes centroid initialization reproducible
func WithSeed(seed uint64) Option {
	return func(p *Pipeline) {
		p.clusterOpts = append(p.clusterOpts, kmeans.WithSeed(seed))
	}
}

// WithClusterWorkers bounds the goroutines used for centroid assignment
func WithClusterWorkers(n int) Option {
	return func(p *Pipeline) {
		p.clusterOpts = append(p.clusterOpts, kmeans.WithWorkers(n))
	}
}

// WithInferenceConfig sets the runtime settings. InputLength is always taken from the encoder.
func WithInferenceConfig(cfg inference.Config) Option {
	return func(p *Pipeline) {
		p.inferenceCfg = cfg
	}
}

// WithOpener replaces the ONNX session factory
func WithOpener(open inference.Opener) Option {
	return func(p *Pipeline) {
		p.engineOptions = append(p.engineOptions, inference.WithOpener(open))
	}
}

// WithDetector enables DetectObjects using model on the detector's backend
func WithDetector(d *detection.Detector, model string, maxDim int) Option {
	return func(p *Pipeline) {
		p.detector = d
		p.detectorModel = model
		p.detectMaxDim = maxDim
	}
}

// New creates a pipeline with no model loaded
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		processor:    processing.NewProcessor(),
		encoder:      features.New(),
		logger:       zap.NewNop(),
		sampleWidth:  processing.DefaultSampleSize,
		sampleHeight: processing.DefaultSampleSize,
		k:            kmeans.DefaultK,
		inferenceCfg: inference.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.encoder.Length() == 0 {
		return nil, errors.New("encoder produces an empty feature vector")
	}

	p.clusterer = kmeans.New(p.clusterOpts...)

	cfg := p.inferenceCfg
	cfg.InputLength = p.encoder.Length()
	engineOpts := append([]inference.Option{inference.WithLogger(p.logger)}, p.engineOptions...)
	p.engine = inference.New(cfg, engineOpts...)

	return p, nil
}

// NewFromConfig creates a pipeline from application configuration
func NewFromConfig(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	base := []Option{
		WithEncoder(features.NewWithConfig(cfg.Encoder)),
		WithSampleSize(cfg.Sampler.Width, cfg.Sampler.Height),
		WithClusters(cfg.Clustering.K),
		WithInferenceConfig(cfg.Inference()),
	}
	if cfg.Clustering.Seed != 0 {
		base = append(base, WithSeed(cfg.Clustering.Seed))
	}
	if cfg.Clustering.Workers > 0 {
		base = append(base, WithClusterWorkers(cfg.Clustering.Workers))
	}
	return New(append(base, opts...)...)
}

// Load opens the trained model, replacing any model loaded before
func (p *Pipeline) Load(modelPath string) error {
	return p.engine.Load(modelPath)
}

// Loaded reports whether a model session is live
func (p *Pipeline) Loaded() bool {
	return p.engine.Loaded()
}

// Close releases the model session
func (p *Pipeline) Close() error {
	return p.engine.Close()
}

// Encoder returns the feature layout the loaded model must match
func (p *Pipeline) Encoder() *features.Encoder {
	return p.encoder
}

// Processor returns the image loader used by the pipeline
func (p *Pipeline) Processor() *processing.Processor {
	return p.processor
}

// Run classifies img given the objects detected in it
func (p *Pipeline) Run(img image.Image, objects []types.DetectedObject) (types.ClassifierOutput, error) {
	result, err := p.RunDetailed(img, objects)
	if err != nil {
		return types.ClassifierOutput{}, err
	}
	return result.Output, nil
}

// RunFile loads a file path or http(s) URL and classifies it
func (p *Pipeline) RunFile(source string, objects []types.DetectedObject) (*Result, error) {
	img, err := p.processor.LoadImageSmart(source)
	if err != nil {
		p.metrics.Run(err)
		return nil, err
	}
	result, err := p.RunDetailed(img, objects)
	if err != nil {
		return nil, err
	}
	result.Source = source
	return result, nil
}

// RunDetailed classifies img and returns the palette and input alongside the output
func (p *Pipeline) RunDetailed(img image.Image, objects []types.DetectedObject) (result *Result, err error) {
	defer func() { p.metrics.Run(err) }()

	palette, clusters, err := p.Palette(img)
	if err != nil {
		return nil, err
	}

	input := BuildInput(palette, objects)
	output, err := p.predict(input)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("image classified",
		zap.Stringer("emotion", output.PredictedEmotion),
		zap.String("main_color", input.MainColor.Name),
		zap.Int("objects", len(input.Objects)))

	return &Result{
		Image:    p.processor.GetImageInfo(img),
		Palette:  palette,
		Clusters: clusters,
		Input:    input,
		Output:   output,
	}, nil
}

// Palette samples img and returns its named dominant colors, largest cluster first
func (p *Pipeline) Palette(img image.Image) ([]types.Color, []kmeans.Cluster, error) {
	done := p.metrics.Stage(metrics.StageSample)
	samples, err := p.processor.Sample(img, p.sampleWidth, p.sampleHeight)
	done()
	if err != nil {
		return nil, nil, err
	}

	done = p.metrics.Stage(metrics.StageCluster)
	p.clusterMu.Lock()
	clusters := p.clusterer.Cluster(samples, p.k)
	p.clusterMu.Unlock()
	done()

	palette := make([]types.Color, len(clusters))
	for i, c := range clusters {
		palette[i] = colornamer.Describe(c.Centroid)
	}
	return palette, clusters, nil
}

// Predict classifies an already assembled input
func (p *Pipeline) Predict(input types.ClassifierInput) (types.ClassifierOutput, error) {
	out, err := p.predict(input)
	p.metrics.Run(err)
	return out, err
}

func (p *Pipeline) predict(input types.ClassifierInput) (types.ClassifierOutput, error) {
	done := p.metrics.Stage(metrics.StageEncode)
	vector := p.encoder.Encode(input)
	done()

	done = p.metrics.Stage(metrics.StagePredict)
	raw, err := p.engine.Predict(vector)
	done()
	if err != nil {
		return types.ClassifierOutput{}, err
	}

	done = p.metrics.Stage(metrics.StageAggregate)
	output, err := aggregate.Aggregate(raw)
	done()
	if err != nil {
		return types.ClassifierOutput{}, err
	}

	p.metrics.Prediction(output.PredictedEmotion)
	return output, nil
}

// Classify predicts from a main color literal ("name,R,G,B" or "#rrggbb") and
// comma-separated object labels. A malformed literal is replaced by white and
// the substitution is logged and counted.
func (p *Pipeline) Classify(mainColor, labels string) (types.ClassifierOutput, error) {
	color, substituted := colorspace.ParseColorOrDefault(mainColor, p.logger)
	if substituted {
		p.metrics.Substitution()
	}

	input := types.ClassifierInput{
		MainColor: color,
		Objects:   ParseLabels(labels),
	}
	return p.Predict(input)
}

// DetectObjects asks the configured vision model for the objects in img
func (p *Pipeline) DetectObjects(ctx context.Context, img image.Image) ([]types.DetectedObject, error) {
	if p.detector == nil {
		return nil, ErrNoDetector
	}
	b64, err := p.processor.PrepareImageForModel(img, "jpg", p.detectMaxDim, 85)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image for detector: %w", err)
	}
	return p.detector.DetectObjects(ctx, p.detectorModel, b64)
}

// BuildInput makes the first palette color the main color and the rest
// secondary, keeping only objects with a non-blank label
func BuildInput(palette []types.Color, objects []types.DetectedObject) types.ClassifierInput {
	input := types.ClassifierInput{
		MainColor: colorspace.DefaultColor,
	}
	if len(palette) > 0 {
		input.MainColor = palette[0]
		input.SecondaryColors = append([]types.Color(nil), palette[1:]...)
	}
	for _, obj := range objects {
		if strings.TrimSpace(obj.Label) == "" {
			continue
		}
		input.Objects = append(input.Objects, obj)
	}
	return input
}

// ParseLabels turns "sun, beach,ocean" into whole-image detections with full confidence
func ParseLabels(labels string) []types.DetectedObject {
	var objects []types.DetectedObject
	for _, label := range strings.Split(labels, ",") {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		objects = append(objects, types.DetectedObject{
			Label:       label,
			XMax:        1,
			YMax:        1,
			Probability: 1,
		})
	}
	return objects
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

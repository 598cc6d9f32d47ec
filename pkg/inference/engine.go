// Package inference owns the trained classifier session and runs forward passes.
//
// An Engine holds at most one live Session. Sessions are not safe for
// concurrent forward passes, so Predict serializes callers on the engine mutex.
// Callers that want parallel inference should use one Engine per goroutine.
package inference

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/menta2k/moodlens/pkg/types"
)

var (
	// ErrModelNotFound is returned by Load when no artifact exists at the path
	ErrModelNotFound = errors.New("model artifact not found")
	// ErrSessionNotLoaded is returned by Predict before a successful Load
	ErrSessionNotLoaded = errors.New("model session not loaded")
	// ErrNotSupported marks capabilities this engine does not provide
	ErrNotSupported = errors.New("not supported")
	// ErrShapeMismatch is returned when a vector or model does not match the tensor contract
	ErrShapeMismatch = errors.New("tensor shape mismatch")
)

// TrainingWorkflow describes how models are produced for this engine
const TrainingWorkflow = "generate and export features with the training exporter, " +
	"train externally, export the trained model to ONNX, then reload it with Load"

// Session is a loaded model that maps one [1, n] input row to one output row
type Session interface {
	Run(input []float32) ([]float32, error)
	Close() error
}

// Opener creates a Session for the artifact at path
type Opener func(path string, cfg Config) (Session, error)

// Config holds the tensor contract and runtime settings
type Config struct {
	// InputLength is the feature vector length; 0 skips the check
	InputLength int `json:"input_length" yaml:"input_length"`
	// OutputLength is the score row length
	OutputLength int `json:"output_length" yaml:"output_length"`
	// LibraryPath points at the onnxruntime shared library; empty searches common locations
	LibraryPath    string `json:"library_path" yaml:"library_path"`
	IntraOpThreads int    `json:"intra_op_threads" yaml:"intra_op_threads"`
	InterOpThreads int    `json:"inter_op_threads" yaml:"inter_op_threads"`
}

// DefaultConfig returns single-threaded settings with an eight-class output
func DefaultConfig() Config {
	return Config{
		OutputLength:   types.EmotionCount,
		IntraOpThreads: 1,
		InterOpThreads: 1,
	}
}

// Engine owns a model session
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	open    Opener
	logger  *zap.Logger
	session Session
	path    string
}

// Option configures an Engine
type Option func(*Engine)

// WithOpener replaces the ONNX runtime session factory
func WithOpener(open Opener) Option {
	return func(e *Engine) {
		e.open = open
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine without a session
func New(cfg Config, opts ...Option) *Engine {
	if cfg.OutputLength <= 0 {
		cfg.OutputLength = types.EmotionCount
	}
	e := &Engine{
		cfg:    cfg,
		open:   OpenONNX,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load opens the artifact at path, closing any session held before.
// The previous session is kept if the new one fails to open.
func (e *Engine) Load(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}

	session, err := e.open(path, e.cfg)
	if err != nil {
		return fmt.Errorf("failed to open model %s: %w", path, err)
	}

	e.mu.Lock()
	previous := e.session
	e.session = session
	e.path = path
	e.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			e.logger.Warn("failed to close previous session", zap.Error(err))
		}
	}

	e.logger.Info("model loaded", zap.String("path", path))
	return nil
}

// Loaded reports whether a session is live
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// ModelPath returns the path of the live session, or "" if none
func (e *Engine) ModelPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path
}

// Predict runs one forward pass and returns the raw score row, ordered by emotion ordinal
func (e *Engine) Predict(vector []float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, ErrSessionNotLoaded
	}
	if e.cfg.InputLength > 0 && len(vector) != e.cfg.InputLength {
		return nil, fmt.Errorf("%w: input has %d features, model expects %d", ErrShapeMismatch, len(vector), e.cfg.InputLength)
	}

	scores, err := e.session.Run(vector)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if len(scores) != e.cfg.OutputLength {
		return nil, fmt.Errorf("%w: model returned %d scores, want %d", ErrShapeMismatch, len(scores), e.cfg.OutputLength)
	}
	return scores, nil
}

// Close releases the session. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	session := e.session
	e.session = nil
	e.path = ""
	e.mu.Unlock()

	if session == nil {
		return nil
	}
	if err := session.Close(); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// Train always fails: models are trained outside this process and loaded as ONNX artifacts.
func (e *Engine) Train(inputs []types.ClassifierInput, labels []types.Emotion) error {
	e.logger.Info("in-process training requested",
		zap.Int("samples", len(inputs)),
		zap.Int("labels", len(labels)),
		zap.String("workflow", TrainingWorkflow))
	return fmt.Errorf("%w: in-process training; %s", ErrNotSupported, TrainingWorkflow)
}

// WithSession loads the model at path, runs fn and closes the session on every
// exit path, including a panic inside fn.
func WithSession(path string, cfg Config, fn func(*Engine) error, opts ...Option) (err error) {
	engine := New(cfg, opts...)
	if err := engine.Load(path); err != nil {
		return err
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(engine)
}

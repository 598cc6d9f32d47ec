package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// onnxSession runs a model through the onnxruntime C library
type onnxSession struct {
	session *ort.DynamicAdvancedSession
	once    sync.Once
}

var (
	envMu   sync.Mutex
	envRefs int
)

// OpenONNX is the default Opener. It validates the model's single input and
// output against cfg before creating the session.
func OpenONNX(path string, cfg Config) (Session, error) {
	if err := acquireEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	session, err := newONNXSession(path, cfg)
	if err != nil {
		if rerr := releaseEnvironment(); rerr != nil {
			return nil, fmt.Errorf("%w (release runtime: %v)", err, rerr)
		}
		return nil, err
	}
	return session, nil
}

func newONNXSession(path string, cfg Config) (*onnxSession, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("io info: %w", err)
	}
	in, out, err := validateModelIO(inputs, outputs, cfg)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session opts: %w", err)
	}
	defer opts.Destroy()

	if cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("intra-op threads: %w", err)
		}
	}
	if cfg.InterOpThreads > 0 {
		if err := opts.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
			return nil, fmt.Errorf("inter-op threads: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(path, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &onnxSession{session: sess}, nil
}

func validateModelIO(inputs, outputs []ort.InputOutputInfo, cfg Config) (ort.InputOutputInfo, ort.InputOutputInfo, error) {
	if len(inputs) != 1 || len(outputs) != 1 {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{},
			fmt.Errorf("%w: unexpected io (in:%d out:%d)", ErrShapeMismatch, len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]

	if len(in.Dimensions) != 2 {
		return in, out, fmt.Errorf("%w: expected 2D input, got %dD", ErrShapeMismatch, len(in.Dimensions))
	}
	// negative dimensions are symbolic and accept any size
	if n := in.Dimensions[1]; n > 0 && cfg.InputLength > 0 && int(n) != cfg.InputLength {
		return in, out, fmt.Errorf("%w: model input width %d, encoder produces %d", ErrShapeMismatch, n, cfg.InputLength)
	}
	if len(out.Dimensions) != 2 {
		return in, out, fmt.Errorf("%w: expected 2D output, got %dD", ErrShapeMismatch, len(out.Dimensions))
	}
	if n := out.Dimensions[1]; n > 0 && int(n) != cfg.OutputLength {
		return in, out, fmt.Errorf("%w: model output width %d, want %d", ErrShapeMismatch, n, cfg.OutputLength)
	}
	return in, out, nil
}

// Run wraps the vector as a [1, n] tensor and returns the first output row.
// Both tensors are destroyed before returning, whatever the outcome.
func (s *onnxSession) Run(vector []float32) ([]float32, error) {
	data := make([]float32, len(vector))
	copy(data, vector)

	input, err := ort.NewTensor(ort.NewShape(1, int64(len(data))), data)
	if err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	shape := t.GetShape()
	if len(shape) != 2 || shape[0] < 1 {
		return nil, fmt.Errorf("%w: unexpected output shape %v", ErrShapeMismatch, shape)
	}

	row := t.GetData()[:shape[1]]
	scores := make([]float32, len(row))
	copy(scores, row)
	return scores, nil
}

func (s *onnxSession) Close() error {
	var err error
	s.once.Do(func() {
		if derr := s.session.Destroy(); derr != nil {
			err = fmt.Errorf("destroy session: %w", derr)
		}
		if rerr := releaseEnvironment(); rerr != nil && err == nil {
			err = rerr
		}
	})
	return err
}

// acquireEnvironment initializes the process-wide runtime on first use
func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		if libraryPath == "" {
			libraryPath = findSharedLibrary()
		}
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("init onnx runtime: %w", err)
		}
	}
	envRefs++
	return nil
}

// releaseEnvironment tears the runtime down when the last session closes
func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			return fmt.Errorf("destroy onnx runtime: %w", err)
		}
	}
	return nil
}

// findSharedLibrary looks for the onnxruntime library in ONNXRUNTIME_LIB and common install locations
func findSharedLibrary() string {
	if p := os.Getenv("ONNXRUNTIME_LIB"); p != "" {
		return p
	}

	var name string
	switch runtime.GOOS {
	case "darwin":
		name = "libonnxruntime.dylib"
	case "windows":
		name = "onnxruntime.dll"
	default:
		name = "libonnxruntime.so"
	}

	for _, dir := range []string{"/usr/local/lib", "/usr/lib", "/opt/onnxruntime/lib", "/opt/homebrew/lib"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

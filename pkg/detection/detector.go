package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/moodlens/pkg/client"
	"github.com/menta2k/moodlens/pkg/llamacpp"
	"github.com/menta2k/moodlens/pkg/ollama"
	"github.com/menta2k/moodlens/pkg/types"
)

// DefaultTopK is the most objects a single detection returns
const DefaultTopK = 20

// Backend names accepted by NewVisionClient
const (
	BackendNone     = "none"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// DefaultPrompt asks a vision model for labeled, normalized boxes
const DefaultPrompt = `You are an object detector.

Return JSON only:
{
  "objects": [
    {"label": "string", "probability": 0.0, "box": {"x_min": 0.0, "y_min": 0.0, "x_max": 0.0, "y_max": 0.0}}
  ]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- label is one or two lowercase words naming the object (e.g. "tree", "small dog", "fire").
- probability is your confidence in [0,1].
- List at most 20 objects, most confident first. Return {"objects": []} if nothing is visible.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Detector turns vision model replies into DetectedObjects
type Detector struct {
	client client.VisionClient
	logger *zap.Logger
	prompt string
	topK   int
}

// Option configures a Detector
type Option func(*Detector)

// WithLogger sets the detector logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithPrompt replaces DefaultPrompt
func WithPrompt(prompt string) Option {
	return func(d *Detector) {
		if strings.TrimSpace(prompt) != "" {
			d.prompt = prompt
		}
	}
}

// WithTopK caps the number of returned objects
func WithTopK(k int) Option {
	return func(d *Detector) {
		if k > 0 {
			d.topK = k
		}
	}
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient, opts ...Option) *Detector {
	d := &Detector{
		client: client,
		logger: zap.NewNop(),
		prompt: DefaultPrompt,
		topK:   DefaultTopK,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewVisionClient builds the client for a backend name
func NewVisionClient(backend, url string) (client.VisionClient, error) {
	switch strings.ToLower(backend) {
	case BackendOllama:
		if url == "" {
			url = "http://localhost:11434"
		}
		return ollama.NewClient(url)
	case BackendLlamaCpp:
		return llamacpp.NewClient(url, llamacpp.WithJSONReplies())
	default:
		return nil, fmt.Errorf("unknown detection backend %q (want %s or %s)", backend, BackendOllama, BackendLlamaCpp)
	}
}

type reply struct {
	Objects []replyObject `json:"objects"`
}

type replyObject struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Box         struct {
		XMin float64 `json:"x_min"`
		YMin float64 `json:"y_min"`
		XMax float64 `json:"x_max"`
		YMax float64 `json:"y_max"`
	} `json:"box"`
}

// DetectObjects queries the model and returns at most topK objects, most probable first.
// Transport failures are returned; an unparseable reply yields no objects.
func (d *Detector) DetectObjects(ctx context.Context, model, imageB64 string) ([]types.DetectedObject, error) {
	raw, err := d.client.SimpleQuery(ctx, model, d.prompt, imageB64)
	if err != nil {
		return nil, fmt.Errorf("object detection failed: %w", err)
	}

	parsed, ok := parseReply(raw)
	if !ok {
		d.logger.Warn("detector returned non-JSON reply",
			zap.String("model", model),
			zap.Int("reply_len", len(raw)))
		return []types.DetectedObject{}, nil
	}

	objects := normalizeObjects(parsed.Objects, d.topK)
	d.logger.Debug("objects detected",
		zap.String("model", model),
		zap.Int("returned", len(parsed.Objects)),
		zap.Int("kept", len(objects)))
	return objects, nil
}

func parseReply(raw string) (reply, bool) {
	raw = sanitizeModelJSON(raw)

	var r reply
	if !strings.HasPrefix(raw, "{") {
		return r, false
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return r, false
	}
	return r, true
}

// normalizeObjects drops blank labels, clamps boxes and scores, and keeps the topK most probable
func normalizeObjects(in []replyObject, topK int) []types.DetectedObject {
	out := make([]types.DetectedObject, 0, len(in))
	for _, o := range in {
		label := strings.TrimSpace(o.Label)
		if label == "" {
			continue
		}
		xMin, xMax := clamp(o.Box.XMin, 0, 1), clamp(o.Box.XMax, 0, 1)
		yMin, yMax := clamp(o.Box.YMin, 0, 1), clamp(o.Box.YMax, 0, 1)
		if xMin > xMax {
			xMin, xMax = xMax, xMin
		}
		if yMin > yMax {
			yMin, yMax = yMax, yMin
		}
		out = append(out, types.DetectedObject{
			Label:       label,
			XMin:        xMin,
			YMin:        yMin,
			XMax:        xMax,
			YMax:        yMax,
			Probability: clamp(o.Probability, 0, 1),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

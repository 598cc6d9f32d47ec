package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/moodlens"
	"github.com/menta2k/moodlens/pkg/inference"
	"github.com/menta2k/moodlens/pkg/metrics"
	"github.com/menta2k/moodlens/pkg/types"
)

type calmSession struct{}

func (calmSession) Run(input []float32) ([]float32, error) {
	return []float32{0, 0, 0, 0, 0, 0, 0, 4}, nil
}

func (calmSession) Close() error { return nil }

func newTestServer(t *testing.T, load bool) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	log := zaptest.NewLogger(t)
	open := func(path string, cfg inference.Config) (inference.Session, error) {
		return calmSession{}, nil
	}

	p, err := moodlens.New(
		moodlens.WithSeed(1),
		moodlens.WithSampleSize(20, 20),
		moodlens.WithOpener(open),
		moodlens.WithLogger(log),
		moodlens.WithMetrics(metrics.New(reg)),
	)
	require.NoError(t, err)
	if load {
		path := filepath.Join(t.TempDir(), "model.onnx")
		require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o644))
		require.NoError(t, p.Load(path))
	}

	srv := httptest.NewServer(newHandler(&server{pipeline: p, logger: log}, reg))
	t.Cleanup(srv.Close)
	return srv
}

func pngBody(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.SetNRGBA(x, y, color.NRGBA{173, 216, 230, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestClassifyEndpoint(t *testing.T) {
	srv := newTestServer(t, true)

	resp, err := http.Post(srv.URL+"/v1/classify?objects=lake,tree", "image/png", bytes.NewReader(pngBody(t)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body struct {
		RequestID string `json:"request_id"`
		Summary   string `json:"summary"`
		Result    struct {
			Input struct {
				Objects []types.DetectedObject `json:"objects"`
			} `json:"input"`
			Output types.ClassifierOutput `json:"output"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, resp.Header.Get("X-Request-ID"), body.RequestID)
	assert.Equal(t, types.Calm, body.Result.Output.PredictedEmotion)
	assert.Len(t, body.Result.Input.Objects, 2)
	assert.Contains(t, body.Summary, "Predicted Emotion: CALM")
}

func TestClassifyEndpointKeepsRequestID(t *testing.T) {
	srv := newTestServer(t, true)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/classify", bytes.NewReader(pngBody(t)))
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestClassifyEndpointErrors(t *testing.T) {
	srv := newTestServer(t, true)
	resp, err := http.Post(srv.URL+"/v1/classify", "image/png", strings.NewReader("not an image"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/classify")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	unloaded := newTestServer(t, false)
	resp, err = http.Post(unloaded.URL+"/v1/classify", "image/png", bytes.NewReader(pngBody(t)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, true)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/v1/classify", "image/png", bytes.NewReader(pngBody(t)))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `moodlens_pipeline_runs_total{status="ok"} 1`)
	assert.Contains(t, string(data), `moodlens_predictions_total{emotion="CALM"} 1`)

	unloaded := newTestServer(t, false)
	resp, err = http.Get(unloaded.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(moodlens.ErrImageDecode))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(moodlens.ErrSessionNotLoaded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

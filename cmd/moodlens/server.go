package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/menta2k/moodlens"
	"github.com/menta2k/moodlens/pkg/types"
)

const maxUploadBytes = 32 << 20

type classifyResponse struct {
	RequestID string           `json:"request_id"`
	Result    *moodlens.Result `json:"result,omitempty"`
	Summary   string           `json:"summary,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type server struct {
	pipeline *moodlens.Pipeline
	logger   *zap.Logger
	detect   bool
}

// newHandler wires the classify, metrics and health endpoints
func newHandler(s *server, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/classify", s.classify)
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// classify reads an image body and classifies it. Object labels come from the
// comma-separated "objects" query parameter and, when enabled, the detector.
func (s *server) classify(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)
	log := s.logger.With(zap.String("request_id", reqID))

	img, err := s.pipeline.Processor().LoadImageFromReader(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		log.Warn("rejecting upload", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, classifyResponse{RequestID: reqID, Error: err.Error()})
		return
	}

	objects := moodlens.ParseLabels(r.URL.Query().Get("objects"))
	if s.detect {
		detected, err := s.pipeline.DetectObjects(r.Context(), img)
		if err != nil {
			log.Warn("object detection failed, continuing without detections", zap.Error(err))
		}
		objects = append(objects, detected...)
	}

	start := time.Now()
	result, err := s.pipeline.RunDetailed(img, objects)
	if err != nil {
		status := statusFor(err)
		log.Error("classification failed", zap.Error(err), zap.Int("status", status))
		writeJSON(w, status, classifyResponse{RequestID: reqID, Error: err.Error()})
		return
	}

	log.Info("classified",
		zap.Stringer("emotion", result.Output.PredictedEmotion),
		zap.Float64("confidence", result.Output.ConfidenceScores[result.Output.PredictedEmotion]),
		zap.Int("objects", len(result.Input.Objects)),
		zap.Duration("took", time.Since(start)))

	writeJSON(w, http.StatusOK, classifyResponse{
		RequestID: reqID,
		Result:    result,
		Summary:   result.Summary(),
	})
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if !s.pipeline.Loaded() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":       http.StatusText(status),
		"model_loaded": s.pipeline.Loaded(),
		"version":      moodlens.GetVersion(),
		"emotions":     types.AllEmotions(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, moodlens.ErrImageDecode):
		return http.StatusBadRequest
	case errors.Is(err, moodlens.ErrSessionNotLoaded), errors.Is(err, moodlens.ErrModelNotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serve runs the HTTP server until ctx is cancelled
func serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

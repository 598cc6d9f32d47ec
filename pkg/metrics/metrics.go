// Package metrics exposes pipeline counters and stage timings to Prometheus.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/menta2k/moodlens/pkg/types"
)

// Pipeline stages
const (
	StageSample    = "sample"
	StageCluster   = "cluster"
	StageEncode    = "encode"
	StagePredict   = "predict"
	StageAggregate = "aggregate"
)

// Run outcomes
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder holds the pipeline collectors
type Recorder struct {
	runs          *prometheus.CounterVec
	predictions   *prometheus.CounterVec
	substitutions prometheus.Counter
	stages        *prometheus.HistogramVec
}

// New registers the pipeline collectors on reg
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "moodlens",
				Name:      "pipeline_runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "moodlens",
				Name:      "predictions_total",
				Help:      "Predicted emotions",
			},
			[]string{"emotion"},
		),
		substitutions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "moodlens",
				Name:      "color_substitutions_total",
				Help:      "Malformed color literals replaced by the default color",
			},
		),
		stages: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "moodlens",
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each pipeline stage",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"stage"},
		),
	}
}

// Run counts one finished pipeline run
func (r *Recorder) Run(err error) {
	if r == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	r.runs.WithLabelValues(status).Inc()
}

// Prediction counts one predicted emotion
func (r *Recorder) Prediction(e types.Emotion) {
	if r == nil {
		return
	}
	r.predictions.WithLabelValues(e.String()).Inc()
}

// Substitution counts one default-color substitution
func (r *Recorder) Substitution() {
	if r == nil {
		return
	}
	r.substitutions.Inc()
}

// Stage starts timing a stage; call the returned func when it ends
func (r *Recorder) Stage(stage string) func() {
	if r == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		r.stages.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

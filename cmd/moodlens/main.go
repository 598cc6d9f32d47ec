package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/menta2k/moodlens"
	"github.com/menta2k/moodlens/internal/config"
	"github.com/menta2k/moodlens/internal/logger"
	"github.com/menta2k/moodlens/internal/utils"
	"github.com/menta2k/moodlens/pkg/detection"
	"github.com/menta2k/moodlens/pkg/features"
	"github.com/menta2k/moodlens/pkg/inference"
	"github.com/menta2k/moodlens/pkg/metrics"
	"github.com/menta2k/moodlens/pkg/training"
	"github.com/menta2k/moodlens/pkg/types"
)

type options struct {
	in          string
	configPath  string
	modelPath   string
	objects     string
	detect      string
	detectURL   string
	detectModel string
	overlay     string
	seed        uint64
	color       string
	labels      string
	export      int
	out         string
	serveAddr   string
	jsonOut     bool
	logLevel    string
}

func main() {
	var o options

	flag.StringVar(&o.in, "in", "", "input image path, directory or URL (jpg/png/gif/webp)")
	flag.StringVar(&o.configPath, "config", "", "config file (.json, .yaml or .yml)")
	flag.StringVar(&o.modelPath, "model", "", "trained ONNX model (overrides config)")
	flag.StringVar(&o.objects, "objects", "", "comma separated object labels present in the image")
	flag.StringVar(&o.detect, "detect", "", "object detector backend: none|ollama|llamacpp (overrides config)")
	flag.StringVar(&o.detectURL, "detect-url", "", "detector server URL")
	flag.StringVar(&o.detectModel, "detect-model", "", "detector vision model name")
	flag.StringVar(&o.overlay, "overlay", "", "write a detection overlay to this path (a directory when -in is a directory)")
	flag.Uint64Var(&o.seed, "seed", 0, "random seed for clustering and training data (0 = time based)")
	flag.StringVar(&o.color, "color", "", "classify a main color literal (name,R,G,B or #rrggbb) instead of an image")
	flag.StringVar(&o.labels, "labels", "", "comma separated object labels used with -color")
	flag.IntVar(&o.export, "export", 0, "generate and export N synthetic training samples, then exit")
	flag.StringVar(&o.out, "out", ".", "output directory for -export")
	flag.StringVar(&o.serveAddr, "serve", "", "serve HTTP on this address, e.g. :8080")
	flag.BoolVar(&o.jsonOut, "json", false, "print results as JSON")
	flag.StringVar(&o.logLevel, "log-level", "", "debug|info|warn|error (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.Logging.Level,
		Encoding: cfg.Logging.Encoding,
		Service:  "moodlens",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	os.Exit(finish(log, run(o, cfg, log)))
}

// finish logs a failed run, flushes the logger and returns the exit code
func finish(log *zap.Logger, err error) int {
	code := 0
	if err != nil {
		log.Error("moodlens failed", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	return code
}

func loadConfig(o options) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.LoadFromFile(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if o.modelPath != "" {
		cfg.Model.Path = o.modelPath
	}
	if o.seed != 0 {
		cfg.Clustering.Seed = o.seed
	}
	if o.detect != "" {
		cfg.Detector.Backend = o.detect
	}
	if o.detectURL != "" {
		cfg.Detector.URL = o.detectURL
	}
	if o.detectModel != "" {
		cfg.Detector.Model = o.detectModel
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(o options, cfg *config.Config, log *zap.Logger) error {
	if o.export > 0 {
		return exportTrainingData(o, cfg, log)
	}
	if o.in == "" && o.color == "" && o.serveAddr == "" {
		return fmt.Errorf("usage: %s -in image.jpg|dir|URL [-objects a,b] [-model model.onnx] | -color name,R,G,B [-labels a,b] | -serve :8080 | -export N [-out dir]",
			filepath.Base(os.Args[0]))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []moodlens.Option{
		moodlens.WithLogger(log),
		moodlens.WithMetrics(metrics.New(reg)),
	}
	detecting := cfg.Detector.Backend != "" && cfg.Detector.Backend != detection.BackendNone
	if detecting {
		vc, err := detection.NewVisionClient(cfg.Detector.Backend, cfg.Detector.URL)
		if err != nil {
			return err
		}
		d := detection.NewDetector(vc, detection.WithLogger(log), detection.WithTopK(cfg.Detector.TopK))
		opts = append(opts, moodlens.WithDetector(d, cfg.Detector.Model, cfg.Detector.MaxDim))
	}

	pipeline, err := moodlens.NewFromConfig(cfg, opts...)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	if err := pipeline.Load(cfg.Model.Path); err != nil {
		if errors.Is(err, moodlens.ErrModelNotFound) {
			log.Error("no trained model available",
				zap.String("path", cfg.Model.Path),
				zap.String("workflow", inference.TrainingWorkflow))
		}
		return err
	}

	if o.serveAddr != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		s := &server{pipeline: pipeline, logger: log, detect: detecting}
		return serve(ctx, o.serveAddr, newHandler(s, reg), log)
	}

	if o.color != "" {
		out, err := pipeline.Classify(o.color, o.labels)
		if err != nil {
			return err
		}
		return printOutput(o, out)
	}

	sources := []string{o.in}
	batch := utils.DirExists(o.in)
	if batch {
		sources, err = utils.ListImageFiles(o.in)
		if err != nil {
			return err
		}
		log.Info("classifying directory", zap.String("dir", o.in), zap.Int("images", len(sources)))
	}

	var failed int
	for _, src := range sources {
		if err := classifyOne(o, cfg, pipeline, src, batch, detecting, log); err != nil {
			if !batch {
				return err
			}
			failed++
			log.Error("failed to classify image", zap.String("source", src), zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(sources))
	}
	return nil
}

func classifyOne(o options, cfg *config.Config, pipeline *moodlens.Pipeline, src string, batch, detecting bool, log *zap.Logger) error {
	proc := pipeline.Processor()
	img, err := proc.LoadImageSmart(src)
	if err != nil {
		return err
	}

	objects := moodlens.ParseLabels(o.objects)
	if detecting {
		detected, err := pipeline.DetectObjects(context.Background(), img)
		if err != nil {
			log.Warn("object detection failed, continuing without detections", zap.Error(err))
		}
		objects = append(objects, detected...)
	}

	result, err := pipeline.RunDetailed(img, objects)
	if err != nil {
		return err
	}
	result.Source = src

	if o.overlay != "" {
		path := o.overlay
		if batch {
			path = utils.OutputPath(src, o.overlay, cfg.Output.Suffix, cfg.Output.Format)
		}
		if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
			return err
		}
		format := utils.GetFileExtension(path)
		if format == "" {
			format = cfg.Output.Format
		}
		overlay := proc.CreateDetectionOverlay(img, result.Input.Objects, result.Palette)
		if err := proc.SaveImage(overlay, path, format, cfg.Output.Quality, false); err != nil {
			log.Warn("overlay save failed", zap.String("path", path), zap.Error(err))
		} else {
			log.Info("overlay saved", zap.String("path", path))
		}
	}

	if o.jsonOut {
		return json.NewEncoder(os.Stdout).Encode(result)
	}
	if batch {
		fmt.Printf("== %s\n", src)
	}
	fmt.Print(result.Summary())
	return nil
}

func printOutput(o options, out types.ClassifierOutput) error {
	if o.jsonOut {
		return json.NewEncoder(os.Stdout).Encode(out)
	}
	result := moodlens.Result{Output: out}
	fmt.Print(result.Summary())
	return nil
}

func exportTrainingData(o options, cfg *config.Config, log *zap.Logger) error {
	if err := utils.EnsureDir(o.out); err != nil {
		return err
	}

	var genOpts []training.Option
	if cfg.Clustering.Seed != 0 {
		genOpts = append(genOpts, training.WithSeed(cfg.Clustering.Seed))
	}
	inputs, labels := training.NewGenerator(genOpts...).Generate(o.export)

	featuresPath := filepath.Join(o.out, training.FeaturesFile)
	labelsPath := filepath.Join(o.out, training.LabelsFile)
	encoder := features.NewWithConfig(cfg.Encoder)
	if err := training.Export(featuresPath, labelsPath, inputs, labels, encoder); err != nil {
		return err
	}

	log.Info("training data exported",
		zap.Int("samples", len(inputs)),
		zap.Int("features", encoder.Length()),
		zap.String("features_file", featuresPath),
		zap.String("labels_file", labelsPath))
	fmt.Println(inference.TrainingWorkflow)
	return nil
}

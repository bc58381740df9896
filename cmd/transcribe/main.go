// Command transcribe runs the dictation pipeline over recorded audio files.
// It streams the microphone WAV through VAD segmentation, echo-cancels each
// segment against the system-audio WAV, transcribes the segments, and prints
// the joined transcript. When the VAD is unavailable the whole recording is
// transcribed in one batch request instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ranabirbasu12/WhisperDash/internal/audio"
	"github.com/ranabirbasu12/WhisperDash/internal/config"
	"github.com/ranabirbasu12/WhisperDash/internal/metrics"
	"github.com/ranabirbasu12/WhisperDash/internal/pipeline"
	"github.com/ranabirbasu12/WhisperDash/internal/transcription"
	"github.com/ranabirbasu12/WhisperDash/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "whisperdash"
	serviceVersion    = "1.0.0"

	// feedChunkSamples mimics the capture callback granularity (~32ms).
	feedChunkSamples = 512
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	micPath := flag.String("mic", "", "Path to microphone recording (16kHz mono WAV)")
	refPath := flag.String("ref", "", "Path to system-audio reference (16kHz mono WAV, optional)")
	metricsAddr := flag.String("metrics-addr", "", "Address to serve Prometheus metrics on (optional)")
	flag.Parse()

	if *micPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: transcribe -mic <recording.wav> [-ref <system.wav>] [-config <config.yaml>]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	var appMetrics *metrics.Metrics
	if *metricsAddr != "" {
		appMetrics = metrics.NewMetrics()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("Metrics server failed", slog.String("error", err.Error()))
			}
		}()
		logger.Info("Prometheus metrics serving", slog.String("address", *metricsAddr))
	}

	micAudio, micRate, err := loadWAV(*micPath)
	if err != nil {
		logger.Error("Failed to load microphone recording", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if micRate != cfg.Audio.SampleRate {
		logger.Error("Microphone recording has wrong sample rate",
			slog.Int("expected", cfg.Audio.SampleRate),
			slog.Int("got", micRate),
		)
		os.Exit(1)
	}

	var refAudio []float32
	if *refPath != "" {
		refAudio, _, err = loadWAV(*refPath)
		if err != nil {
			logger.Error("Failed to load reference recording", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	detector := vad.NewDetector(cfg.VAD.VADDetectorConfig(), logger)
	defer detector.Close()

	if !detector.Load() {
		logger.Warn("VAD unavailable, falling back to batch transcription")
	}

	transcriber, err := transcription.NewClient(cfg.Transcription.TranscriptionClientConfig(), cfg.Audio.SampleRate)
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer transcriber.Close()

	pipe, err := pipeline.NewPipeline(detector, transcriber, cfg.PipelineSettings(), logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	transcript, err := run(pipe, transcriber, micAudio, refAudio, logger)
	if err != nil {
		logger.Error("Transcription failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	stats := transcriber.GetStats()
	logger.Info("Transcription finished",
		slog.Uint64("requests", stats.TotalRequests),
		slog.Uint64("failures", stats.FailedRequests),
		slog.Duration("avg_response_time", stats.AvgResponseTime),
	)

	fmt.Println(transcript)
}

// run replays the recordings through the streaming pipeline the way live
// capture would deliver them. If the pipeline never activates (VAD
// unavailable), the whole recording goes out as one batch request.
func run(pipe *pipeline.Pipeline, transcriber *transcription.Client, micAudio, refAudio []float32, logger *slog.Logger) (string, error) {
	refFeed := audio.NewReferenceFeed()

	if err := pipe.Start(refFeed); err != nil {
		return "", fmt.Errorf("starting pipeline: %w", err)
	}

	if !pipe.Active() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		text, err := transcriber.Transcribe(ctx, micAudio)
		if err != nil {
			return "", fmt.Errorf("batch transcription: %w", err)
		}
		return strings.TrimSpace(text), nil
	}

	// Feed mic and reference in lockstep so reference snapshots stay ahead
	// of segment start offsets, as they would during live capture.
	for start := 0; start < len(micAudio); start += feedChunkSamples {
		end := start + feedChunkSamples
		if end > len(micAudio) {
			end = len(micAudio)
		}

		if start < len(refAudio) {
			refEnd := end
			if refEnd > len(refAudio) {
				refEnd = len(refAudio)
			}
			refFeed.Append(refAudio[start:refEnd])
		}

		pipe.Feed(micAudio[start:end])
	}

	results := pipe.Stop(refAudio)

	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Text)
	}

	return strings.Join(parts, " "), nil
}

// loadWAV reads a WAV file and decodes it to float32 mono PCM.
func loadWAV(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}

	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", path, err)
	}

	return samples, rate, nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

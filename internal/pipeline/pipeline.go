package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ranabirbasu12/WhisperDash/internal/aec"
	"github.com/ranabirbasu12/WhisperDash/internal/audio"
	"github.com/ranabirbasu12/WhisperDash/internal/metrics"
	"github.com/ranabirbasu12/WhisperDash/internal/segment"
)

// Transcriber converts one segment of audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// VoiceDetector is the VAD surface the pipeline needs: window scoring plus
// availability. An unavailable detector keeps the whole pipeline inactive.
type VoiceDetector interface {
	segment.Detector
	Available() bool
}

// SegmentResult is one transcribed segment. Index orders results by capture
// time regardless of transcription completion order.
type SegmentResult struct {
	Index         uint64
	Text          string
	AudioDuration time.Duration
}

// Config contains pipeline parameters.
type Config struct {
	// SampleRate of all audio flowing through the pipeline.
	SampleRate int

	Segmenter segment.Config
	AEC       aec.CancellerConfig
	Gate      aec.GateConfig

	// JoinTimeout bounds how long Stop waits for the worker to finish
	// in-flight transcriptions.
	JoinTimeout time.Duration

	// PollInterval is how often the idle worker re-checks for shutdown.
	PollInterval time.Duration
}

// DefaultConfig returns the pipeline parameters used in production.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:   sampleRate,
		Segmenter:    segment.DefaultConfig(sampleRate),
		AEC:          aec.DefaultCancellerConfig(),
		Gate:         aec.DefaultGateConfig(),
		JoinTimeout:  60 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// Validate checks the pipeline parameters.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}

	if err := c.Segmenter.Validate(); err != nil {
		return err
	}

	if err := c.AEC.Validate(); err != nil {
		return err
	}

	if err := c.Gate.Validate(); err != nil {
		return err
	}

	if c.JoinTimeout <= 0 {
		return fmt.Errorf("join_timeout must be positive, got %s", c.JoinTimeout)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}

	return nil
}

// Pipeline orchestrates one recording session. Start begins a session, Feed
// streams microphone chunks into it, and Stop seals the trailing audio, joins
// the worker, and returns the ordered transcript segments.
//
// The capture callback calls Feed, the worker goroutine transcribes, and the
// controlling goroutine calls Start/Stop. Results are only touched by the
// worker until Stop has joined it.
type Pipeline struct {
	detector    VoiceDetector
	transcriber Transcriber
	config      Config
	logger      *slog.Logger
	metrics     *metrics.Metrics

	active     atomic.Bool
	segmenter  *segment.Segmenter
	refFeed    *audio.ReferenceFeed
	workerDone chan struct{}

	mu      sync.Mutex
	results []SegmentResult
}

// NewPipeline creates a pipeline bound to a detector and transcriber.
func NewPipeline(detector VoiceDetector, transcriber Transcriber, config Config, logger *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}

	if transcriber == nil {
		return nil, fmt.Errorf("transcriber cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		detector:    detector,
		transcriber: transcriber,
		config:      config,
		logger:      logger,
		metrics:     m,
	}, nil
}

// Active reports whether a streaming session is running.
func (p *Pipeline) Active() bool {
	return p.active.Load()
}

// Start begins a streaming session using refFeed as the live system-audio
// reference. If the VAD is unavailable the pipeline stays inactive: Feed
// becomes a no-op and Stop returns no results, leaving the caller to fall
// back to batch transcription of the full recording.
func (p *Pipeline) Start(refFeed *audio.ReferenceFeed) error {
	if p.active.Load() {
		return fmt.Errorf("pipeline already active")
	}

	if !p.detector.Available() {
		p.metrics.RecordSessionInactive()
		p.logger.Warn("voice detector unavailable, streaming pipeline inactive")
		return nil
	}

	p.detector.Reset()

	seg, err := segment.NewSegmenter(p.detector, p.config.Segmenter, p.logger, p.metrics)
	if err != nil {
		return fmt.Errorf("creating segmenter: %w", err)
	}

	p.segmenter = seg
	p.refFeed = refFeed
	p.results = nil
	p.workerDone = make(chan struct{})
	p.active.Store(true)

	go p.worker()

	p.metrics.RecordSessionStarted()
	p.logger.Info("streaming pipeline started",
		slog.Int("sample_rate", p.config.SampleRate),
	)

	return nil
}

// Feed streams one chunk of microphone audio into the session. No-op when the
// pipeline is inactive.
func (p *Pipeline) Feed(chunk []float32) {
	if !p.active.Load() {
		return
	}
	p.segmenter.Feed(chunk)
}

// Stop ends the session: seals any trailing speech, signals the worker,
// waits up to JoinTimeout for in-flight transcriptions, processes the final
// segment synchronously against the now-complete reference, and returns all
// results ordered by segment index. Returns nil when the pipeline never
// activated.
func (p *Pipeline) Stop(systemAudio []float32) []SegmentResult {
	if !p.active.CompareAndSwap(true, false) {
		return nil
	}

	final := p.segmenter.SealFinal()
	p.segmenter.SignalDone()

	select {
	case <-p.workerDone:
	case <-time.After(p.config.JoinTimeout):
		p.metrics.RecordWorkerJoinDelay()
		p.logger.Warn("worker did not finish before join timeout",
			slog.Duration("timeout", p.config.JoinTimeout),
		)
	}

	// The final segment is processed after the worker has drained, with
	// the complete reference, so its transcription cannot race or be cut
	// short by the ticker shutdown path.
	if final != nil {
		p.processSegment(final, systemAudio)
	}

	p.mu.Lock()
	results := p.results
	p.results = nil
	p.mu.Unlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})

	p.logger.Info("streaming pipeline stopped",
		slog.Int("segments", len(results)),
	)

	return results
}

// worker drains sealed segments until the nil sentinel arrives. The ticker
// lets a worker notice deactivation even if the sentinel is delayed; it
// drains queued segments before exiting so none are lost at shutdown.
func (p *Pipeline) worker() {
	defer close(p.workerDone)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case seg := <-p.segmenter.Segments():
			if seg == nil {
				return
			}
			p.processSegment(seg, p.refFeed.Snapshot())

		case <-ticker.C:
			if p.active.Load() {
				continue
			}
			for {
				select {
				case seg := <-p.segmenter.Segments():
					if seg == nil {
						return
					}
					p.processSegment(seg, p.refFeed.Snapshot())
				default:
					return
				}
			}
		}
	}
}

// processSegment runs one sealed segment through echo cancellation, the noise
// gate, and transcription, and appends the result. Enhancement failures fall
// back to the raw microphone audio; transcription failures or empty text drop
// the segment.
func (p *Pipeline) processSegment(seg *segment.SealedSegment, reference []float32) {
	samples := p.enhance(seg, reference)

	start := time.Now()
	text, err := p.transcriber.Transcribe(context.Background(), samples)
	elapsed := time.Since(start)

	if err != nil {
		p.metrics.RecordTranscription(false, elapsed.Seconds())
		p.logger.Error("segment transcription failed",
			slog.Uint64("index", seg.Index),
			slog.String("error", err.Error()),
		)
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		p.metrics.RecordTranscription(false, elapsed.Seconds())
		p.logger.Debug("segment transcribed to empty text, dropping",
			slog.Uint64("index", seg.Index),
		)
		return
	}

	p.metrics.RecordTranscription(true, elapsed.Seconds())

	result := SegmentResult{
		Index:         seg.Index,
		Text:          text,
		AudioDuration: seg.Duration(p.config.SampleRate),
	}

	p.mu.Lock()
	p.results = append(p.results, result)
	p.mu.Unlock()

	p.logger.Info("segment transcribed",
		slog.Uint64("index", seg.Index),
		slog.Duration("audio_duration", result.AudioDuration),
		slog.Duration("transcription_time", elapsed),
	)
}

// enhance applies echo cancellation and the noise gate to one segment. Any
// failure returns the raw microphone audio so a DSP bug never loses speech.
func (p *Pipeline) enhance(seg *segment.SealedSegment, reference []float32) []float32 {
	ref := alignReference(reference, seg.StartSample, uint64(len(seg.MicAudio)))
	if ref == nil {
		return seg.MicAudio
	}

	canceller, err := aec.NewCanceller(p.config.AEC)
	if err != nil {
		p.metrics.RecordAECFallback()
		p.logger.Error("creating echo canceller failed",
			slog.String("error", err.Error()),
		)
		return seg.MicAudio
	}

	start := time.Now()
	cleaned, err := canceller.Cancel(seg.MicAudio, ref)
	if err != nil {
		p.metrics.RecordAECFallback()
		p.logger.Warn("echo cancellation failed, using raw audio",
			slog.Uint64("index", seg.Index),
			slog.String("error", err.Error()),
		)
		return seg.MicAudio
	}

	gate, err := aec.NewGate(p.config.SampleRate, p.config.Gate)
	if err != nil {
		p.metrics.RecordAECFallback()
		p.logger.Error("creating noise gate failed",
			slog.String("error", err.Error()),
		)
		return seg.MicAudio
	}

	gated, didGate := gate.Apply(cleaned)
	if !didGate {
		p.metrics.RecordGateBypass()
	}

	p.metrics.RecordAEC(time.Since(start).Seconds())

	return gated
}

// alignReference extracts the reference slice matching a segment's global
// sample span. A reference that ends early is zero-padded on the right; a
// reference that has not reached the segment start yields nil, which skips
// echo cancellation for that segment.
func alignReference(reference []float32, startSample, length uint64) []float32 {
	if uint64(len(reference)) <= startSample {
		return nil
	}

	out := make([]float32, length)
	available := reference[startSample:]
	copy(out, available)

	return out
}

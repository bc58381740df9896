package segment

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ranabirbasu12/WhisperDash/internal/metrics"
	"github.com/ranabirbasu12/WhisperDash/internal/vad"
)

// Detector scores 512-sample audio windows for speech probability.
type Detector interface {
	// Process returns the speech probability in [0, 1] for exactly one
	// 512-sample window.
	Process(window []float32) float32

	// Threshold is the probability at or above which a window counts as
	// speech.
	Threshold() float32

	// Reset clears detector state for a new session.
	Reset()
}

// SealedSegment is an immutable, fully-bounded span of microphone audio
// identified as one utterance. StartSample and EndSample are global sample
// offsets within the session, so EndSample-StartSample == len(MicAudio).
type SealedSegment struct {
	Index       uint64
	MicAudio    []float32
	StartSample uint64
	EndSample   uint64
}

// Duration returns the segment length at the given sample rate.
func (s *SealedSegment) Duration(sampleRate int) time.Duration {
	return time.Duration(float64(len(s.MicAudio)) / float64(sampleRate) * float64(time.Second))
}

// Config contains segmenter parameters.
type Config struct {
	// SampleRate of the incoming audio. Must match the VAD's rate.
	SampleRate int

	// SilenceHold is the run of consecutive silence required after speech
	// before a segment is sealed. The hysteresis prevents splitting on
	// brief pauses.
	SilenceHold time.Duration

	// MinSegment is the minimum accumulated audio for a segment to seal on
	// its own. Shorter bursts are retained and merged into the next run.
	MinSegment time.Duration

	// MinFinal is the minimum trailing audio SealFinal will return.
	MinFinal time.Duration

	// QueueCapacity bounds the sealed segment queue. Feed never blocks the
	// capture callback: a full queue drops the segment with a warning.
	QueueCapacity int
}

// DefaultConfig returns the segmenter parameters used in production.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:    sampleRate,
		SilenceHold:   600 * time.Millisecond,
		MinSegment:    time.Second,
		MinFinal:      100 * time.Millisecond,
		QueueCapacity: 64,
	}
}

// Validate checks the segmenter parameters.
func (c *Config) Validate() error {
	if c.SampleRate != vad.SampleRate {
		return fmt.Errorf("sample_rate must be %d Hz, got %d", vad.SampleRate, c.SampleRate)
	}

	if c.SilenceHold <= 0 {
		return fmt.Errorf("silence_hold must be positive, got %s", c.SilenceHold)
	}

	if c.MinSegment <= 0 {
		return fmt.Errorf("min_segment must be positive, got %s", c.MinSegment)
	}

	if c.MinFinal <= 0 {
		return fmt.Errorf("min_final must be positive, got %s", c.MinFinal)
	}

	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", c.QueueCapacity)
	}

	return nil
}

// Segmenter analyzes audio chunks from the capture callback, detects speech
// boundaries, and produces sealed segments on its output channel.
//
// Feed is called from the capture callback thread and is the only writer of
// segmenter state. The output channel is consumed by the pipeline worker.
type Segmenter struct {
	detector Detector
	config   Config
	logger   *slog.Logger
	metrics  *metrics.Metrics

	out chan *SealedSegment

	pending      []float32 // audio accumulated for the segment in progress
	windowBuf    []float32 // partial window awaiting VAD classification
	startSample  uint64    // global offset where the pending audio begins
	totalSamples uint64    // global count of classified samples
	index        uint64
	silenceRun   uint64 // consecutive non-speech samples since last speech
	inSpeech     bool

	silenceHoldSamples int
	minSegmentSamples  int
	minFinalSamples    int
}

// NewSegmenter creates a segmenter for one recording session.
func NewSegmenter(detector Detector, config Config, logger *slog.Logger, m *metrics.Metrics) (*Segmenter, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("segmenter config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Segmenter{
		detector:           detector,
		config:             config,
		logger:             logger,
		metrics:            m,
		out:                make(chan *SealedSegment, config.QueueCapacity),
		silenceHoldSamples: int(config.SilenceHold.Seconds() * float64(config.SampleRate)),
		minSegmentSamples:  int(config.MinSegment.Seconds() * float64(config.SampleRate)),
		minFinalSamples:    int(config.MinFinal.Seconds() * float64(config.SampleRate)),
	}, nil
}

// Segments returns the sealed segment channel. A nil value is the sentinel
// posted by SignalDone; consumers terminate after receiving it.
func (s *Segmenter) Segments() <-chan *SealedSegment {
	return s.out
}

// Feed processes one audio chunk from the capture callback. It must complete
// well within one callback period; inference on a single 32ms VAD window is
// assumed fast enough for that.
func (s *Segmenter) Feed(chunk []float32) {
	if len(chunk) == 0 {
		return
	}

	s.pending = append(s.pending, chunk...)
	s.windowBuf = append(s.windowBuf, chunk...)

	for len(s.windowBuf) >= vad.WindowSamples {
		window := s.windowBuf[:vad.WindowSamples]
		s.windowBuf = s.windowBuf[vad.WindowSamples:]

		prob := s.detector.Process(window)
		isSpeech := prob >= s.detector.Threshold()

		if isSpeech {
			s.inSpeech = true
			s.silenceRun = 0
		} else {
			s.silenceRun += vad.WindowSamples
		}

		s.totalSamples += vad.WindowSamples
		s.metrics.RecordVADWindow(isSpeech)
	}

	if s.inSpeech && s.silenceRun >= uint64(s.silenceHoldSamples) {
		s.sealPending()
		s.inSpeech = false
		s.silenceRun = 0
	}
}

// sealPending emits the accumulated audio as a segment if it is long enough.
// Short bursts stay in the buffer and merge into the next speech run, so the
// global timeline remains contiguous across segments.
func (s *Segmenter) sealPending() {
	if len(s.pending) < s.minSegmentSamples {
		s.metrics.RecordSegmentMerged()
		s.logger.Debug("speech burst too short, carrying forward",
			slog.Int("samples", len(s.pending)),
			slog.Int("min_samples", s.minSegmentSamples),
		)
		return
	}

	seg := s.takePending()

	select {
	case s.out <- seg:
		s.metrics.RecordSegmentSealed(seg.Duration(s.config.SampleRate).Seconds())
		s.logger.Debug("segment sealed",
			slog.Uint64("index", seg.Index),
			slog.Uint64("start_sample", seg.StartSample),
			slog.Uint64("end_sample", seg.EndSample),
		)
	default:
		// Never block the capture callback. At one segment per 1.6s of
		// audio a full queue means the consumer died long ago.
		s.metrics.RecordSegmentDropped()
		s.logger.Warn("segment queue full, dropping segment",
			slog.Uint64("index", seg.Index),
		)
	}
}

// takePending seals the accumulation buffer into a segment and advances the
// session counters.
func (s *Segmenter) takePending() *SealedSegment {
	audio := make([]float32, len(s.pending))
	copy(audio, s.pending)

	seg := &SealedSegment{
		Index:       s.index,
		MicAudio:    audio,
		StartSample: s.startSample,
		EndSample:   s.startSample + uint64(len(audio)),
	}

	s.index++
	s.startSample = seg.EndSample
	s.pending = s.pending[:0]

	return seg
}

// SealFinal returns whatever audio remains as the final segment, or nil when
// less than the minimum trailing duration is left. Called once when the
// recording stops; the segment is returned directly rather than queued so
// the caller can process it synchronously after the worker has drained.
func (s *Segmenter) SealFinal() *SealedSegment {
	if len(s.pending) < s.minFinalSamples {
		return nil
	}

	seg := s.takePending()
	s.metrics.RecordFinalSegment()

	s.logger.Debug("final segment sealed",
		slog.Uint64("index", seg.Index),
		slog.Int("samples", len(seg.MicAudio)),
	)

	return seg
}

// SignalDone posts the nil sentinel so the consumer loop terminates after
// draining all real segments.
func (s *Segmenter) SignalDone() {
	s.out <- nil
}

// Reset clears all counters and buffers, drains the output queue, and resets
// the VAD state. Required before reusing a segmenter/VAD pair for a new
// session.
func (s *Segmenter) Reset() {
	s.pending = s.pending[:0]
	s.windowBuf = s.windowBuf[:0]
	s.startSample = 0
	s.totalSamples = 0
	s.index = 0
	s.silenceRun = 0
	s.inSpeech = false

	for {
		select {
		case <-s.out:
		default:
			s.detector.Reset()
			return
		}
	}
}

// TotalSamples returns the number of samples classified so far.
func (s *Segmenter) TotalSamples() uint64 {
	return s.totalSamples
}

package vad

import (
	"fmt"
	"log/slog"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// WindowSamples is the window size the Silero model operates on:
	// 512 samples = 32ms at 16kHz.
	WindowSamples = 512

	// SampleRate is the only sample rate the model is run at.
	SampleRate = 16000
)

// Config contains detector configuration.
type Config struct {
	// Threshold is the speech probability above which a window counts as
	// speech.
	Threshold float32

	// ModelPath points at a silero_vad.onnx file. When empty, the model is
	// downloaded and cached under CacheDir on first load.
	ModelPath string

	// CacheDir is where the downloaded model artifact is kept. Defaults to
	// ~/.whisperdash.
	CacheDir string

	// RuntimeLibrary optionally points at the onnxruntime shared library.
	// When empty, the bindings' platform default is used.
	RuntimeLibrary string
}

// DefaultConfig returns the detector configuration used in production.
func DefaultConfig() Config {
	return Config{Threshold: 0.5}
}

// Detector wraps a Silero VAD ONNX session. It is not safe for concurrent
// use: Process mutates the recurrent state and must be called from a single
// goroutine, matching the single-writer segmenter feed path.
type Detector struct {
	config Config
	logger *slog.Logger

	session  *ort.AdvancedSession
	input    *ort.Tensor[float32] // (1, 512)
	state    *ort.Tensor[float32] // (2, 1, 128), fed back each call
	sr       *ort.Tensor[int64]
	prob     *ort.Tensor[float32] // (1, 1)
	stateOut *ort.Tensor[float32] // (2, 1, 128)

	available bool
}

// NewDetector creates an unloaded detector. Call Load before use.
func NewDetector(config Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{config: config, logger: logger}
}

// Load obtains the model artifact and builds the inference session. It
// returns true on success. Any failure leaves the detector unavailable and
// is logged, never propagated: callers degrade to non-segmented processing
// instead of crashing.
func (d *Detector) Load() bool {
	if d.available {
		return true
	}

	modelPath, err := d.ensureModel()
	if err != nil {
		d.logger.Warn("VAD model not available",
			slog.String("error", err.Error()),
		)
		return false
	}

	if err := d.initSession(modelPath); err != nil {
		d.logger.Warn("VAD initialization failed",
			slog.String("model_path", modelPath),
			slog.String("error", err.Error()),
		)
		d.releaseTensors()
		return false
	}

	d.available = true
	d.logger.Info("VAD model loaded", slog.String("model_path", modelPath))
	return true
}

func (d *Detector) initSession(modelPath string) error {
	if d.config.RuntimeLibrary != "" {
		ort.SetSharedLibraryPath(d.config.RuntimeLibrary)
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	// Single-threaded inference: one 32ms window at a time is cheap, and
	// thread pools add latency jitter to the capture path.
	if err := options.SetIntraOpNumThreads(1); err != nil {
		return fmt.Errorf("failed to set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return fmt.Errorf("failed to set inter-op threads: %w", err)
	}

	if d.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, WindowSamples)); err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	if d.state, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return fmt.Errorf("failed to create state tensor: %w", err)
	}
	if d.sr, err = ort.NewTensor(ort.NewShape(1), []int64{SampleRate}); err != nil {
		return fmt.Errorf("failed to create sample rate tensor: %w", err)
	}
	if d.prob, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	if d.stateOut, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return fmt.Errorf("failed to create state output tensor: %w", err)
	}

	d.session, err = ort.NewAdvancedSession(modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.ArbitraryTensor{d.input, d.state, d.sr},
		[]ort.ArbitraryTensor{d.prob, d.stateOut},
		options,
	)
	if err != nil {
		return fmt.Errorf("failed to create inference session: %w", err)
	}

	return nil
}

// Process runs VAD on exactly one 512-sample window and returns the speech
// probability in [0, 1]. Returns 0.0 when the detector is unavailable or the
// window has the wrong size.
func (d *Detector) Process(window []float32) float32 {
	if !d.available {
		return 0
	}

	if len(window) != WindowSamples {
		d.logger.Warn("VAD window has wrong size",
			slog.Int("expected", WindowSamples),
			slog.Int("got", len(window)),
		)
		return 0
	}

	copy(d.input.GetData(), window)

	if err := d.session.Run(); err != nil {
		d.logger.Warn("VAD inference failed", slog.String("error", err.Error()))
		return 0
	}

	// Feed the updated recurrent state back for the next window.
	copy(d.state.GetData(), d.stateOut.GetData())

	return d.prob.GetData()[0]
}

// Reset zeroes the recurrent state for a new recording session. State
// leaking across sessions corrupts probabilities.
func (d *Detector) Reset() {
	if !d.available {
		return
	}

	data := d.state.GetData()
	for i := range data {
		data[i] = 0
	}
}

// Threshold returns the configured speech probability threshold.
func (d *Detector) Threshold() float32 {
	return d.config.Threshold
}

// Available reports whether the model loaded successfully.
func (d *Detector) Available() bool {
	return d.available
}

// Close releases the inference session and its tensors.
func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	d.releaseTensors()
	d.available = false
}

func (d *Detector) releaseTensors() {
	for _, t := range []*ort.Tensor[float32]{d.input, d.state, d.prob, d.stateOut} {
		if t != nil {
			t.Destroy()
		}
	}
	if d.sr != nil {
		d.sr.Destroy()
	}
	d.input, d.state, d.prob, d.stateOut, d.sr = nil, nil, nil, nil, nil
}

package aec

import (
	"fmt"
	"math"
)

const epsilon = 1e-8

// CancellerConfig contains NLMS adaptive filter parameters.
type CancellerConfig struct {
	// FilterLen is the adaptive filter length in samples. At 16kHz, 1600
	// covers a 100ms echo tail (room reflections plus speaker-to-mic delay).
	FilterLen int

	// StepSize is the NLMS step size mu in (0, 1]. Higher adapts faster but
	// is noisier.
	StepSize float64

	// BlockSize is the number of samples processed per weight update.
	BlockSize int
}

// DefaultCancellerConfig returns the canceller parameters used in production.
func DefaultCancellerConfig() CancellerConfig {
	return CancellerConfig{
		FilterLen: 1600,
		StepSize:  0.5,
		BlockSize: 256,
	}
}

// Validate checks the filter parameters.
func (c *CancellerConfig) Validate() error {
	if c.FilterLen <= 0 {
		return fmt.Errorf("filter_len must be positive, got %d", c.FilterLen)
	}

	if c.StepSize <= 0 || c.StepSize > 1 {
		return fmt.Errorf("step_size must be in (0, 1], got %f", c.StepSize)
	}

	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}

	return nil
}

// Canceller removes an estimated echo of a reference signal from a
// microphone signal using block NLMS adaptive filtering. The filter holds no
// state between calls: every invocation converges from zero weights.
type Canceller struct {
	config CancellerConfig
}

// NewCanceller creates a canceller with validated parameters.
func NewCanceller(config CancellerConfig) (*Canceller, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("canceller config: %w", err)
	}

	return &Canceller{config: config}, nil
}

// Cancel subtracts the estimated echo of ref from mic and returns the
// cleaned signal. Both signals must share the same sample rate; processing
// covers min(len(mic), len(ref)) samples. When that length is shorter than
// the filter, there is no history to adapt on and the truncated mic signal
// is returned unchanged. A non-finite filter output is reported as an error
// so the caller can fall back to the raw signal.
func (c *Canceller) Cancel(mic, ref []float32) ([]float32, error) {
	n := len(mic)
	if len(ref) < n {
		n = len(ref)
	}

	out := make([]float32, n)
	copy(out, mic[:n])

	filterLen := c.config.FilterLen
	if n < filterLen {
		return out, nil
	}

	// First filterLen samples stay unmodified: no reference history exists
	// for them yet.
	w := make([]float64, filterLen)
	row := make([]float64, filterLen)
	grad := make([]float64, filterLen)

	for start := filterLen; start < n; start += c.config.BlockSize {
		end := start + c.config.BlockSize
		if end > n {
			end = n
		}
		blockLen := end - start

		for k := range grad {
			grad[k] = 0
		}

		for j := 0; j < blockLen; j++ {
			idx := start + j

			// row holds the filterLen preceding reference samples in
			// reverse order (causal convolution kernel).
			var echoEst, norm float64
			for k := 0; k < filterLen; k++ {
				v := float64(ref[idx-1-k])
				row[k] = v
				echoEst += v * w[k]
				norm += v * v
			}

			e := float64(mic[idx]) - echoEst
			out[idx] = float32(e)

			scale := e / (norm + epsilon)
			for k := 0; k < filterLen; k++ {
				grad[k] += row[k] * scale
			}
		}

		// Block-averaged update: mean gradient trades adaptation speed for
		// lower variance than per-sample NLMS.
		mu := c.config.StepSize / float64(blockLen)
		for k := range w {
			w[k] += mu * grad[k]
		}
	}

	for i := filterLen; i < n; i++ {
		if math.IsNaN(float64(out[i])) || math.IsInf(float64(out[i]), 0) {
			return nil, fmt.Errorf("non-finite filter output at sample %d", i)
		}
	}

	return out, nil
}

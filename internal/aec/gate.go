package aec

import (
	"fmt"
	"math"
	"sort"
)

// GateConfig contains noise gate parameters.
type GateConfig struct {
	// FrameMS is the RMS analysis frame length in milliseconds.
	FrameMS int

	// Percentile of frame energies used as the noise floor estimate. The
	// 25th percentile captures the quieter, non-speech frames.
	Percentile float64

	// ThresholdFactor multiplies the noise floor to get the gate threshold.
	ThresholdFactor float64
}

// DefaultGateConfig returns the gate parameters used in production.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		FrameMS:         20,
		Percentile:      25,
		ThresholdFactor: 3.0,
	}
}

// Validate checks the gate parameters.
func (c *GateConfig) Validate() error {
	if c.FrameMS <= 0 {
		return fmt.Errorf("frame_ms must be positive, got %d", c.FrameMS)
	}

	if c.Percentile < 0 || c.Percentile > 100 {
		return fmt.Errorf("percentile must be between 0 and 100, got %f", c.Percentile)
	}

	if c.ThresholdFactor <= 0 {
		return fmt.Errorf("threshold_factor must be positive, got %f", c.ThresholdFactor)
	}

	return nil
}

// Gate suppresses low-amplitude frames that are likely residual echo rather
// than speech. The threshold adapts to each signal: the noise floor is
// estimated from the quietest frames, and anything below
// noise_floor * ThresholdFactor is smoothly attenuated. Louder speech frames
// pass through unchanged.
type Gate struct {
	config     GateConfig
	sampleRate int
}

// NewGate creates a gate for signals at the given sample rate.
func NewGate(sampleRate int, config GateConfig) (*Gate, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("gate config: %w", err)
	}

	return &Gate{config: config, sampleRate: sampleRate}, nil
}

// Apply gates the signal and returns a new buffer of the same length, plus
// whether any gating took place. Only whole frames are analyzed; a trailing
// partial frame passes through untouched. When the signal has no clear
// quiet/loud separation (uniform amplitude), there is nothing to gate and
// the input is returned as a copy with gated=false.
func (g *Gate) Apply(signal []float32) (out []float32, gated bool) {
	out = make([]float32, len(signal))
	copy(out, signal)

	frameLen := g.sampleRate * g.config.FrameMS / 1000
	if frameLen <= 0 {
		return out, false
	}

	numFrames := len(signal) / frameLen
	if numFrames == 0 {
		return out, false
	}

	rms := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		var energy float64
		for _, s := range signal[i*frameLen : (i+1)*frameLen] {
			energy += float64(s) * float64(s)
		}
		rms[i] = math.Sqrt(energy / float64(frameLen))
	}

	noiseFloor := percentile(rms, g.config.Percentile)
	loudLevel := percentile(rms, 75)
	threshold := noiseFloor * g.config.ThresholdFactor

	if threshold < 1e-8 || noiseFloor > loudLevel*0.5 {
		return out, false
	}

	for i := 0; i < numFrames; i++ {
		if rms[i] >= threshold {
			continue
		}

		// Quadratic taper: gain falls from 1 at the threshold toward 0 as
		// frame energy drops, continuous at the boundary.
		ratio := rms[i] / threshold
		gain := float32(ratio * ratio)
		for j := i * frameLen; j < (i+1)*frameLen; j++ {
			out[j] *= gain
		}
	}

	return out, true
}

// percentile computes the p-th percentile of values with linear
// interpolation between ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}

	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

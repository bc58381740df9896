package aec

import (
	"math"
	"testing"
)

const gateSampleRate = 16000

// frameSignal builds a signal from per-frame constant amplitudes. Each frame
// is frameLen samples of the given value, so frame RMS equals the value
// exactly.
func frameSignal(frameLen int, amplitudes []float32) []float32 {
	out := make([]float32, 0, frameLen*len(amplitudes))
	for _, a := range amplitudes {
		for i := 0; i < frameLen; i++ {
			out = append(out, a)
		}
	}
	return out
}

func TestGateAttenuatesQuietFrames(t *testing.T) {
	gate, err := NewGate(gateSampleRate, DefaultGateConfig())
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	frameLen := gateSampleRate * 20 / 1000 // 320 samples

	// 30 quiet frames at 0.001 and 20 loud frames at 0.5. The noise floor is
	// 0.001, threshold 0.003, so quiet frames get gain (1/3)^2.
	amplitudes := make([]float32, 0, 50)
	for i := 0; i < 30; i++ {
		amplitudes = append(amplitudes, 0.001)
	}
	for i := 0; i < 20; i++ {
		amplitudes = append(amplitudes, 0.5)
	}

	signal := frameSignal(frameLen, amplitudes)

	out, gated := gate.Apply(signal)
	if !gated {
		t.Fatal("expected gating to engage on bimodal signal")
	}

	if len(out) != len(signal) {
		t.Fatalf("expected output length %d, got %d", len(signal), len(out))
	}

	wantQuiet := 0.001 / 9.0
	for i := 0; i < 30*frameLen; i++ {
		if math.Abs(float64(out[i])-wantQuiet) > 1e-6 {
			t.Fatalf("quiet sample %d: expected %f, got %f", i, wantQuiet, out[i])
		}
	}

	for i := 30 * frameLen; i < len(out); i++ {
		if out[i] != 0.5 {
			t.Fatalf("loud sample %d attenuated: got %f", i, out[i])
		}
	}
}

func TestGateUniformSignalBypasses(t *testing.T) {
	gate, err := NewGate(gateSampleRate, DefaultGateConfig())
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	// All frames at the same level: no quiet/loud separation exists, so the
	// floor estimate is unreliable and the gate must stand down.
	signal := frameSignal(320, []float32{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1})

	out, gated := gate.Apply(signal)
	if gated {
		t.Error("expected bypass on uniform signal")
	}

	for i := range out {
		if out[i] != signal[i] {
			t.Fatalf("sample %d changed: in=%f out=%f", i, signal[i], out[i])
		}
	}
}

func TestGateSilenceBypasses(t *testing.T) {
	gate, err := NewGate(gateSampleRate, DefaultGateConfig())
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	signal := make([]float32, 3200)

	out, gated := gate.Apply(signal)
	if gated {
		t.Error("expected bypass on silence")
	}

	if len(out) != len(signal) {
		t.Errorf("expected output length %d, got %d", len(signal), len(out))
	}
}

func TestGateShortSignalPassesThrough(t *testing.T) {
	gate, err := NewGate(gateSampleRate, DefaultGateConfig())
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	signal := []float32{0.1, 0.2, 0.3} // shorter than one 320-sample frame

	out, gated := gate.Apply(signal)
	if gated {
		t.Error("expected bypass on sub-frame signal")
	}

	for i := range out {
		if out[i] != signal[i] {
			t.Fatalf("sample %d changed: in=%f out=%f", i, signal[i], out[i])
		}
	}
}

func TestGateTrailingPartialFrameUntouched(t *testing.T) {
	gate, err := NewGate(gateSampleRate, DefaultGateConfig())
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	frameLen := 320

	amplitudes := make([]float32, 0, 50)
	for i := 0; i < 30; i++ {
		amplitudes = append(amplitudes, 0.001)
	}
	for i := 0; i < 20; i++ {
		amplitudes = append(amplitudes, 0.5)
	}

	signal := frameSignal(frameLen, amplitudes)

	// A quiet partial frame at the end never enters RMS analysis.
	for i := 0; i < 100; i++ {
		signal = append(signal, 0.001)
	}

	out, gated := gate.Apply(signal)
	if !gated {
		t.Fatal("expected gating to engage")
	}

	for i := len(signal) - 100; i < len(signal); i++ {
		if out[i] != 0.001 {
			t.Fatalf("trailing sample %d changed: got %f", i, out[i])
		}
	}
}

func TestPercentileInterpolation(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"median of four", []float64{1, 2, 3, 4}, 50, 2.5},
		{"quartile of five", []float64{1, 2, 3, 4, 5}, 25, 2},
		{"minimum", []float64{3, 1, 2}, 0, 1},
		{"maximum", []float64{3, 1, 2}, 100, 3},
		{"single value", []float64{7}, 50, 7},
		{"empty", nil, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := percentile(tt.values, tt.p)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("percentile(%v, %f) = %f, want %f", tt.values, tt.p, got, tt.want)
			}
		})
	}
}

func TestGateConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  GateConfig
		wantErr bool
	}{
		{"default config", DefaultGateConfig(), false},
		{"zero frame", GateConfig{FrameMS: 0, Percentile: 25, ThresholdFactor: 3}, true},
		{"percentile too high", GateConfig{FrameMS: 20, Percentile: 101, ThresholdFactor: 3}, true},
		{"negative percentile", GateConfig{FrameMS: 20, Percentile: -1, ThresholdFactor: 3}, true},
		{"zero threshold factor", GateConfig{FrameMS: 20, Percentile: 25, ThresholdFactor: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

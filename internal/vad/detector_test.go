package vad

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectorUnavailableReturnsZero(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)

	if d.Available() {
		t.Error("detector reported available before Load")
	}

	prob := d.Process(make([]float32, WindowSamples))
	if prob != 0 {
		t.Errorf("expected probability 0 from unavailable detector, got %f", prob)
	}

	// Reset and Close must be safe on an unloaded detector.
	d.Reset()
	d.Close()
}

func TestDetectorThreshold(t *testing.T) {
	d := NewDetector(Config{Threshold: 0.7}, nil)

	if got := d.Threshold(); got != 0.7 {
		t.Errorf("expected threshold 0.7, got %f", got)
	}
}

func TestLoadMissingModelFails(t *testing.T) {
	d := NewDetector(Config{
		Threshold: 0.5,
		ModelPath: filepath.Join(t.TempDir(), "missing.onnx"),
	}, nil)
	defer d.Close()

	if d.Load() {
		t.Error("Load succeeded with a nonexistent model file")
	}

	if d.Available() {
		t.Error("detector reported available after failed load")
	}
}

func TestEnsureModelExplicitPath(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.onnx")
	if err := os.WriteFile(modelPath, []byte("stub"), 0o644); err != nil {
		t.Fatalf("writing stub model: %v", err)
	}

	d := NewDetector(Config{Threshold: 0.5, ModelPath: modelPath}, nil)

	got, err := d.ensureModel()
	if err != nil {
		t.Fatalf("ensureModel failed: %v", err)
	}

	if got != modelPath {
		t.Errorf("expected model path %s, got %s", modelPath, got)
	}
}

func TestEnsureModelUsesCachedFile(t *testing.T) {
	cacheDir := t.TempDir()
	cached := filepath.Join(cacheDir, modelFilename)
	if err := os.WriteFile(cached, []byte("stub"), 0o644); err != nil {
		t.Fatalf("writing cached model: %v", err)
	}

	d := NewDetector(Config{Threshold: 0.5, CacheDir: cacheDir}, nil)

	// A cache hit must not attempt a download.
	got, err := d.ensureModel()
	if err != nil {
		t.Fatalf("ensureModel failed: %v", err)
	}

	if got != cached {
		t.Errorf("expected cached model path %s, got %s", cached, got)
	}
}

func TestProcessRejectsWrongWindowSize(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)

	if prob := d.Process(make([]float32, 100)); prob != 0 {
		t.Errorf("expected probability 0 for wrong window size, got %f", prob)
	}
}

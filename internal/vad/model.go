package vad

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	modelURL      = "https://github.com/snakers4/silero-vad/raw/master/src/silero_vad/data/silero_vad.onnx"
	modelFilename = "silero_vad.onnx"
	cacheDirName  = ".whisperdash"
)

// ensureModel returns the path to the Silero model file, downloading it into
// the cache directory on first use. An explicit ModelPath bypasses the cache
// entirely.
func (d *Detector) ensureModel() (string, error) {
	if d.config.ModelPath != "" {
		if _, err := os.Stat(d.config.ModelPath); err != nil {
			return "", fmt.Errorf("model file not found: %w", err)
		}
		return d.config.ModelPath, nil
	}

	cacheDir := d.config.CacheDir
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot resolve home directory: %w", err)
		}
		cacheDir = filepath.Join(home, cacheDirName)
	}

	modelPath := filepath.Join(cacheDir, modelFilename)
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	}

	if err := downloadModel(modelPath); err != nil {
		return "", fmt.Errorf("model download failed: %w", err)
	}

	return modelPath, nil
}

// downloadModel fetches the model artifact and writes it atomically: the
// cached file only appears once fully written.
func downloadModel(modelPath string) error {
	if err := os.MkdirAll(filepath.Dir(modelPath), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Get(modelURL)
	if err != nil {
		return fmt.Errorf("failed to fetch model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model fetch returned HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(modelPath), modelFilename+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write model file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close model file: %w", err)
	}

	if err := os.Rename(tmp.Name(), modelPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move model into cache: %w", err)
	}

	return nil
}

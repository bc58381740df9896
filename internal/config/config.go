// Package config loads and validates the YAML service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ranabirbasu12/WhisperDash/internal/aec"
	"github.com/ranabirbasu12/WhisperDash/internal/pipeline"
	"github.com/ranabirbasu12/WhisperDash/internal/segment"
	"github.com/ranabirbasu12/WhisperDash/internal/transcription"
	"github.com/ranabirbasu12/WhisperDash/internal/vad"
)

// Config represents the complete service configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	AEC           AECConfig           `yaml:"aec"`
	Gate          GateConfig          `yaml:"gate"`
	Segmenter     SegmenterConfig     `yaml:"segmenter"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains audio capture parameters
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

// VADConfig contains voice activity detection configuration
type VADConfig struct {
	Threshold      float32 `yaml:"threshold"`
	ModelPath      string  `yaml:"model_path"`
	CacheDir       string  `yaml:"cache_dir"`
	RuntimeLibrary string  `yaml:"runtime_library"`
}

// AECConfig contains echo canceller parameters
type AECConfig struct {
	FilterLen int     `yaml:"filter_len"`
	StepSize  float64 `yaml:"step_size"`
	BlockSize int     `yaml:"block_size"`
}

// GateConfig contains noise gate parameters
type GateConfig struct {
	FrameMS         int     `yaml:"frame_ms"`
	Percentile      float64 `yaml:"percentile"`
	ThresholdFactor float64 `yaml:"threshold_factor"`
}

// SegmenterConfig contains speech segmentation parameters
type SegmenterConfig struct {
	SilenceHold   float64 `yaml:"silence_hold"` // seconds
	MinSegment    float64 `yaml:"min_segment"`  // seconds
	MinFinal      float64 `yaml:"min_final"`    // seconds
	QueueCapacity int     `yaml:"queue_capacity"`
}

// PipelineConfig contains streaming pipeline parameters
type PipelineConfig struct {
	JoinTimeout  float64 `yaml:"join_timeout"`  // seconds
	PollInterval float64 `yaml:"poll_interval"` // seconds
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Language      string `yaml:"language"`
	Model         string `yaml:"model"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.AEC.Validate(); err != nil {
		return fmt.Errorf("aec config: %w", err)
	}

	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("gate config: %w", err)
	}

	if err := c.Segmenter.Validate(); err != nil {
		return fmt.Errorf("segmenter config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != vad.SampleRate {
		return fmt.Errorf("sample_rate must be %d Hz for the Silero VAD, got %d", vad.SampleRate, a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	return nil
}

// Validate validates echo canceller configuration
func (a *AECConfig) Validate() error {
	cfg := a.CancellerConfig()
	return cfg.Validate()
}

// Validate validates noise gate configuration
func (g *GateConfig) Validate() error {
	cfg := g.GateConfig()
	return cfg.Validate()
}

// Validate validates segmenter configuration
func (s *SegmenterConfig) Validate() error {
	if s.SilenceHold <= 0 {
		return fmt.Errorf("silence_hold must be positive, got %f", s.SilenceHold)
	}

	if s.MinSegment <= 0 {
		return fmt.Errorf("min_segment must be positive, got %f", s.MinSegment)
	}

	if s.MinFinal <= 0 {
		return fmt.Errorf("min_final must be positive, got %f", s.MinFinal)
	}

	if s.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", s.QueueCapacity)
	}

	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.JoinTimeout <= 0 {
		return fmt.Errorf("join_timeout must be positive, got %f", p.JoinTimeout)
	}

	if p.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %f", p.PollInterval)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// VADDetectorConfig returns the detector configuration for the vad package
func (v *VADConfig) VADDetectorConfig() vad.Config {
	return vad.Config{
		Threshold:      v.Threshold,
		ModelPath:      v.ModelPath,
		CacheDir:       v.CacheDir,
		RuntimeLibrary: v.RuntimeLibrary,
	}
}

// CancellerConfig returns the canceller configuration for the aec package
func (a *AECConfig) CancellerConfig() aec.CancellerConfig {
	return aec.CancellerConfig{
		FilterLen: a.FilterLen,
		StepSize:  a.StepSize,
		BlockSize: a.BlockSize,
	}
}

// GateConfig returns the gate configuration for the aec package
func (g *GateConfig) GateConfig() aec.GateConfig {
	return aec.GateConfig{
		FrameMS:         g.FrameMS,
		Percentile:      g.Percentile,
		ThresholdFactor: g.ThresholdFactor,
	}
}

// SegmentConfig returns the segmenter configuration at the given sample rate
func (s *SegmenterConfig) SegmentConfig(sampleRate int) segment.Config {
	return segment.Config{
		SampleRate:    sampleRate,
		SilenceHold:   time.Duration(s.SilenceHold * float64(time.Second)),
		MinSegment:    time.Duration(s.MinSegment * float64(time.Second)),
		MinFinal:      time.Duration(s.MinFinal * float64(time.Second)),
		QueueCapacity: s.QueueCapacity,
	}
}

// PipelineSettings returns the pipeline configuration assembled from the
// relevant sections
func (c *Config) PipelineSettings() pipeline.Config {
	return pipeline.Config{
		SampleRate:   c.Audio.SampleRate,
		Segmenter:    c.Segmenter.SegmentConfig(c.Audio.SampleRate),
		AEC:          c.AEC.CancellerConfig(),
		Gate:         c.Gate.GateConfig(),
		JoinTimeout:  time.Duration(c.Pipeline.JoinTimeout * float64(time.Second)),
		PollInterval: time.Duration(c.Pipeline.PollInterval * float64(time.Second)),
	}
}

// TranscriptionClientConfig returns the client configuration for the
// transcription package
func (t *TranscriptionConfig) TranscriptionClientConfig() transcription.Config {
	return transcription.Config{
		Endpoint:      t.Endpoint,
		APIKey:        t.APIKey,
		Timeout:       time.Duration(t.Timeout) * time.Second,
		MaxRetries:    t.MaxRetries,
		MaxConcurrent: t.MaxConcurrent,
		Language:      t.Language,
		Model:         t.Model,
	}
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// Package vad provides Voice Activity Detection using the Silero VAD ONNX
// model. The detector scores 512-sample windows at 16kHz, carrying the
// model's recurrent state between windows. When the model or runtime is
// unavailable it degrades gracefully: every window scores 0.0 (not speech).
package vad

// Package audio provides WAV encoding/decoding for float32 mono PCM and the
// live system-audio reference feed used for echo cancellation alignment.
package audio

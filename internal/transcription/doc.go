// Package transcription provides the HTTP client that sends speech segments
// to a Whisper-compatible transcription endpoint as WAV uploads.
package transcription

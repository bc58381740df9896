// Package pipeline runs the streaming transcription loop for one recording
// session. Microphone audio is fed through the segmenter, sealed segments are
// echo-cancelled against the system-audio reference and transcribed by a
// single worker, and Stop returns all results ordered by capture time.
package pipeline

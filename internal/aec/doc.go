// Package aec implements acoustic echo cancellation for microphone audio.
// It provides a block NLMS adaptive filter that subtracts the estimated echo
// of a reference (system audio) signal, and an adaptive noise gate that
// suppresses low-energy residual frames after filtering.
package aec

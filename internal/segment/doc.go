// Package segment turns the continuous microphone stream into sealed speech
// segments. A state machine classifies fixed 512-sample windows through the
// VAD and applies silence hysteresis to find utterance boundaries; sealed
// segments carry global sample offsets so they can later be aligned with the
// system-audio reference.
package segment

// Package metrics provides Prometheus metrics for the dictation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the dictation service. All
// Record methods are safe to call on a nil receiver so components can run
// without a registry (unit tests, library use).
type Metrics struct {
	// VAD metrics
	VADWindowsProcessed prometheus.Counter
	VADSpeechDetected   prometheus.Counter

	// Segmentation metrics
	SegmentsSealed  prometheus.Counter
	SegmentsMerged  prometheus.Counter
	SegmentsDropped prometheus.Counter
	SegmentDuration prometheus.Histogram
	FinalSegments   prometheus.Counter

	// Echo cancellation metrics
	AECApplied   prometheus.Counter
	AECFallbacks prometheus.Counter
	AECDuration  prometheus.Histogram
	GateBypasses prometheus.Counter

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionsInactive prometheus.Counter
	WorkerJoinDelays prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics on the default
// registry.
func NewMetrics() *Metrics {
	return &Metrics{
		VADWindowsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_vad_windows_processed_total",
			Help: "Total number of 512-sample VAD windows scored",
		}),
		VADSpeechDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_vad_speech_detected_total",
			Help: "Total number of VAD windows classified as speech",
		}),

		SegmentsSealed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_segments_sealed_total",
			Help: "Total number of speech segments sealed for transcription",
		}),
		SegmentsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_segments_merged_forward_total",
			Help: "Total number of short speech bursts retained and merged into the next segment",
		}),
		SegmentsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_segments_dropped_total",
			Help: "Total number of sealed segments dropped because the queue was full",
		}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictation_segment_duration_seconds",
			Help:    "Duration of sealed speech segments",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~1 minute
		}),
		FinalSegments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_final_segments_total",
			Help: "Total number of trailing segments sealed at end of recording",
		}),

		AECApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_aec_applied_total",
			Help: "Total number of segments processed through echo cancellation",
		}),
		AECFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_aec_fallbacks_total",
			Help: "Total number of segments that fell back to raw mic audio after an AEC failure",
		}),
		AECDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictation_aec_duration_seconds",
			Help:    "Time spent cancelling echo per segment",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		GateBypasses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_gate_bypasses_total",
			Help: "Total number of segments the noise gate passed through unmodified",
		}),

		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_transcription_requests_total",
			Help: "Total number of segment transcription requests",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_transcription_successes_total",
			Help: "Total number of successful segment transcriptions",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_transcription_failures_total",
			Help: "Total number of failed segment transcriptions",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictation_transcription_duration_seconds",
			Help:    "Duration of segment transcription calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_sessions_started_total",
			Help: "Total number of streaming sessions started",
		}),
		SessionsInactive: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_sessions_inactive_total",
			Help: "Total number of sessions that never activated because the VAD was unavailable",
		}),
		WorkerJoinDelays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dictation_worker_join_delays_total",
			Help: "Total number of times the pipeline worker missed the join deadline at stop",
		}),
	}
}

// RecordVADWindow records one scored VAD window.
func (m *Metrics) RecordVADWindow(isSpeech bool) {
	if m == nil {
		return
	}
	m.VADWindowsProcessed.Inc()
	if isSpeech {
		m.VADSpeechDetected.Inc()
	}
}

// RecordSegmentSealed records a sealed segment and its duration.
func (m *Metrics) RecordSegmentSealed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.SegmentsSealed.Inc()
	m.SegmentDuration.Observe(durationSeconds)
}

// RecordSegmentMerged records a short burst carried forward into the next
// segment.
func (m *Metrics) RecordSegmentMerged() {
	if m == nil {
		return
	}
	m.SegmentsMerged.Inc()
}

// RecordSegmentDropped records a sealed segment lost to queue overflow.
func (m *Metrics) RecordSegmentDropped() {
	if m == nil {
		return
	}
	m.SegmentsDropped.Inc()
}

// RecordFinalSegment records a trailing segment sealed at stop.
func (m *Metrics) RecordFinalSegment() {
	if m == nil {
		return
	}
	m.FinalSegments.Inc()
}

// RecordAEC records an echo cancellation pass over one segment.
func (m *Metrics) RecordAEC(durationSeconds float64) {
	if m == nil {
		return
	}
	m.AECApplied.Inc()
	m.AECDuration.Observe(durationSeconds)
}

// RecordAECFallback records a segment processed with raw mic audio after an
// AEC failure.
func (m *Metrics) RecordAECFallback() {
	if m == nil {
		return
	}
	m.AECFallbacks.Inc()
}

// RecordGateBypass records a segment the noise gate left unmodified.
func (m *Metrics) RecordGateBypass() {
	if m == nil {
		return
	}
	m.GateBypasses.Inc()
}

// RecordTranscription records the outcome of one segment transcription.
func (m *Metrics) RecordTranscription(success bool, durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionRequests.Inc()
	if success {
		m.TranscriptionSuccesses.Inc()
	} else {
		m.TranscriptionFailures.Inc()
	}
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordSessionStarted records an activated streaming session.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

// RecordSessionInactive records a session that stayed inactive because the
// VAD was unavailable.
func (m *Metrics) RecordSessionInactive() {
	if m == nil {
		return
	}
	m.SessionsInactive.Inc()
}

// RecordWorkerJoinDelay records a worker that missed the stop deadline.
func (m *Metrics) RecordWorkerJoinDelay() {
	if m == nil {
		return
	}
	m.WorkerJoinDelays.Inc()
}

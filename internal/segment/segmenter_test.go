package segment

import (
	"testing"
	"time"

	"github.com/ranabirbasu12/WhisperDash/internal/vad"
)

// fakeDetector classifies a window as speech when any sample exceeds 0.1 in
// magnitude, which lets tests construct speech/silence runs from amplitudes.
type fakeDetector struct {
	threshold float32
	resets    int
}

func (d *fakeDetector) Process(window []float32) float32 {
	for _, s := range window {
		if s > 0.1 || s < -0.1 {
			return 0.9
		}
	}
	return 0.05
}

func (d *fakeDetector) Threshold() float32 { return d.threshold }

func (d *fakeDetector) Reset() { d.resets++ }

func testConfig() Config {
	return DefaultConfig(vad.SampleRate)
}

func newTestSegmenter(t *testing.T) (*Segmenter, *fakeDetector) {
	t.Helper()

	det := &fakeDetector{threshold: 0.5}
	seg, err := NewSegmenter(det, testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewSegmenter failed: %v", err)
	}
	return seg, det
}

// feedChunks delivers samples in capture-callback sized chunks.
func feedChunks(s *Segmenter, samples []float32) {
	for start := 0; start < len(samples); start += vad.WindowSamples {
		end := start + vad.WindowSamples
		if end > len(samples) {
			end = len(samples)
		}
		s.Feed(samples[start:end])
	}
}

// speech and silence runs sized in whole VAD windows.
func speechSamples(windows int) []float32 {
	out := make([]float32, windows*vad.WindowSamples)
	for i := range out {
		out[i] = 0.5
	}
	return out
}

func silenceSamples(windows int) []float32 {
	return make([]float32, windows*vad.WindowSamples)
}

func receiveSegment(t *testing.T, s *Segmenter) *SealedSegment {
	t.Helper()

	select {
	case seg := <-s.Segments():
		return seg
	default:
		t.Fatal("expected a sealed segment on the queue")
		return nil
	}
}

func TestSegmenterSealsAfterSilenceHold(t *testing.T) {
	seg, _ := newTestSegmenter(t)

	// 32 windows of speech followed by 32 windows of silence crosses the
	// 600ms hold well past the 1s minimum.
	feedChunks(seg, speechSamples(32))
	feedChunks(seg, silenceSamples(32))

	sealed := receiveSegment(t, seg)
	if sealed == nil {
		t.Fatal("received nil sentinel instead of a segment")
	}

	if sealed.Index != 0 {
		t.Errorf("expected index 0, got %d", sealed.Index)
	}

	if sealed.StartSample != 0 {
		t.Errorf("expected start sample 0, got %d", sealed.StartSample)
	}

	if sealed.EndSample != uint64(len(sealed.MicAudio)) {
		t.Errorf("end sample %d does not match audio length %d", sealed.EndSample, len(sealed.MicAudio))
	}

	// The segment holds the speech plus the silence accumulated up to the
	// seal, never less than the speech itself.
	if len(sealed.MicAudio) < 32*vad.WindowSamples {
		t.Errorf("segment shorter than the speech fed: %d samples", len(sealed.MicAudio))
	}
}

func TestSegmenterSegmentsAreContiguous(t *testing.T) {
	seg, _ := newTestSegmenter(t)

	feedChunks(seg, speechSamples(32))
	feedChunks(seg, silenceSamples(32))
	feedChunks(seg, speechSamples(32))
	feedChunks(seg, silenceSamples(32))

	first := receiveSegment(t, seg)
	second := receiveSegment(t, seg)

	if second.Index != first.Index+1 {
		t.Errorf("indices not sequential: %d then %d", first.Index, second.Index)
	}

	// No gap and no overlap on the global timeline.
	if second.StartSample != first.EndSample {
		t.Errorf("timeline gap: first ends at %d, second starts at %d",
			first.EndSample, second.StartSample)
	}

	if second.EndSample-second.StartSample != uint64(len(second.MicAudio)) {
		t.Errorf("second segment span %d does not match audio length %d",
			second.EndSample-second.StartSample, len(second.MicAudio))
	}
}

func TestSegmenterMergesShortBurstForward(t *testing.T) {
	seg, _ := newTestSegmenter(t)

	// 8 windows (~260ms) of speech is under the 1s minimum: the silence hold
	// elapses but no segment may seal yet.
	feedChunks(seg, speechSamples(8))
	feedChunks(seg, silenceSamples(32))

	select {
	case <-seg.Segments():
		t.Fatal("short burst sealed instead of merging forward")
	default:
	}

	// The next real utterance picks up the retained audio from sample 0.
	feedChunks(seg, speechSamples(32))
	feedChunks(seg, silenceSamples(32))

	sealed := receiveSegment(t, seg)
	if sealed.StartSample != 0 {
		t.Errorf("merged segment should start at 0, got %d", sealed.StartSample)
	}

	if len(sealed.MicAudio) < 40*vad.WindowSamples {
		t.Errorf("merged segment missing retained audio: %d samples", len(sealed.MicAudio))
	}
}

func TestSealFinalReturnsTrailingAudio(t *testing.T) {
	seg, _ := newTestSegmenter(t)

	feedChunks(seg, speechSamples(16)) // ~520ms, no silence yet

	final := seg.SealFinal()
	if final == nil {
		t.Fatal("expected a final segment")
	}

	if final.StartSample != 0 {
		t.Errorf("expected final segment to start at 0, got %d", final.StartSample)
	}

	if len(final.MicAudio) != 16*vad.WindowSamples {
		t.Errorf("expected %d samples, got %d", 16*vad.WindowSamples, len(final.MicAudio))
	}

	// Nothing remains after sealing.
	if again := seg.SealFinal(); again != nil {
		t.Error("second SealFinal returned a segment from an empty buffer")
	}
}

func TestSealFinalSkipsTinyRemainder(t *testing.T) {
	seg, _ := newTestSegmenter(t)

	// One 512-sample chunk is 32ms, under the 100ms minimum.
	seg.Feed(speechSamples(1))

	if final := seg.SealFinal(); final != nil {
		t.Errorf("expected no final segment for 32ms remainder, got %d samples", len(final.MicAudio))
	}
}

func TestSignalDonePostsSentinel(t *testing.T) {
	seg, _ := newTestSegmenter(t)

	seg.SignalDone()

	select {
	case got := <-seg.Segments():
		if got != nil {
			t.Errorf("expected nil sentinel, got segment %d", got.Index)
		}
	default:
		t.Fatal("no sentinel on the queue")
	}
}

func TestSegmenterReset(t *testing.T) {
	seg, det := newTestSegmenter(t)

	feedChunks(seg, speechSamples(32))
	feedChunks(seg, silenceSamples(32))

	seg.Reset()

	if got := seg.TotalSamples(); got != 0 {
		t.Errorf("expected 0 total samples after reset, got %d", got)
	}

	if det.resets != 1 {
		t.Errorf("expected 1 detector reset, got %d", det.resets)
	}

	// The queued segment from before the reset is gone.
	select {
	case <-seg.Segments():
		t.Error("stale segment survived reset")
	default:
	}

	// A fresh session starts the timeline at zero again.
	feedChunks(seg, speechSamples(32))
	feedChunks(seg, silenceSamples(32))

	sealed := receiveSegment(t, seg)
	if sealed.Index != 0 || sealed.StartSample != 0 {
		t.Errorf("post-reset segment not at origin: index %d, start %d",
			sealed.Index, sealed.StartSample)
	}
}

func TestSegmenterDropsOnFullQueue(t *testing.T) {
	det := &fakeDetector{threshold: 0.5}
	cfg := testConfig()
	cfg.QueueCapacity = 1

	seg, err := NewSegmenter(det, cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewSegmenter failed: %v", err)
	}

	// Two seals with no consumer: the second is dropped, never blocks.
	feedChunks(seg, speechSamples(32))
	feedChunks(seg, silenceSamples(32))
	feedChunks(seg, speechSamples(32))
	feedChunks(seg, silenceSamples(32))

	first := receiveSegment(t, seg)
	if first.Index != 0 {
		t.Errorf("expected surviving segment 0, got %d", first.Index)
	}

	select {
	case extra := <-seg.Segments():
		t.Errorf("dropped segment %d still on queue", extra.Index)
	default:
	}
}

func TestSegmenterIgnoresEmptyChunks(t *testing.T) {
	seg, _ := newTestSegmenter(t)

	seg.Feed(nil)
	seg.Feed([]float32{})

	if got := seg.TotalSamples(); got != 0 {
		t.Errorf("expected 0 samples processed, got %d", got)
	}
}

func TestSegmentConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default config", func(c *Config) {}, false},
		{"wrong sample rate", func(c *Config) { c.SampleRate = 8000 }, true},
		{"zero silence hold", func(c *Config) { c.SilenceHold = 0 }, true},
		{"zero min segment", func(c *Config) { c.MinSegment = 0 }, true},
		{"negative min final", func(c *Config) { c.MinFinal = -time.Second }, true},
		{"zero queue capacity", func(c *Config) { c.QueueCapacity = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

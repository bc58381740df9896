package audio

import "sync"

// ReferenceFeed accumulates system-audio chunks during a recording session.
// The capture callback appends chunks as they arrive; pipeline workers read
// point-in-time snapshots for echo cancellation. Appends must stay cheap so
// the capture thread is never held up by a reader.
type ReferenceFeed struct {
	mu      sync.Mutex
	chunks  [][]float32
	samples int
}

// NewReferenceFeed creates an empty reference feed.
func NewReferenceFeed() *ReferenceFeed {
	return &ReferenceFeed{}
}

// Append copies the chunk into the feed. The caller may reuse its buffer
// after Append returns.
func (f *ReferenceFeed) Append(chunk []float32) {
	if len(chunk) == 0 {
		return
	}

	owned := make([]float32, len(chunk))
	copy(owned, chunk)

	f.mu.Lock()
	f.chunks = append(f.chunks, owned)
	f.samples += len(owned)
	f.mu.Unlock()
}

// Snapshot returns the audio accumulated so far as one contiguous buffer.
// Returns nil when the feed is empty. The result is a copy and safe to use
// while the capture thread keeps appending.
func (f *ReferenceFeed) Snapshot() []float32 {
	f.mu.Lock()
	chunks := f.chunks // chunks are never mutated after append
	total := f.samples
	f.mu.Unlock()

	if total == 0 {
		return nil
	}

	out := make([]float32, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Samples returns the number of samples accumulated so far.
func (f *ReferenceFeed) Samples() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.samples
}

// Reset discards all accumulated audio.
func (f *ReferenceFeed) Reset() {
	f.mu.Lock()
	f.chunks = nil
	f.samples = 0
	f.mu.Unlock()
}

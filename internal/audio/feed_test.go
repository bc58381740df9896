package audio

import "testing"

func TestReferenceFeedSnapshot(t *testing.T) {
	feed := NewReferenceFeed()

	if got := feed.Snapshot(); got != nil {
		t.Errorf("expected nil snapshot from empty feed, got %d samples", len(got))
	}

	feed.Append([]float32{1, 2, 3})
	feed.Append([]float32{4, 5})

	if got := feed.Samples(); got != 5 {
		t.Errorf("expected 5 samples, got %d", got)
	}

	snap := feed.Snapshot()
	want := []float32{1, 2, 3, 4, 5}
	if len(snap) != len(want) {
		t.Fatalf("expected snapshot length %d, got %d", len(want), len(snap))
	}
	for i := range want {
		if snap[i] != want[i] {
			t.Errorf("snapshot[%d] = %f, want %f", i, snap[i], want[i])
		}
	}
}

func TestReferenceFeedSnapshotIsolation(t *testing.T) {
	feed := NewReferenceFeed()

	chunk := []float32{1, 2, 3}
	feed.Append(chunk)

	// Mutating the caller's buffer after Append must not leak into the feed.
	chunk[0] = 99

	snap := feed.Snapshot()
	if snap[0] != 1 {
		t.Errorf("feed shares caller's buffer: snapshot[0] = %f", snap[0])
	}

	// Mutating a snapshot must not affect later snapshots.
	snap[1] = 99
	snap2 := feed.Snapshot()
	if snap2[1] != 2 {
		t.Errorf("snapshots share storage: second snapshot[1] = %f", snap2[1])
	}
}

func TestReferenceFeedReset(t *testing.T) {
	feed := NewReferenceFeed()
	feed.Append([]float32{1, 2, 3})

	feed.Reset()

	if got := feed.Samples(); got != 0 {
		t.Errorf("expected 0 samples after reset, got %d", got)
	}

	if got := feed.Snapshot(); got != nil {
		t.Errorf("expected nil snapshot after reset, got %d samples", len(got))
	}
}

func TestReferenceFeedIgnoresEmptyChunks(t *testing.T) {
	feed := NewReferenceFeed()
	feed.Append(nil)
	feed.Append([]float32{})

	if got := feed.Samples(); got != 0 {
		t.Errorf("expected 0 samples, got %d", got)
	}
}

package attend

import (
	"testing"
	"time"

	"github.com/attendly/faceattend/pkg/match"
)

func TestFrameGateSkipsFrames(t *testing.T) {
	gate := NewFrameGate(3, 0)
	now := time.Now()

	var processed []int
	for i := 1; i <= 9; i++ {
		if gate.ShouldProcess(now) {
			processed = append(processed, i)
		}
	}

	want := []int{1, 4, 7}
	if len(processed) != len(want) {
		t.Fatalf("processed %v, want %v", processed, want)
	}
	for i := range want {
		if processed[i] != want[i] {
			t.Fatalf("processed %v, want %v", processed, want)
		}
	}
}

func TestFrameGateCacheWindow(t *testing.T) {
	gate := NewFrameGate(1, 2*time.Second)
	now := time.Now()

	if !gate.ShouldProcess(now) {
		t.Fatal("first frame must be processed")
	}
	verdict := match.Result{Matched: true, Name: "Alice", Confidence: 0.9}
	gate.Remember(verdict, now)

	// Within the cache window the verdict is reused instead of reprocessing.
	if gate.ShouldProcess(now.Add(time.Second)) {
		t.Error("fresh cache should suppress processing")
	}
	cached, ok := gate.Cached(now.Add(time.Second))
	if !ok || cached.Name != "Alice" {
		t.Errorf("cached verdict = %+v, %v", cached, ok)
	}

	// Past the window the cache is stale and processing resumes.
	if _, ok := gate.Cached(now.Add(3 * time.Second)); ok {
		t.Error("stale cache returned a verdict")
	}
	if !gate.ShouldProcess(now.Add(3 * time.Second)) {
		t.Error("stale cache should allow processing")
	}
}

func TestFrameGateZeroCacheAlwaysProcesses(t *testing.T) {
	gate := NewFrameGate(1, 0)
	now := time.Now()

	gate.ShouldProcess(now)
	gate.Remember(match.Result{Matched: true}, now)

	if !gate.ShouldProcess(now) {
		t.Error("zero cache window should never suppress processing")
	}
}

func TestFrameGateReset(t *testing.T) {
	gate := NewFrameGate(3, time.Minute)
	now := time.Now()

	gate.ShouldProcess(now)
	gate.ShouldProcess(now)
	gate.Remember(match.Result{Matched: true}, now)

	gate.Reset()

	if _, ok := gate.Cached(now); ok {
		t.Error("reset should drop the cached verdict")
	}
	if !gate.ShouldProcess(now) {
		t.Error("frame counter should restart after reset")
	}
}

func TestFrameGateClampsSkip(t *testing.T) {
	gate := NewFrameGate(0, 0)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !gate.ShouldProcess(now) {
			t.Fatal("skip below 1 should process every frame")
		}
	}
}

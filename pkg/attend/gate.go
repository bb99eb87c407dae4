package attend

import (
	"time"

	"github.com/attendly/faceattend/pkg/match"
)

// FrameGate implements the stream performance policy: process every Nth
// frame and reuse the last verdict within a cache window. It only decides
// whether to run recognition; correctness of whatever runs is untouched.
type FrameGate struct {
	skip     int
	cacheFor time.Duration

	counter int
	last    match.Result
	lastAt  time.Time
	hasLast bool
}

// NewFrameGate creates a gate that processes every skip-th frame and
// caches verdicts for cacheFor. skip below 1 is treated as 1.
func NewFrameGate(skip int, cacheFor time.Duration) *FrameGate {
	if skip < 1 {
		skip = 1
	}
	return &FrameGate{skip: skip, cacheFor: cacheFor}
}

// ShouldProcess reports whether this frame should go through recognition.
// Frames are counted from the first call; frame 1 is always processed.
func (g *FrameGate) ShouldProcess(at time.Time) bool {
	g.counter++
	if (g.counter-1)%g.skip != 0 {
		return false
	}
	if g.hasLast && g.cacheFor > 0 && at.Sub(g.lastAt) < g.cacheFor {
		return false
	}
	return true
}

// Remember stores a verdict for reuse on skipped frames.
func (g *FrameGate) Remember(result match.Result, at time.Time) {
	g.last = result
	g.lastAt = at
	g.hasLast = true
}

// Cached returns the last remembered verdict if it is still fresh.
func (g *FrameGate) Cached(at time.Time) (match.Result, bool) {
	if !g.hasLast {
		return match.Result{}, false
	}
	if g.cacheFor > 0 && at.Sub(g.lastAt) >= g.cacheFor {
		return match.Result{}, false
	}
	return g.last, true
}

// Reset clears the counter and cached verdict.
func (g *FrameGate) Reset() {
	g.counter = 0
	g.hasLast = false
	g.last = match.Result{}
	g.lastAt = time.Time{}
}

// Package liveness implements the blink-based anti-spoofing gate. A session
// consumes eye-aspect-ratio samples from consecutive frames and decides
// whether the subject produced a genuine blink before the window closed. A
// static photograph or replayed still never shows the EAR dip-and-recover
// pattern and times out instead.
package liveness

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/attendly/faceattend/pkg/logging"
)

// State is the liveness session state.
type State int

const (
	// StateCollecting means the session is still gathering samples.
	StateCollecting State = iota
	// StateBlinkDetected is the terminal success state: eye closure
	// followed by reopening was observed.
	StateBlinkDetected
	// StateTimedOut is the terminal failure state: the window elapsed
	// without a qualifying blink.
	StateTimedOut
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateBlinkDetected:
		return "blink_detected"
	case StateTimedOut:
		return "timed_out"
	default:
		return "collecting"
	}
}

// Terminal reports whether the state accepts no further samples.
func (s State) Terminal() bool {
	return s != StateCollecting
}

// DefaultOpenEAR is the neutral "eye open" ratio reported when landmarks
// are unusable. It sits above the close threshold so bad frames can never
// fake a blink.
const DefaultOpenEAR = 0.3

// Config holds the blink detection tuning.
type Config struct {
	// CloseThreshold is the EAR below which the eye counts as closed.
	CloseThreshold float64
	// OpenThreshold is the EAR the eye must recover above to finish a blink.
	OpenThreshold float64
	// MinClosedFrames is how many consecutive closed samples a blink needs.
	MinClosedFrames int
	// RecoveryFrames bounds how many samples after closure the reopening
	// may take before the closure is discarded.
	RecoveryFrames int
	// Window is the wall-clock budget for one attempt.
	Window time.Duration
	// MaxFrames is the sample budget for one attempt.
	MaxFrames int
}

// DefaultConfig returns the standard blink detection tuning.
func DefaultConfig() Config {
	return Config{
		CloseThreshold:  0.22,
		OpenThreshold:   0.25,
		MinClosedFrames: 1,
		RecoveryFrames:  10,
		Window:          6 * time.Second,
		MaxFrames:       10,
	}
}

// Sample is one EAR observation.
type Sample struct {
	EAR float64
	At  time.Time
}

// Session tracks one liveness attempt. A session belongs to exactly one
// attempt and is not safe for concurrent use.
type Session struct {
	ID  uuid.UUID
	cfg Config

	state     State
	startedAt time.Time
	samples   []Sample

	closedRun  int
	pendingGap int
	hasClosure bool
}

// NewSession starts a liveness attempt in the collecting state.
func NewSession(cfg Config) *Session {
	return &Session{
		ID:  uuid.New(),
		cfg: cfg,
	}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Samples returns the EAR samples collected so far.
func (s *Session) Samples() []Sample {
	return s.samples
}

// Reset discards all collected samples and returns to collecting. The
// window restarts with the next observed sample.
func (s *Session) Reset() {
	s.state = StateCollecting
	s.startedAt = time.Time{}
	s.samples = nil
	s.closedRun = 0
	s.pendingGap = 0
	s.hasClosure = false
	logging.Component("liveness").Debugf("session %s reset", s.ID)
}

// Observe feeds one EAR sample into the session and returns the resulting
// state. Terminal states ignore further samples.
func (s *Session) Observe(ear float64, at time.Time) State {
	if s.state.Terminal() {
		return s.state
	}

	if s.startedAt.IsZero() {
		s.startedAt = at
	}
	s.samples = append(s.samples, Sample{EAR: ear, At: at})

	if ear < s.cfg.CloseThreshold {
		s.closedRun++
		if s.closedRun >= s.cfg.MinClosedFrames {
			s.hasClosure = true
			s.pendingGap = 0
		}
	} else {
		s.closedRun = 0
		if s.hasClosure {
			s.pendingGap++
			if ear > s.cfg.OpenThreshold {
				s.state = StateBlinkDetected
				logging.Component("liveness").Debugf("session %s: blink after %d samples", s.ID, len(s.samples))
				return s.state
			}
			if s.pendingGap >= s.cfg.RecoveryFrames {
				// Eyes never reopened cleanly; discard the closure.
				s.hasClosure = false
				s.pendingGap = 0
			}
		}
	}

	if s.expired(at) {
		s.state = StateTimedOut
		logging.Component("liveness").Debugf("session %s: timed out after %d samples", s.ID, len(s.samples))
	}
	return s.state
}

func (s *Session) expired(at time.Time) bool {
	if s.cfg.MaxFrames > 0 && len(s.samples) >= s.cfg.MaxFrames {
		return true
	}
	if s.cfg.Window > 0 && at.Sub(s.startedAt) >= s.cfg.Window {
		return true
	}
	return false
}

// Point is a 2D landmark coordinate.
type Point struct {
	X, Y float64
}

// EyeAspectRatio computes the 6-point EAR for one eye. The points are
// ordered corner, top1, top2, corner, bottom2, bottom1 as produced by the
// landmark extractor. The ratio drops sharply while the eye is closed and
// recovers once it reopens. Malformed input yields DefaultOpenEAR.
func EyeAspectRatio(eye []Point) float64 {
	if len(eye) < 6 {
		return DefaultOpenEAR
	}

	a := dist(eye[1], eye[5])
	b := dist(eye[2], eye[4])
	c := dist(eye[0], eye[3])
	if c == 0 {
		return DefaultOpenEAR
	}
	return (a + b) / (2.0 * c)
}

// AverageEAR combines both eyes into the per-frame sample the session
// consumes.
func AverageEAR(left, right []Point) float64 {
	return (EyeAspectRatio(left) + EyeAspectRatio(right)) / 2.0
}

func dist(p, q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

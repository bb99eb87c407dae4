package match

import (
	"time"

	"github.com/attendly/faceattend/pkg/encoding"
	"github.com/attendly/faceattend/pkg/logging"
)

// Result is the outcome of matching one probe. "No match" is a normal
// outcome carrying the unknown track label, never an error.
type Result struct {
	Matched    bool
	IdentityID string
	Name       string
	TrackLabel string
	Distance   float64
	Confidence float64
}

// Label returns the display label for a result: the identity name when
// matched, the unknown track label otherwise.
func (r Result) Label() string {
	if r.Matched {
		if r.Name != "" {
			return r.Name
		}
		return r.IdentityID
	}
	return r.TrackLabel
}

// Matcher compares probes against the roster's aggregated encodings.
// Canonical scale is Euclidean distance; probes at or below the tolerance
// match. Ties at the boundary go to the lexicographically first identity
// ID, which the sorted snapshot plus strict-less selection guarantees.
type Matcher struct {
	roster    *Roster
	unknowns  *UnknownRegistry
	tolerance float64
}

// NewMatcher creates a Matcher over the given roster and unknown registry.
func NewMatcher(roster *Roster, unknowns *UnknownRegistry, tolerance float64) *Matcher {
	return &Matcher{
		roster:    roster,
		unknowns:  unknowns,
		tolerance: tolerance,
	}
}

// SetTolerance sets the match distance threshold.
func (m *Matcher) SetTolerance(tolerance float64) {
	m.tolerance = tolerance
}

// Match compares the probe against every enrolled identity. With an empty
// roster every probe resolves to an unknown track.
func (m *Matcher) Match(probe encoding.Vector) Result {
	return m.MatchAt(probe, time.Now())
}

// MatchAt is Match with an explicit clock, used by the unknown-track
// expiry logic and by tests.
func (m *Matcher) MatchAt(probe encoding.Vector, now time.Time) Result {
	snapshot := m.roster.Snapshot()

	var best *Enrolled
	bestDist := 0.0
	for i := range snapshot {
		d := encoding.Distance(probe, snapshot[i].Vector)
		if best == nil || d < bestDist {
			best = &snapshot[i]
			bestDist = d
		}
	}

	if best != nil && bestDist <= m.tolerance {
		logging.Component("match").Debugf("probe matched %s (distance %.4f)", best.ID, bestDist)
		return Result{
			Matched:    true,
			IdentityID: best.ID,
			Name:       best.Name,
			Distance:   bestDist,
			Confidence: encoding.Confidence(bestDist),
		}
	}

	result := Result{
		TrackLabel: m.unknowns.Resolve(probe, now),
	}
	if best != nil {
		result.Distance = bestDist
		result.Confidence = encoding.Confidence(bestDist)
	}
	return result
}

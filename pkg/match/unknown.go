package match

import (
	"fmt"
	"sync"
	"time"

	"github.com/attendly/faceattend/pkg/encoding"
	"github.com/attendly/faceattend/pkg/logging"
)

// UnknownTrack is an ephemeral label for a face that matched no enrolled
// identity. Tracks live only in memory and expire when not observed for
// the configured timeout.
type UnknownTrack struct {
	Label      string
	LastSeen   encoding.Vector
	LastSeenAt time.Time
}

// UnknownRegistry assigns and refreshes unknown-person labels. It is an
// explicit object so callers can construct and tear it down per stream or
// per test; nothing in it survives a restart.
type UnknownRegistry struct {
	mu sync.Mutex

	reIDThreshold float64
	ttl           time.Duration

	seq    int
	tracks []*UnknownTrack
}

// NewUnknownRegistry creates a registry. reIDThreshold is the looser
// distance within which a later probe counts as the same unknown person;
// ttl is how long an unobserved track survives.
func NewUnknownRegistry(reIDThreshold float64, ttl time.Duration) *UnknownRegistry {
	return &UnknownRegistry{
		reIDThreshold: reIDThreshold,
		ttl:           ttl,
	}
}

// Resolve returns the label for an unmatched probe: the nearest live track
// within the re-identification distance (refreshed in place), or a fresh
// sequential label. Tracks idle past the TTL are dropped first.
func (u *UnknownRegistry) Resolve(probe encoding.Vector, now time.Time) string {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.expireLocked(now)

	var best *UnknownTrack
	bestDist := u.reIDThreshold
	for _, track := range u.tracks {
		if d := encoding.Distance(probe, track.LastSeen); d < bestDist {
			best = track
			bestDist = d
		}
	}

	if best != nil {
		best.LastSeen = probe
		best.LastSeenAt = now
		return best.Label
	}

	u.seq++
	track := &UnknownTrack{
		Label:      fmt.Sprintf("Unknown_%d", u.seq),
		LastSeen:   probe,
		LastSeenAt: now,
	}
	u.tracks = append(u.tracks, track)
	logging.Component("match").Debugf("new unknown track %s", track.Label)
	return track.Label
}

// Active returns the number of live tracks after expiring idle ones.
func (u *UnknownRegistry) Active(now time.Time) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.expireLocked(now)
	return len(u.tracks)
}

// Clear drops every track without resetting the label sequence.
func (u *UnknownRegistry) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tracks = nil
}

func (u *UnknownRegistry) expireLocked(now time.Time) {
	if u.ttl <= 0 {
		return
	}
	kept := u.tracks[:0]
	for _, track := range u.tracks {
		if now.Sub(track.LastSeenAt) < u.ttl {
			kept = append(kept, track)
		}
	}
	u.tracks = kept
}

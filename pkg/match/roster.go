// Package match compares probe encodings against the enrolled roster and
// tracks faces that match nobody. Matching operates on a consistent
// snapshot of the roster per probe; unknown faces receive stable sequential
// labels for the lifetime of the process.
package match

import (
	"sort"
	"sync"

	"github.com/attendly/faceattend/pkg/encoding"
)

// Identity is one enrolled person with their captured encodings and the
// derived aggregate.
type Identity struct {
	ID         string
	Name       string
	ExternalID string
	Encodings  []encoding.Encoding
	Aggregated encoding.Encoding
}

// Enrolled is the matcher's view of one identity: its ID and aggregated
// encoding only.
type Enrolled struct {
	ID     string
	Name   string
	Vector encoding.Vector
}

// Roster holds the enrolled identities. All mutations and snapshot reads
// go through one mutex, so a probe never sees a partially updated set. The
// aggregate is recomputed from the full encoding set on every change.
type Roster struct {
	mu         sync.RWMutex
	identities map[string]*Identity
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{identities: make(map[string]*Identity)}
}

// Put inserts or replaces an identity, recomputing its aggregate from the
// provided encoding set.
func (r *Roster) Put(id, name, externalID string, encodings []encoding.Encoding) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.identities[id] = &Identity{
		ID:         id,
		Name:       name,
		ExternalID: externalID,
		Encodings:  encodings,
		Aggregated: encoding.Aggregate(encodings),
	}
}

// AddEncoding appends an encoding to an identity's set and recomputes the
// aggregate over the full set. Unknown identities are ignored and reported
// as false.
func (r *Roster) AddEncoding(id string, enc encoding.Encoding) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[id]
	if !ok {
		return false
	}
	identity.Encodings = append(identity.Encodings, enc)
	identity.Aggregated = encoding.Aggregate(identity.Encodings)
	return true
}

// Remove deletes an identity.
func (r *Roster) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.identities, id)
}

// Len returns the number of enrolled identities.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}

// Get returns a copy of an identity's matcher view.
func (r *Roster) Get(id string) (Enrolled, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.identities[id]
	if !ok {
		return Enrolled{}, false
	}
	return Enrolled{ID: identity.ID, Name: identity.Name, Vector: identity.Aggregated.Vector}, true
}

// Snapshot returns the enrolled identities ordered by ID. The slice is a
// copy; later roster mutations do not affect it. The ordering makes the
// matcher's tie-break deterministic instead of depending on map iteration.
func (r *Roster) Snapshot() []Enrolled {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Enrolled, 0, len(r.identities))
	for _, identity := range r.identities {
		out = append(out, Enrolled{
			ID:     identity.ID,
			Name:   identity.Name,
			Vector: identity.Aggregated.Vector,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

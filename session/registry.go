package session

import (
	"sort"
	"sync"
	"time"
)

// Info is a snapshot of one live session.
type Info struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	State        State     `json:"state"`
	Bytes        int64     `json:"bytes"`
	StartedAt    time.Time `json:"started_at"`
}

type registryEntry struct {
	connID  string
	session *Session
}

// Registry tracks the sessions currently running on this process.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Add records s as running on connection connID.
func (r *Registry) Add(connID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.ID()] = registryEntry{connID: connID, session: s}
}

// Remove forgets the session with the given id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Get returns a snapshot of one session.
func (r *Registry) Get(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Info{}, false
	}
	return e.info(), true
}

// List returns snapshots of every live session, oldest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (e registryEntry) info() Info {
	return Info{
		ID:           e.session.ID(),
		ConnectionID: e.connID,
		State:        e.session.State(),
		Bytes:        e.session.RawBytes(),
		StartedAt:    e.session.StartedAt(),
	}
}

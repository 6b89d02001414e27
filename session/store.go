package session

import (
	"context"
	"encoding/json"
	"sync"
)

// Snapshot is the serializable form of a session State.
type Snapshot struct {
	Values map[string]string   `json:"values"`
	Sites  map[string]SiteInfo `json:"sites,omitempty"`
}

// Snapshot captures the current state for persistence.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Values: make(map[string]string, len(s.values)),
		Sites:  make(map[string]SiteInfo, len(s.sites)),
	}
	for k, v := range s.values {
		snap.Values[k] = v
	}
	for id, info := range s.sites {
		snap.Sites[id] = info
	}
	return snap
}

// Restore replaces the state contents with a previously captured snapshot.
func (s *State) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]string, len(snap.Values))
	for k, v := range snap.Values {
		s.values[k] = v
	}
	s.sites = make(map[string]SiteInfo, len(snap.Sites))
	for id, info := range snap.Sites {
		s.sites[id] = info
	}
	s.siteInfo = nil
}

// Store persists session snapshots between process lifetimes, keyed by a
// caller-chosen session id.
type Store interface {
	Save(ctx context.Context, sessionID string, snap Snapshot) error
	Load(ctx context.Context, sessionID string) (Snapshot, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore is an in-process Store, mainly for tests and short-lived
// integrations.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string][]byte)}
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[sessionID] = data
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (Snapshot, bool, error) {
	m.mu.RLock()
	data, ok := m.snaps[sessionID]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, false, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, sessionID)
	return nil
}

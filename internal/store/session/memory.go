package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Entries are stored as JSON
// so callers never share maps with the store.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string][]byte
	version  map[string]int64
	lastSeen map[string]time.Time
}

// NewMemoryStore creates an in-memory store whose entries expire after ttl
// without access.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string][]byte),
		version:  make(map[string]int64),
		lastSeen: make(map[string]time.Time),
	}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	data.CreatedAt = now
	data.UpdatedAt = now
	data.Version = 1

	return s.putLocked(data, now)
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	raw, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	if now.Sub(s.lastSeen[id]) > s.ttl {
		s.deleteLocked(id)
		return nil, nil
	}
	s.lastSeen[id] = now

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.version[data.ID]
	if !ok {
		return ErrNotFound
	}
	if stored != data.Version {
		return ErrVersionConflict
	}

	now := s.now()
	data.Version++
	data.UpdatedAt = now
	return s.putLocked(data, now)
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(id)
	return nil
}

// Prune drops sessions idle for longer than the TTL and reports how many
// were removed.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, seen := range s.lastSeen {
		if now.Sub(seen) > s.ttl {
			s.deleteLocked(id)
			removed++
		}
	}
	return removed
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string][]byte)
	s.version = make(map[string]int64)
	s.lastSeen = make(map[string]time.Time)
	return nil
}

func (s *MemoryStore) putLocked(data *Data, now time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.sessions[data.ID] = raw
	s.version[data.ID] = data.Version
	s.lastSeen[data.ID] = now
	return nil
}

func (s *MemoryStore) deleteLocked(id string) {
	delete(s.sessions, id)
	delete(s.version, id)
	delete(s.lastSeen, id)
}

// RunPruner prunes expired sessions every interval until ctx is done.
func (s *MemoryStore) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Prune(); removed > 0 {
				log.Printf("[session] pruned %d expired session(s)", removed)
			}
		}
	}
}

package sessions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/zhouzirui/ocap-chat/internal/store/session"
)

// ErrBusy is returned when the browser session already has an action in
// flight.
var ErrBusy = errors.New("another request is already in progress")

// Manager loads and saves browser sessions and runs at most one mutating
// action per session at a time.
type Manager struct {
	store session.Store

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewManager wraps a session store.
func NewManager(store session.Store) *Manager {
	return &Manager{
		store:    store,
		inflight: make(map[string]struct{}),
	}
}

// Do runs fn against the session id and persists the result. A second Do
// for the same id while one is running fails fast with ErrBusy.
func (m *Manager) Do(ctx context.Context, id string, fn func(*session.Data) error) error {
	if !m.acquire(id) {
		return ErrBusy
	}
	defer m.release(id)

	data, err := m.load(ctx, id)
	if err != nil {
		return err
	}

	fnErr := fn(data)
	if err := m.store.Update(ctx, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return fnErr
}

// View runs fn for rendering. Changes made by fn are saved unless another
// action is in flight, in which case fn sees a read-only snapshot without
// its notice. The notice stays stored until a render that can save it.
func (m *Manager) View(ctx context.Context, id string, fn func(*session.Data) error) error {
	if !m.acquire(id) {
		data, err := m.load(ctx, id)
		if err != nil {
			return err
		}
		data.Notice = nil
		return fn(data)
	}
	defer m.release(id)

	data, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	fnErr := fn(data)
	if err := m.store.Update(ctx, data); err != nil {
		log.Printf("[session] failed to save session after render: %v", err)
	}
	return fnErr
}

// Busy reports whether an action is running for id.
func (m *Manager) Busy(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[id]
	return ok
}

func (m *Manager) load(ctx context.Context, id string) (*session.Data, error) {
	if id == "" {
		return nil, errors.New("missing session id")
	}

	data, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if data != nil {
		return data, nil
	}

	data = &session.Data{ID: id}
	if err := m.store.Create(ctx, data); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	log.Printf("[session] created browser session %s", shortID(id))
	return data, nil
}

func (m *Manager) acquire(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[id]; ok {
		return false
	}
	m.inflight[id] = struct{}{}
	return true
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	delete(m.inflight, id)
	m.mu.Unlock()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package convo

import (
	"sync"

	"github.com/google/uuid"

	"github.com/codediagram/backend/internal/storage"
)

// Registry is C7: the process-wide, single-process map of live sessions.
// There is no TTL; sessions live until explicitly dropped.
type Registry struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry builds a Registry whose sessions all share deps.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, sessions: make(map[string]*Session)}
}

// Create builds a new Session. If id is supplied and already present, the
// existing session is dropped first (spec.md §4.7).
func (r *Registry) Create(apiKey, providerID string, models []string, defaultModel, id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	} else if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
	}

	s := newSession(id, r.deps)
	s.Configure(apiKey, providerID, defaultModel, models)
	r.sessions[id] = s
	return s
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s, nil
}

// Drop removes a session.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// List returns every live session id.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

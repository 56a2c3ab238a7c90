package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playcat/catconsult/internal/models"
)

// Session store defaults. Sessions idle longer than the TTL are reaped by a
// background sweep; the capacity bound evicts the least recently active
// session when a new one would exceed it.
const (
	DefaultSessionTTL      = time.Hour
	DefaultSessionCapacity = 10000

	sweepDivisor = 4
)

// SessionOpts holds configuration for the session store.
type SessionOpts struct {
	TTL      time.Duration
	Capacity int
}

// SessionOption configures the session store.
type SessionOption func(*SessionOpts)

// WithSessionTTL sets the idle timeout after which a session is evicted.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(o *SessionOpts) { o.TTL = ttl }
}

// WithSessionCapacity bounds how many sessions may exist at once.
func WithSessionCapacity(capacity int) SessionOption {
	return func(o *SessionOpts) { o.Capacity = capacity }
}

// sessionEntry pairs a session with its serialization lock. All mutation of
// one session goes through the entry mutex, so concurrent requests bearing
// the same session id cannot corrupt collected data or lose transitions.
type sessionEntry struct {
	mu      sync.Mutex
	session *models.Session
}

// SessionStore owns all live sessions. Callers never receive a pointer into
// the store; reads return copies and writes go through Mutate.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	capacity int

	stopOnce sync.Once
	stop     chan struct{}

	now func() time.Time
}

// NewSessionStore creates a session store with the given options.
func NewSessionStore(opts ...SessionOption) *SessionStore {
	cfg := SessionOpts{TTL: DefaultSessionTTL, Capacity: DefaultSessionCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultSessionCapacity
	}
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      cfg.TTL,
		capacity: cfg.Capacity,
		stop:     make(chan struct{}),
		now:      time.Now,
	}
}

// Start creates a new session positioned at startStepID and returns a copy.
func (s *SessionStore) Start(startStepID string) models.Session {
	now := s.now()
	session := &models.Session{
		SessionID:     uuid.NewString(),
		CurrentStepID: startStepID,
		History:       []models.ChatMessage{},
		CollectedData: make(map[string]interface{}),
		CreatedAt:     now,
		LastActiveAt:  now,
	}

	s.mu.Lock()
	if len(s.sessions) >= s.capacity {
		s.evictOldestLocked()
	}
	s.sessions[session.SessionID] = &sessionEntry{session: session}
	s.mu.Unlock()

	slog.Debug("SessionStore.Start: session created", "sessionID", session.SessionID, "step", startStepID)
	return copySession(session)
}

// Get returns a snapshot of the session, if it exists.
func (s *SessionStore) Get(sessionID string) (models.Session, bool) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return models.Session{}, false
	}

	entry.mu.Lock()
	snapshot := copySession(entry.session)
	entry.mu.Unlock()
	return snapshot, true
}

// Mutate applies fn to the session under its lock and returns a snapshot of
// the result. The lock is held only for the in-memory mutation; callers must
// not perform I/O inside fn.
func (s *SessionStore) Mutate(sessionID string, fn func(*models.Session) error) (models.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return models.Session{}, models.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := fn(entry.session); err != nil {
		return copySession(entry.session), err
	}
	entry.session.LastActiveAt = s.now()
	return copySession(entry.session), nil
}

// Clear removes a session. Deleting an unknown id is a no-op.
func (s *SessionStore) Clear(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run sweeps expired sessions until Stop is called.
func (s *SessionStore) Run() {
	interval := s.ttl / sweepDivisor
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := s.SweepExpired(); evicted > 0 {
				slog.Info("SessionStore.Run: expired sessions evicted", "count", evicted)
			}
		case <-s.stop:
			return
		}
	}
}

// Stop terminates the sweep loop. Safe to call more than once.
func (s *SessionStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// SweepExpired removes every session idle longer than the TTL and returns
// how many were evicted.
func (s *SessionStore) SweepExpired() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, entry := range s.sessions {
		if entry.session.LastActiveAt.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// evictOldestLocked removes the least recently active session. Caller holds
// the store lock.
func (s *SessionStore) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, entry := range s.sessions {
		if oldestID == "" || entry.session.LastActiveAt.Before(oldestAt) {
			oldestID = id
			oldestAt = entry.session.LastActiveAt
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		slog.Warn("SessionStore: capacity reached, evicting least recently active session", "sessionID", oldestID)
	}
}

// copySession clones a session so callers cannot mutate store-owned state.
func copySession(src *models.Session) models.Session {
	dst := *src
	dst.History = make([]models.ChatMessage, len(src.History))
	copy(dst.History, src.History)
	dst.CollectedData = make(map[string]interface{}, len(src.CollectedData))
	for k, v := range src.CollectedData {
		dst.CollectedData[k] = v
	}
	return dst
}

package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// CookieName carries the session id
const CookieName = "vision_session"

// Session is the per-browser state: selected model, runtime credential and
// the in-flight guard for analyses.
type Session struct {
	ID string

	mu         sync.RWMutex
	model      string
	credential string
	lastSeen   time.Time

	inFlight atomic.Bool
}

// Model returns the selected model key
func (s *Session) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetModel selects a model key
func (s *Session) SetModel(key string) {
	s.mu.Lock()
	s.model = key
	s.mu.Unlock()
}

// Credential returns the runtime API key, empty when none was entered
func (s *Session) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// SetCredential stores a runtime API key
func (s *Session) SetCredential(key string) {
	s.mu.Lock()
	s.credential = strings.TrimSpace(key)
	s.mu.Unlock()
}

// HasCredential reports whether a runtime API key is stored
func (s *Session) HasCredential() bool {
	return s.Credential() != ""
}

// TryBegin marks an analysis as in flight. It returns false when one is
// already running for this session.
func (s *Session) TryBegin() bool {
	return s.inFlight.CompareAndSwap(false, true)
}

// End clears the in-flight mark
func (s *Session) End() {
	s.inFlight.Store(false)
}

// Busy reports whether an analysis is in flight
func (s *Session) Busy() bool {
	return s.inFlight.Load()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastSeen) > ttl
}

// Manager holds sessions in memory and expires idle ones
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	ttl          time.Duration
	defaultModel string
	now          func() time.Time
}

// NewManager creates a session manager
func NewManager(ttl time.Duration, defaultModel string) *Manager {
	return &Manager{
		sessions:     make(map[string]*Session),
		ttl:          ttl,
		defaultModel: defaultModel,
		now:          time.Now,
	}
}

// Get returns a live session and refreshes its idle timer
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(now, m.ttl) && !s.Busy() {
		delete(m.sessions, id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Create starts a new session with the default model selected
func (m *Manager) Create() *Session {
	s := &Session{
		ID:    uuid.NewString(),
		model: m.defaultModel,
	}
	s.touch(m.now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// GetOrCreate returns the session for id, creating one when it is unknown
// or expired. created reports whether a new cookie must be issued.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	if s, ok := m.Get(id); ok {
		return s, false
	}
	return m.Create(), true
}

// Sweep removes expired idle sessions and returns how many were removed
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.expired(now, m.ttl) && !s.Busy() {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// TTL returns the idle timeout
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Run sweeps periodically until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Package session holds per-respondent flow state in memory. A session owns
// its AnswerSet and Position exclusively; all mutation goes through the flow
// sequencer while the session's lock is held.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonesrussell/quiz-funnel/internal/domain"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Session is one respondent's in-progress flow.
type Session struct {
	ID         string
	DeviceHash string
	Answers    domain.AnswerSet
	Pos        domain.Position

	// mu serializes all reads and writes of Answers and Pos.
	mu sync.Mutex

	// seenMu guards lastSeen separately from mu: the idle timer must stay
	// readable while a request holds the main lock across a slow webhook
	// or classification call.
	seenMu   sync.Mutex
	lastSeen time.Time
}

// Lock acquires the session's mutation lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's mutation lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// touch refreshes the idle timer.
func (s *Session) touch() {
	s.seenMu.Lock()
	s.lastSeen = time.Now()
	s.seenMu.Unlock()
}

// idle returns how long the session has gone without a request.
func (s *Session) idle(now time.Time) time.Duration {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	return now.Sub(s.lastSeen)
}

// Manager owns the session map and evicts idle sessions after a TTL.
type Manager struct {
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	onEvict  func(id string)
	done     chan struct{}
	once     sync.Once
}

// cleanupInterval is how often idle sessions are evicted.
const cleanupInterval = time.Minute

// NewManager creates a manager and starts its eviction goroutine.
func NewManager(ttl time.Duration) *Manager {
	m := &Manager{
		ttl:      ttl,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Create registers a new session with the given device hash and initial
// position.
func (m *Manager) Create(deviceHash string, pos domain.Position) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		DeviceHash: deviceHash,
		Answers:    domain.NewAnswerSet(),
		Pos:        pos,
		lastSeen:   time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns the session for an id and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	s.touch()
	return s, nil
}

// OnEvict registers a callback invoked with the id of every evicted session,
// outside any lock. Owners of per-session resources use it to release them
// when an abandoned session expires.
func (m *Manager) OnEvict(fn func(id string)) {
	m.mu.Lock()
	m.onEvict = fn
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop terminates the eviction goroutine. Safe to call multiple times.
func (m *Manager) Stop() {
	m.once.Do(func() {
		close(m.done)
	})
}

func (m *Manager) cleanupLoop() {
	interval := cleanupInterval
	if m.ttl < interval {
		interval = m.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.done:
			return
		}
	}
}

func (m *Manager) evictIdle() {
	now := time.Now()

	m.mu.Lock()
	var evicted []string
	for id, s := range m.sessions {
		if s.idle(now) > m.ttl {
			delete(m.sessions, id)
			evicted = append(evicted, id)
		}
	}
	fn := m.onEvict
	m.mu.Unlock()

	if fn == nil {
		return
	}
	for _, id := range evicted {
		fn(id)
	}
}

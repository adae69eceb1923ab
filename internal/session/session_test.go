package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jonesrussell/quiz-funnel/internal/domain"
	"github.com/jonesrussell/quiz-funnel/internal/session"
)

func TestManager_CreateAndGet(t *testing.T) {
	m := session.NewManager(time.Hour)
	defer m.Stop()

	s := m.Create("devhash", domain.Position{State: domain.StateWelcome})
	if s.ID == "" {
		t.Fatal("expected a session id")
	}
	if s.Pos.State != domain.StateWelcome {
		t.Fatalf("initial state: got %v, want welcome", s.Pos.State)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != s {
		t.Fatal("Get returned a different session")
	}
}

func TestManager_UnknownID(t *testing.T) {
	m := session.NewManager(time.Hour)
	defer m.Stop()

	_, err := m.Get("nope")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_DistinctIDs(t *testing.T) {
	m := session.NewManager(time.Hour)
	defer m.Stop()

	a := m.Create("dev-a", domain.Position{})
	b := m.Create("dev-b", domain.Position{})

	if a.ID == b.ID {
		t.Fatal("two sessions share an id")
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", m.Len())
	}
}

func TestManager_EvictsIdleSessions(t *testing.T) {
	m := session.NewManager(20 * time.Millisecond)
	defer m.Stop()

	s := m.Create("dev", domain.Position{})

	deadline := time.Now().Add(time.Second)
	for m.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("idle session was never evicted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := m.Get(s.ID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after eviction, got %v", err)
	}
}

func TestManager_OnEvictFiresForExpiredSessions(t *testing.T) {
	m := session.NewManager(20 * time.Millisecond)
	defer m.Stop()

	evicted := make(chan string, 1)
	m.OnEvict(func(id string) { evicted <- id })

	s := m.Create("dev", domain.Position{})

	select {
	case id := <-evicted:
		if id != s.ID {
			t.Fatalf("evicted id: got %q, want %q", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("eviction callback never fired")
	}
}

func TestManager_EvictionProceedsWhileSessionLocked(t *testing.T) {
	m := session.NewManager(20 * time.Millisecond)
	defer m.Stop()

	// A request holding the session lock across a slow downstream call must
	// not stall eviction or other respondents.
	s := m.Create("dev", domain.Position{})
	s.Lock()
	defer s.Unlock()

	deadline := time.Now().Add(time.Second)
	for m.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("locked session stalled eviction")
		}
		time.Sleep(5 * time.Millisecond)
	}

	other := m.Create("dev-2", domain.Position{})
	if _, err := m.Get(other.ID); err != nil {
		t.Fatalf("Get while another session is locked: %v", err)
	}
}

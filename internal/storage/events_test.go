package storage_test

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonesrussell/quiz-funnel/internal/domain"
	"github.com/jonesrussell/quiz-funnel/internal/logger"
	"github.com/jonesrussell/quiz-funnel/internal/storage"
)

func newTestEvent() domain.FunnelEvent {
	return domain.FunnelEvent{
		SessionID:  "sess-1",
		DeviceHash: "a1b2c3",
		Outcome:    domain.OutcomeSubmitted,
		OccurredAt: time.Now(),
	}
}

func TestEventBuffer_Send(t *testing.T) {
	buf := storage.NewEventBuffer(10)
	defer buf.Close()

	if !buf.Send(newTestEvent()) {
		t.Fatal("expected Send to succeed on non-full buffer")
	}
	if buf.Len() != 1 {
		t.Fatalf("expected length 1, got %d", buf.Len())
	}
}

func TestEventBuffer_SendFull(t *testing.T) {
	buf := storage.NewEventBuffer(1)
	defer buf.Close()

	if !buf.Send(newTestEvent()) {
		t.Fatal("expected first Send to succeed")
	}

	// Second send should fail (non-blocking).
	if buf.Send(newTestEvent()) {
		t.Fatal("expected Send to return false when buffer is full")
	}
}

func TestEventStore_FlushOnStop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO funnel_events").
		WillReturnResult(sqlmock.NewResult(0, 2))

	buf := storage.NewEventBuffer(10)
	store := storage.NewEventStore(db, buf, logger.NewNop(), time.Hour, 100)
	store.Start()

	buf.Send(newTestEvent())
	buf.Send(newTestEvent())

	// Stop drains the channel and flushes the remainder.
	store.Stop()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEventStore_FlushOnThreshold(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO funnel_events").
		WillReturnResult(sqlmock.NewResult(0, 2))

	buf := storage.NewEventBuffer(10)
	store := storage.NewEventStore(db, buf, logger.NewNop(), time.Hour, 2)
	store.Start()
	defer store.Stop()

	buf.Send(newTestEvent())
	buf.Send(newTestEvent())

	deadline := time.Now().Add(time.Second)
	for buf.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("threshold flush never drained the buffer")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

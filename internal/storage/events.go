package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/quiz-funnel/internal/domain"
	"github.com/jonesrussell/quiz-funnel/internal/logger"
)

const (
	// columnsPerRow is the number of columns inserted per funnel event row.
	columnsPerRow = 5

	// insertBatchSize is the maximum number of rows per INSERT statement.
	insertBatchSize = 50

	// flushTimeout is the context timeout for each flush operation.
	flushTimeout = 5 * time.Second
)

// EventBuffer is a channel-based buffer for non-blocking funnel event
// ingestion. Handlers enqueue; the EventStore drains.
type EventBuffer struct {
	events chan domain.FunnelEvent
	closed chan struct{}
	once   sync.Once
}

// NewEventBuffer creates a buffer with a buffered channel of the given
// capacity.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{
		events: make(chan domain.FunnelEvent, capacity),
		closed: make(chan struct{}),
	}
}

// Send performs a non-blocking send of an event into the buffer.
// It returns false if the buffer channel is full.
func (b *EventBuffer) Send(event domain.FunnelEvent) bool {
	select {
	case b.events <- event:
		return true
	default:
		return false
	}
}

// Len returns the number of events currently in the buffer channel.
func (b *EventBuffer) Len() int {
	return len(b.events)
}

// Close signals the buffer to stop accepting events.
// It is safe to call multiple times.
func (b *EventBuffer) Close() {
	b.once.Do(func() {
		close(b.closed)
	})
}

// EventStore manages buffered writes of funnel events to PostgreSQL.
type EventStore struct {
	db             *sql.DB
	buffer         *EventBuffer
	log            logger.Logger
	flushInterval  time.Duration
	flushThreshold int
	wg             sync.WaitGroup
}

// NewEventStore creates a store that reads events from buffer and
// batch-inserts them.
func NewEventStore(
	db *sql.DB,
	buffer *EventBuffer,
	log logger.Logger,
	flushInterval time.Duration,
	flushThreshold int,
) *EventStore {
	return &EventStore{
		db:             db,
		buffer:         buffer,
		log:            log,
		flushInterval:  flushInterval,
		flushThreshold: flushThreshold,
	}
}

// Start launches the background goroutine that reads events and flushes
// batches.
func (s *EventStore) Start() {
	s.wg.Add(1)
	go s.flushLoop()
}

// Stop signals the buffer to close and waits for the flush goroutine to
// finish.
func (s *EventStore) Stop() {
	s.buffer.Close()
	s.wg.Wait()
}

// flushLoop accumulates a batch and flushes when it reaches flushThreshold
// or the flushInterval ticker fires.
func (s *EventStore) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.FunnelEvent, 0, s.flushThreshold)

	for {
		select {
		case event := <-s.buffer.events:
			batch = append(batch, event)
			if len(batch) >= s.flushThreshold {
				s.flush(batch)
				batch = make([]domain.FunnelEvent, 0, s.flushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = make([]domain.FunnelEvent, 0, s.flushThreshold)
			}

		case <-s.buffer.closed:
			s.drain(&batch)
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

// drain reads all remaining events from the buffer channel into the batch.
func (s *EventStore) drain(batch *[]domain.FunnelEvent) {
	for {
		select {
		case event := <-s.buffer.events:
			*batch = append(*batch, event)
		default:
			return
		}
	}
}

// flush writes a batch of events to PostgreSQL in chunks of insertBatchSize.
func (s *EventStore) flush(batch []domain.FunnelEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for start := 0; start < len(batch); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(batch) {
			end = len(batch)
		}

		if err := s.batchInsert(ctx, batch[start:end]); err != nil {
			s.log.Error("Failed to insert funnel events",
				logger.Error(err),
				logger.Int("batch_size", end-start),
			)
		}
	}

	s.log.Debug("Flushed funnel events",
		logger.Int("total", len(batch)),
	)
}

// batchInsert builds and executes a single INSERT statement with multiple
// value tuples.
func (s *EventStore) batchInsert(ctx context.Context, events []domain.FunnelEvent) error {
	if len(events) == 0 {
		return nil
	}

	args := make([]any, 0, len(events)*columnsPerRow)
	var sb strings.Builder

	sb.WriteString("INSERT INTO funnel_events (session_id, device_hash, outcome, detail, occurred_at) VALUES ")

	for i := range events {
		if i > 0 {
			sb.WriteString(", ")
		}

		base := i * columnsPerRow
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5)

		args = append(args,
			events[i].SessionID, events[i].DeviceHash, events[i].Outcome,
			events[i].Detail, events[i].OccurredAt,
		)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("exec batch insert: %w", err)
	}

	return nil
}

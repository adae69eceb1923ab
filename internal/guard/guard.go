// Package guard enforces single-submission semantics: a per-session
// in-flight lock against rapid repeated submits, and a per-device
// cross-session check against a persisted submission record.
package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/quiz-funnel/internal/domain"
	"github.com/jonesrussell/quiz-funnel/internal/logger"
)

// SubmissionStore persists submission records keyed by device. Get returns
// (nil, nil) when no record exists.
type SubmissionStore interface {
	Get(ctx context.Context, deviceHash string) (*domain.SubmissionRecord, error)
	Put(ctx context.Context, deviceHash string, rec domain.SubmissionRecord) error
	Delete(ctx context.Context, deviceHash string) error
}

// Verdict is the outcome of the cross-session device check.
type Verdict int

const (
	// VerdictProceed means no valid record exists; the flow starts normally.
	VerdictProceed Verdict = iota
	// VerdictThankYou reroutes to the thank-you terminal.
	VerdictThankYou
	// VerdictDisqualified reroutes to the disqualified terminal.
	VerdictDisqualified
)

// Guard wraps the two submission-suppression layers.
type Guard struct {
	store    SubmissionStore
	window   time.Duration
	cooldown time.Duration
	log      logger.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// New creates a guard over the given store. window is the cross-session
// validity window; cooldown is how long the in-flight flag stays held after
// a submit resolves.
func New(store SubmissionStore, window, cooldown time.Duration, log logger.Logger) *Guard {
	return &Guard{
		store:    store,
		window:   window,
		cooldown: cooldown,
		log:      log,
		inflight: make(map[string]bool),
	}
}

// HashDeviceKey derives the storage key from a raw device key. Raw keys
// never reach the store.
func HashDeviceKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CheckDevice runs the cross-session layer for a device at flow start. A
// record inside the validity window reroutes to its stored terminal; a stale
// record is deleted and the flow proceeds. Store read failures proceed
// normally so a degraded database never locks respondents out.
func (g *Guard) CheckDevice(ctx context.Context, deviceHash string, now time.Time) (Verdict, *domain.SubmissionRecord) {
	rec, err := g.store.Get(ctx, deviceHash)
	if err != nil {
		g.log.Warn("Submission record lookup failed", logger.Error(err))
		return VerdictProceed, nil
	}
	if rec == nil {
		return VerdictProceed, nil
	}

	if rec.Expired(now, g.window) {
		if delErr := g.store.Delete(ctx, deviceHash); delErr != nil {
			g.log.Warn("Stale submission record not cleared", logger.Error(delErr))
		}
		return VerdictProceed, nil
	}

	if rec.DisqualificationReason != "" {
		return VerdictDisqualified, rec
	}
	return VerdictThankYou, rec
}

// BeginSubmit acquires the in-flight flag for a session. It returns false
// while a submit for the same session is still in flight or cooling down;
// such calls are silently ignored by the caller.
func (g *Guard) BeginSubmit(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight[sessionID] {
		return false
	}
	g.inflight[sessionID] = true
	return true
}

// EndSubmit schedules release of the in-flight flag after the cool-down,
// regardless of whether the webhook call succeeded.
func (g *Guard) EndSubmit(sessionID string) {
	time.AfterFunc(g.cooldown, func() {
		g.mu.Lock()
		delete(g.inflight, sessionID)
		g.mu.Unlock()
	})
}

// RecordOutcome persists the submission record for a terminal outcome.
// reason is empty for a successful submission.
func (g *Guard) RecordOutcome(ctx context.Context, deviceHash, reason string, now time.Time) error {
	rec := domain.SubmissionRecord{
		SubmittedAt:            now,
		DisqualificationReason: reason,
	}
	if err := g.store.Put(ctx, deviceHash, rec); err != nil {
		return fmt.Errorf("persist submission record: %w", err)
	}
	return nil
}

// Window returns the configured cross-session validity window.
func (g *Guard) Window() time.Duration {
	return g.window
}

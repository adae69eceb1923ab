package wordpress

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/quiz-funnel/internal/domain"
)

// Scheduler debounces URL observations and runs a classification only for
// the value stable at the end of a quiet period. Each observation bumps a
// generation number; a resolution arriving for a stale generation is
// discarded, so a superseded request can never overwrite the result of the
// current URL.
type Scheduler struct {
	detector *Detector
	debounce time.Duration

	mu     sync.Mutex
	gen    uint64
	url    string
	latest domain.SiteCheck
	timer  *time.Timer
}

// NewScheduler creates a scheduler over the given detector.
func NewScheduler(detector *Detector, debounce time.Duration) *Scheduler {
	return &Scheduler{
		detector: detector,
		debounce: debounce,
	}
}

// Observe records a keystroke-level URL change. The debounce timer restarts
// on every call; only the last observed value is ever classified. Until that
// classification resolves, Current reports the neutral not-yet-checked
// state, never a previous URL's verdict.
func (s *Scheduler) Observe(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.url = url
	s.latest = domain.SiteCheck{}
	gen := s.gen

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.fire(gen, url)
	})
}

// fire runs the classification for one debounced observation. The result is
// kept only when no newer observation arrived while the request was in
// flight.
func (s *Scheduler) fire(gen uint64, url string) {
	res := s.detector.Classify(context.Background(), url)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// Superseded; the completed request's result is discarded.
		return
	}
	s.latest = res
}

// Current returns the most recently observed URL and the verdict of its
// debounced classification, if it has resolved.
func (s *Scheduler) Current() (string, domain.SiteCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, s.latest
}

// Stop cancels any pending debounce timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

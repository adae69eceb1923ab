// Package wordpress implements the site platform classifier: a layered,
// network-based heuristic that decides whether a given URL runs WordPress.
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/quiz-funnel/internal/domain"
	"github.com/jonesrussell/quiz-funnel/internal/logger"
)

// errSiteUnreachable is the user-facing error string for a site that failed
// every strategy with genuine network errors.
const errSiteUnreachable = "site unreachable"

// maxBodyBytes caps how much of a page is scanned for markers.
const maxBodyBytes = 1 << 20

// restProbePath is the well-known WordPress REST API root.
const restProbePath = "wp-json/wp/v2/"

// htmlMarkers are WordPress fingerprints scanned case-insensitively in the
// page body. Any single match is a positive.
var htmlMarkers = []string{
	"wp-content/themes",
	"wp-content/plugins",
	"wp-includes/js",
	"wp-json/wp/v2",
	"wp_enqueue_script",
	`class="wp-`,
}

// generatorMeta matches the WordPress generator meta tag.
var generatorMeta = regexp.MustCompile(`(?i)<meta[^>]*generator[^>]*wordpress`)

// pathHints are WordPress path segments; a URL already containing one is a
// positive without any network call.
var pathHints = []string{"/wp-content/", "/wp-json/", "/wp-includes/"}

// Transport defaults for the detection client.
const (
	defaultMaxIdleConns    = 100
	defaultIdleConnTimeout = 90 * time.Second
	defaultTLSHandshake    = 10 * time.Second
)

// NewClient creates the HTTP client used for detection probes. The timeout
// bounds every strategy so a hung site cannot wedge a classification.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        defaultMaxIdleConns,
			IdleConnTimeout:     defaultIdleConnTimeout,
			TLSHandshakeTimeout: defaultTLSHandshake,
		},
	}
}

// cacheEntry pairs a verdict with its storage time for TTL eviction.
type cacheEntry struct {
	check    domain.SiteCheck
	storedAt time.Time
}

// Detector classifies URLs and caches verdicts by the raw URL string as
// entered. Concurrent callers for the same URL share one round trip. Cached
// verdicts expire after a TTL; classification is reachable by anonymous
// callers, so the cache must not grow without bound.
type Detector struct {
	client *http.Client
	log    logger.Logger
	ttl    time.Duration

	mu       sync.Mutex
	cache    map[string]cacheEntry
	inflight map[string]chan struct{}

	done chan struct{}
	once sync.Once
}

// NewDetector creates a detector using the given HTTP client and starts its
// cache eviction goroutine. Call Stop to terminate it.
func NewDetector(client *http.Client, ttl time.Duration, log logger.Logger) *Detector {
	d := &Detector{
		client:   client,
		log:      log,
		ttl:      ttl,
		cache:    make(map[string]cacheEntry),
		inflight: make(map[string]chan struct{}),
		done:     make(chan struct{}),
	}
	go d.cleanupLoop()
	return d
}

// Stop terminates the cache eviction goroutine. Safe to call multiple times.
func (d *Detector) Stop() {
	d.once.Do(func() {
		close(d.done)
	})
}

func (d *Detector) cleanupLoop() {
	ticker := time.NewTicker(d.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.evictExpired()
		case <-d.done:
			return
		}
	}
}

func (d *Detector) evictExpired() {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	for raw, e := range d.cache {
		if _, busy := d.inflight[raw]; busy {
			continue
		}
		if now.Sub(e.storedAt) > d.ttl {
			delete(d.cache, raw)
		}
	}
}

// CacheSize returns the number of cached verdicts.
func (d *Detector) CacheSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}

// NormalizeURL trims the input and prefixes https:// when the scheme is
// missing.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return u
}

// Result returns the cached state for a raw URL string without triggering a
// classification. Unknown URLs report the neutral not-yet-checked state.
func (d *Detector) Result(raw string) domain.SiteCheck {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache[raw].check
}

// Invalidate discards any cached result for the raw URL string.
func (d *Detector) Invalidate(raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[raw]; !busy {
		delete(d.cache, raw)
	}
}

// Classify returns the verdict for the raw URL, running the layered
// detection strategies on a cache miss. Results are cached by the exact
// string entered until the TTL elapses; a second call with an unchanged URL
// inside that window issues no network traffic.
func (d *Detector) Classify(ctx context.Context, raw string) domain.SiteCheck {
	if strings.TrimSpace(raw) == "" {
		return domain.SiteCheck{}
	}

	d.mu.Lock()
	if e, ok := d.cache[raw]; ok && e.check.Checked && time.Since(e.storedAt) <= d.ttl {
		d.mu.Unlock()
		return e.check
	}
	if ch, busy := d.inflight[raw]; busy {
		d.mu.Unlock()
		<-ch
		return d.Result(raw)
	}
	ch := make(chan struct{})
	d.inflight[raw] = ch
	d.cache[raw] = cacheEntry{check: domain.SiteCheck{Loading: true}, storedAt: time.Now()}
	d.mu.Unlock()

	res := d.classify(ctx, raw)

	d.mu.Lock()
	d.cache[raw] = cacheEntry{check: res, storedAt: time.Now()}
	delete(d.inflight, raw)
	d.mu.Unlock()
	close(ch)

	return res
}

// classify runs the strategies in order, short-circuiting on the first
// positive. A strategy that fails with a network error falls through to the
// next; only when every strategy came up empty and a network error occurred
// on both probes is the result an error state rather than a definite
// negative.
func (d *Detector) classify(ctx context.Context, raw string) domain.SiteCheck {
	target := NormalizeURL(raw)

	positive, htmlErr := d.scanHTML(ctx, target)
	if positive {
		return domain.SiteCheck{Checked: true, IsWordPress: true}
	}

	positive, probeErr := d.probeREST(ctx, target)
	if positive {
		return domain.SiteCheck{Checked: true, IsWordPress: true}
	}

	if hasWordPressPath(target) {
		return domain.SiteCheck{Checked: true, IsWordPress: true}
	}

	if htmlErr != nil && probeErr != nil {
		d.log.Warn("WordPress detection failed",
			logger.String("url", target),
			logger.Error(probeErr),
		)
		return domain.SiteCheck{Checked: true, Err: errSiteUnreachable}
	}

	return domain.SiteCheck{Checked: true, IsWordPress: false}
}

// scanHTML fetches the page and scans the body for WordPress fingerprints.
// A non-2xx response is a reachable negative, not an error.
func (d *Detector) scanHTML(ctx context.Context, target string) (bool, error) {
	body, err := d.get(ctx, target)
	if err != nil {
		return false, err
	}
	if body == "" {
		return false, nil
	}

	lowered := strings.ToLower(body)
	for _, marker := range htmlMarkers {
		if strings.Contains(lowered, marker) {
			return true, nil
		}
	}
	return generatorMeta.MatchString(body), nil
}

// probeREST requests the well-known REST API root and checks the response
// for the WordPress API shape: namespace/routes keys or a list.
func (d *Detector) probeREST(ctx context.Context, target string) (bool, error) {
	apiURL := target
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	apiURL += restProbePath

	body, err := d.get(ctx, apiURL)
	if err != nil {
		return false, err
	}
	if body == "" {
		return false, nil
	}

	var payload any
	if jsonErr := json.Unmarshal([]byte(body), &payload); jsonErr != nil {
		return false, nil
	}

	switch v := payload.(type) {
	case map[string]any:
		_, hasNamespace := v["namespace"]
		_, hasRoutes := v["routes"]
		return hasNamespace || hasRoutes, nil
	case []any:
		return true, nil
	default:
		return false, nil
	}
}

// get issues a single GET and returns the body, "" for a non-2xx response,
// or an error for a transport-level failure.
func (d *Detector) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// hasWordPressPath reports whether the URL itself already carries a
// WordPress path segment.
func hasWordPressPath(target string) bool {
	lowered := strings.ToLower(target)
	for _, hint := range pathHints {
		if strings.Contains(lowered, hint) {
			return true
		}
	}
	return false
}

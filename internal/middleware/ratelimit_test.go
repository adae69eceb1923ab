package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/quiz-funnel/internal/middleware"
)

const testRateLimit = 3

func newLimitedRouter(maxRequests int, done <-chan struct{}) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RateLimiter(maxRequests, time.Minute, done))
	r.POST("/submit", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func doSubmit(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/submit", http.NoBody)
	req.RemoteAddr = remoteAddr
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	r := newLimitedRouter(testRateLimit, done)

	if w := doSubmit(r, "1.2.3.4:1234"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	r := newLimitedRouter(testRateLimit, done)

	for i := 0; i < testRateLimit; i++ {
		if w := doSubmit(r, "1.2.3.4:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	// This should be rate limited
	if w := doSubmit(r, "1.2.3.4:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	r := newLimitedRouter(1, done)

	// First IP uses its one allowed request
	if w := doSubmit(r, "1.1.1.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("IP1: expected 200, got %d", w.Code)
	}

	// Second IP should still be allowed
	if w := doSubmit(r, "2.2.2.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("IP2: expected 200, got %d", w.Code)
	}
}

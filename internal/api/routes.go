package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/quiz-funnel/internal/config"
	"github.com/jonesrussell/quiz-funnel/internal/handler"
	"github.com/jonesrussell/quiz-funnel/internal/metrics"
	"github.com/jonesrussell/quiz-funnel/internal/middleware"
)

// SetupRoutes configures all API routes. done bounds the lifetime of the
// rate limiter's cleanup goroutine.
func SetupRoutes(
	router *gin.Engine,
	quizHandler *handler.QuizHandler,
	m *metrics.Metrics,
	cfg *config.Config,
	done <-chan struct{},
) {
	healthHandler := handler.NewHealthHandler(cfg.Service.Name, cfg.Service.Version)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	rateLimitWindow := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sessions", quizHandler.CreateSession)
		v1.POST("/sessions/:id/begin", quizHandler.Begin)
		v1.GET("/sessions/:id", quizHandler.GetState)
		v1.POST("/sessions/:id/answers", quizHandler.Answer)
		v1.POST("/sessions/:id/previous", quizHandler.Previous)

		// Classification triggers outbound probes and feeds the verdict
		// cache from unauthenticated input; it gets its own per-IP rate
		// limit.
		classify := v1.Group("")
		classify.Use(middleware.RateLimiter(cfg.RateLimit.MaxChecksPerMinute, rateLimitWindow, done))
		classify.GET("/classify", quizHandler.Classify)

		// Submission carries the outbound webhook call; it gets its own
		// per-IP rate limit.
		submit := v1.Group("")
		submit.Use(middleware.RateLimiter(cfg.RateLimit.MaxSubmitsPerMinute, rateLimitWindow, done))
		submit.POST("/sessions/:id/submit", quizHandler.Submit)
	}
}

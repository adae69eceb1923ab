// Package handler exposes the qualification flow over HTTP.
package handler

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/quiz-funnel/internal/domain"
	"github.com/jonesrussell/quiz-funnel/internal/enrich"
	"github.com/jonesrussell/quiz-funnel/internal/flow"
	"github.com/jonesrussell/quiz-funnel/internal/guard"
	"github.com/jonesrussell/quiz-funnel/internal/logger"
	"github.com/jonesrussell/quiz-funnel/internal/metrics"
	"github.com/jonesrussell/quiz-funnel/internal/session"
	"github.com/jonesrussell/quiz-funnel/internal/storage"
	"github.com/jonesrussell/quiz-funnel/internal/webhook"
	"github.com/jonesrussell/quiz-funnel/internal/wordpress"
)

// Submission result labels for the submissions counter.
const (
	resultDelivered = "delivered"
	resultFailed    = "failed"
	resultDuplicate = "duplicate"
)

// QuizHandler wires the flow sequencer, guard, classifier and webhook into
// the HTTP API.
type QuizHandler struct {
	sequencer *flow.Sequencer
	sessions  *session.Manager
	guard     *guard.Guard
	detector  *wordpress.Detector
	webhook   *webhook.Client
	geo       *enrich.GeoClient
	events    *storage.EventBuffer
	metrics   *metrics.Metrics
	log       logger.Logger
	debounce  time.Duration

	// schedulers holds one debounced classification scheduler per session;
	// the blog-link field may be re-answered on every keystroke.
	mu         sync.Mutex
	schedulers map[string]*wordpress.Scheduler
}

// NewQuizHandler creates a QuizHandler with the given dependencies.
func NewQuizHandler(
	sequencer *flow.Sequencer,
	sessions *session.Manager,
	g *guard.Guard,
	detector *wordpress.Detector,
	wh *webhook.Client,
	geo *enrich.GeoClient,
	events *storage.EventBuffer,
	m *metrics.Metrics,
	log logger.Logger,
	debounce time.Duration,
) *QuizHandler {
	h := &QuizHandler{
		sequencer:  sequencer,
		sessions:   sessions,
		guard:      g,
		detector:   detector,
		webhook:    wh,
		geo:        geo,
		events:     events,
		metrics:    m,
		log:        log,
		debounce:   debounce,
		schedulers: make(map[string]*wordpress.Scheduler),
	}

	// Abandoned sessions are TTL-evicted without ever reaching a terminal
	// state; their schedulers must be released with them.
	sessions.OnEvict(h.releaseScheduler)

	return h
}

// ActiveSchedulers returns the number of live per-session debounce
// schedulers.
func (h *QuizHandler) ActiveSchedulers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.schedulers)
}

type createSessionRequest struct {
	DeviceKey string `json:"device_key" binding:"required"`
}

type answerRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

type submitRequest struct {
	PageURL string `json:"page_url"`
}

// CreateSession registers a new session. The cross-session device check runs
// here: a valid prior submission record reroutes the session straight to its
// stored terminal, bypassing Welcome.
func (h *QuizHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_key is required"})
		return
	}

	deviceHash := guard.HashDeviceKey(req.DeviceKey)
	pos := domain.Position{State: domain.StateWelcome}

	verdict, rec := h.guard.CheckDevice(c.Request.Context(), deviceHash, time.Now())
	switch verdict {
	case guard.VerdictThankYou:
		pos = domain.Position{State: domain.StateAlreadySubmitted}
		h.metrics.RepeatVisits.WithLabelValues("already_submitted").Inc()
	case guard.VerdictDisqualified:
		pos = domain.Position{
			State:          domain.StateDisqualified,
			DisqualifiedBy: rec.DisqualificationReason,
		}
		h.metrics.RepeatVisits.WithLabelValues("disqualified").Inc()
	case guard.VerdictProceed:
		h.metrics.SessionsStarted.Inc()
	}

	s := h.sessions.Create(deviceHash, pos)
	h.log.Info("Session created",
		logger.String("session_id", s.ID),
		logger.String("state", pos.State.String()),
	)

	s.Lock()
	resp := h.stateResponse(s)
	s.Unlock()
	c.JSON(http.StatusCreated, resp)
}

// Begin transitions Welcome into the first question.
func (h *QuizHandler) Begin(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	s.Lock()
	defer s.Unlock()

	pos, err := h.sequencer.Begin(s.Pos)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "flow already started or finished"})
		return
	}
	s.Pos = pos
	c.JSON(http.StatusOK, h.stateResponse(s))
}

// GetState returns the current position and, on a question step, the
// question payload.
func (h *QuizHandler) GetState(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	s.Lock()
	defer s.Unlock()
	c.JSON(http.StatusOK, h.stateResponse(s))
}

// Answer records one field value, evaluates disqualification, and advances
// honoring branch skips and the free-text suppression.
func (h *QuizHandler) Answer(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "field is required"})
		return
	}

	s.Lock()
	defer s.Unlock()

	pos, err := h.sequencer.Answer(s.Pos, s.Answers, req.Field, req.Value)
	switch {
	case errors.Is(err, flow.ErrWrongField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, flow.ErrTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "answer not recorded"})
		return
	}

	h.metrics.AnswersRecorded.WithLabelValues(req.Field).Inc()

	if req.Field == flow.FieldBlogLink {
		h.schedulerFor(s.ID).Observe(req.Value)
	}

	if pos.State == domain.StateDisqualified && s.Pos.State != domain.StateDisqualified {
		h.recordDisqualification(c, s, pos.DisqualifiedBy)
	}

	s.Pos = pos
	c.JSON(http.StatusOK, h.stateResponse(s))
}

// Previous steps back one position, landing on the question that caused a
// skip rather than the skipped index.
func (h *QuizHandler) Previous(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	s.Lock()
	defer s.Unlock()

	pos, err := h.sequencer.Previous(s.Pos, s.Answers)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.Pos = pos
	c.JSON(http.StatusOK, h.stateResponse(s))
}

// Classify returns the classifier verdict for a URL. Verdicts are cached by
// the exact string given; repeated calls issue no network traffic.
func (h *QuizHandler) Classify(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	started := time.Now()
	check := h.detector.Classify(c.Request.Context(), raw)
	h.metrics.RecordSiteCheck(checkOutcome(check), time.Since(started).Seconds())

	c.JSON(http.StatusOK, siteCheckResponse(check))
}

// Submit runs the guard-gated webhook delivery. The thank-you transition
// happens only after a 2xx acknowledgment; on failure the respondent stays on
// the contact step and may retry.
func (h *QuizHandler) Submit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req submitRequest
	_ = c.ShouldBindJSON(&req)

	s.Lock()
	defer s.Unlock()

	if s.Pos.State != domain.StateContact {
		c.JSON(http.StatusConflict, gin.H{"error": "flow is not at the contact step"})
		return
	}
	if !h.sequencer.ContactComplete(s.Answers) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "contact fields incomplete"})
		return
	}

	check := h.siteCheck(c, s)
	if check.Blocked() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      blockedMessage(check),
			"site_check": siteCheckResponse(check),
		})
		return
	}

	if !h.guard.BeginSubmit(s.ID) {
		// A submit for this session is already in flight or cooling down.
		h.metrics.Submissions.WithLabelValues(resultDuplicate).Inc()
		c.JSON(http.StatusAccepted, h.stateResponse(s))
		return
	}
	defer h.guard.EndSubmit(s.ID)

	pageURL := req.PageURL
	if pageURL == "" {
		pageURL = c.GetHeader("Referer")
	}
	payload := h.buildPayload(c, s, check, pageURL)

	started := time.Now()
	err := h.webhook.Send(c.Request.Context(), payload)
	h.metrics.RecordWebhook(err == nil, time.Since(started).Seconds())

	if err != nil {
		h.metrics.Submissions.WithLabelValues(resultFailed).Inc()
		h.enqueueEvent(s, domain.OutcomeWebhookFailed, payload.SubmissionID)
		c.JSON(http.StatusBadGateway, gin.H{"error": "webhook delivery failed"})
		return
	}

	if recErr := h.guard.RecordOutcome(c.Request.Context(), s.DeviceHash, "", time.Now()); recErr != nil {
		h.log.Warn("Submission record not persisted", logger.Error(recErr))
	}

	pos, err := h.sequencer.Submitted(s.Pos)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.Pos = pos

	h.metrics.Submissions.WithLabelValues(resultDelivered).Inc()
	h.enqueueEvent(s, domain.OutcomeSubmitted, payload.SubmissionID)
	h.releaseScheduler(s.ID)

	resp := h.stateResponse(s)
	resp["submission_id"] = payload.SubmissionID
	c.JSON(http.StatusOK, resp)
}

// session resolves the :id path parameter, responding 404 for unknown or
// expired sessions.
func (h *QuizHandler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}

// stateResponse renders the current position. The caller must hold the
// session lock.
func (h *QuizHandler) stateResponse(s *session.Session) gin.H {
	resp := gin.H{
		"session_id": s.ID,
		"state":      s.Pos.State.String(),
	}

	switch s.Pos.State {
	case domain.StateQuestion:
		resp["index"] = s.Pos.Index
		if q, err := h.sequencer.Question(s.Pos.Index); err == nil {
			resp["question"] = q
		}
	case domain.StateDisqualified:
		if s.Pos.DisqualifiedBy != "" {
			resp["disqualified_by"] = s.Pos.DisqualifiedBy
		}
	}
	return resp
}

// siteCheck returns the verdict for the session's blog link: the debounced
// scheduler result when it resolved, otherwise a synchronous classification
// bounded by the detection client timeout.
func (h *QuizHandler) siteCheck(c *gin.Context, s *session.Session) domain.SiteCheck {
	raw := s.Answers.Get(flow.FieldBlogLink)

	h.mu.Lock()
	sched := h.schedulers[s.ID]
	h.mu.Unlock()

	if sched != nil {
		if url, check := sched.Current(); url == raw && check.Checked {
			return check
		}
	}
	return h.detector.Classify(c.Request.Context(), raw)
}

// schedulerFor returns the session's debounce scheduler, creating it on first
// use.
func (h *QuizHandler) schedulerFor(sessionID string) *wordpress.Scheduler {
	h.mu.Lock()
	defer h.mu.Unlock()

	sched, ok := h.schedulers[sessionID]
	if !ok {
		sched = wordpress.NewScheduler(h.detector, h.debounce)
		h.schedulers[sessionID] = sched
	}
	return sched
}

// recordDisqualification persists the terminal record, counts it, and
// enqueues the audit event. The caller must hold the session lock.
func (h *QuizHandler) recordDisqualification(c *gin.Context, s *session.Session, reason string) {
	h.metrics.Disqualified.WithLabelValues(reason).Inc()

	if err := h.guard.RecordOutcome(c.Request.Context(), s.DeviceHash, reason, time.Now()); err != nil {
		h.log.Warn("Disqualification record not persisted", logger.Error(err))
	}
	h.enqueueEvent(s, domain.OutcomeDisqualified, reason)
	h.releaseScheduler(s.ID)
}

// releaseScheduler stops and discards the session's debounce scheduler once
// the flow reached a terminal state.
func (h *QuizHandler) releaseScheduler(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sched, ok := h.schedulers[sessionID]; ok {
		sched.Stop()
		delete(h.schedulers, sessionID)
	}
}

// buildPayload assembles the enriched webhook payload. Geolocation is
// best-effort; a failed lookup only drops the city/state fields.
func (h *QuizHandler) buildPayload(
	c *gin.Context,
	s *session.Session,
	check domain.SiteCheck,
	pageURL string,
) domain.LeadPayload {
	geo, err := h.geo.Lookup(c.Request.Context(), c.ClientIP())
	if err != nil {
		h.log.Debug("Geolocation lookup failed", logger.Error(err))
		geo = nil
	}

	return enrich.BuildPayload(s.Answers, enrich.Context{
		PageURL:     pageURL,
		UserAgent:   c.Request.UserAgent(),
		ClickID:     enrich.ClickID(c.Request),
		IsWordPress: check.IsWordPress,
		IsQualified: h.sequencer.Evaluator().Qualified(s.Answers),
		Now:         time.Now(),
		Geo:         geo,
	})
}

// enqueueEvent sends one audit event to the buffered writer, logging a
// warning when the buffer is full.
func (h *QuizHandler) enqueueEvent(s *session.Session, outcome, detail string) {
	event := domain.FunnelEvent{
		SessionID:  s.ID,
		DeviceHash: s.DeviceHash,
		Outcome:    outcome,
		Detail:     detail,
		OccurredAt: time.Now(),
	}
	if !h.events.Send(event) {
		h.log.Warn("Funnel event buffer full, dropping event",
			logger.String("session_id", s.ID),
			logger.String("outcome", outcome),
		)
	}
}

func siteCheckResponse(check domain.SiteCheck) gin.H {
	resp := gin.H{
		"checked":      check.Checked,
		"is_wordpress": check.IsWordPress,
		"loading":      check.Loading,
	}
	if check.Err != "" {
		resp["error"] = check.Err
	}
	return resp
}

func checkOutcome(check domain.SiteCheck) string {
	switch {
	case check.Err != "":
		return "error"
	case check.IsWordPress:
		return "wordpress"
	default:
		return "other"
	}
}

func blockedMessage(check domain.SiteCheck) string {
	if check.Err != "" {
		return check.Err
	}
	return "blog link is not a WordPress site"
}

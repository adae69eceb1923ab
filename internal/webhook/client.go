// Package webhook delivers the enriched lead payload to the automation
// endpoint. Delivery is single-attempt: a failed POST is surfaced to the
// caller, which keeps the respondent on the contact step so they can retry.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonesrussell/quiz-funnel/internal/domain"
	"github.com/jonesrussell/quiz-funnel/internal/logger"
)

// Client posts lead payloads to a single configured URL.
type Client struct {
	url    string
	client *http.Client
	log    logger.Logger
}

// New creates a webhook client.
func New(url string, httpClient *http.Client, log logger.Logger) *Client {
	return &Client{
		url:    url,
		client: httpClient,
		log:    log,
	}
}

// Send posts the payload as JSON. Any 2xx status counts as delivered;
// everything else is an error.
func (c *Client) Send(ctx context.Context, payload domain.LeadPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error("webhook delivery failed",
			logger.String("submission_id", payload.SubmissionID),
			logger.Error(err))
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.log.Error("webhook rejected payload",
			logger.String("submission_id", payload.SubmissionID),
			logger.Int("status", resp.StatusCode))
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}

	c.log.Info("webhook delivered",
		logger.String("submission_id", payload.SubmissionID),
		logger.Int("status", resp.StatusCode))
	return nil
}

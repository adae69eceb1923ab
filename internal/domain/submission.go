package domain

import "time"

// SubmissionRecord marks a completed flow for one device. It is read at
// session start to short-circuit repeat visits inside the validity window.
type SubmissionRecord struct {
	SubmittedAt time.Time `json:"submitted_at"`
	// DisqualificationReason is the failing field id, or "" for a
	// successful submission.
	DisqualificationReason string `json:"disqualification_reason,omitempty"`
}

// Expired reports whether the record falls outside the validity window at
// the given instant.
func (r SubmissionRecord) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(r.SubmittedAt) > window
}

// UTMBundle is the conventional five-field UTM parameter set read from the
// page the form was rendered on. Absent parameters are omitted from the
// webhook payload.
type UTMBundle struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

// LeadPayload is the enriched body POSTed to the webhook sink. The JSON keys
// are the wire contract with the receiving automation and must not change.
type LeadPayload struct {
	Area          string `json:"area"`
	AreaOutra     string `json:"areaOutra"`
	Frequencia    string `json:"frequencia"`
	Familiaridade string `json:"familiaridade"`
	Faturamento   string `json:"faturamento"`
	Investimento  string `json:"investimento"`
	Nome          string `json:"nome"`
	Email         string `json:"email"`
	Telefone      string `json:"telefone"`
	BlogLink      string `json:"blogLink"`

	Cidade string `json:"cidade,omitempty"`
	Estado string `json:"estado,omitempty"`
	Pais   string `json:"pais"`

	Dispositivo   string    `json:"dispositivo"`
	UTMs          UTMBundle `json:"utms"`
	URLPagina     string    `json:"url_pagina"`
	DataSubmissao string    `json:"data_submissao"`
	UserAgent     string    `json:"user_agent"`
	ClickID       string    `json:"clickid,omitempty"`
	Form          string    `json:"form"`
	IsWordPress   bool      `json:"isWordPress"`
	IsQualified   bool      `json:"isQualified"`
	SubmissionID  string    `json:"submission_id"`
}

// FunnelEvent is one audit-trail entry describing a terminal outcome of a
// session. Events are buffered and batch-inserted, never written inline.
type FunnelEvent struct {
	SessionID  string    `json:"session_id"`
	DeviceHash string    `json:"device_hash"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Funnel event outcomes.
const (
	OutcomeDisqualified  = "disqualified"
	OutcomeSubmitted     = "submitted"
	OutcomeWebhookFailed = "webhook_failed"
)

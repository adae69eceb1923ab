// Package enrich assembles the webhook payload: the answer fields plus the
// device class, UTM bundle, click-identifier cookie, and best-effort
// geolocation.
package enrich

import (
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jonesrussell/quiz-funnel/internal/domain"
	"github.com/jonesrussell/quiz-funnel/internal/flow"
)

// Fixed payload literals. These are part of the webhook contract.
const (
	countryLiteral = "Brasil"
	formLiteral    = "lovableform"

	// clickIDCookie is the tracking cookie carrying the ad click id.
	clickIDCookie = "rtkclickid-store"

	// DeviceMobile and DeviceDesktop are the two device-class values.
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
)

// mobilePattern classifies a user-agent as a mobile device.
var mobilePattern = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

// DeviceClass returns "mobile" or "desktop" for a user-agent string.
func DeviceClass(userAgent string) string {
	if mobilePattern.MatchString(userAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}

// UTMs extracts the conventional five UTM parameters from the query string
// of the page the form was rendered on. A malformed URL yields an empty
// bundle.
func UTMs(pageURL string) domain.UTMBundle {
	u, err := url.Parse(pageURL)
	if err != nil {
		return domain.UTMBundle{}
	}
	q := u.Query()
	return domain.UTMBundle{
		Source:   q.Get("utm_source"),
		Medium:   q.Get("utm_medium"),
		Campaign: q.Get("utm_campaign"),
		Term:     q.Get("utm_term"),
		Content:  q.Get("utm_content"),
	}
}

// ClickID reads the tracking cookie from the request. Absence is not an
// error; the payload field is simply omitted.
func ClickID(r *http.Request) string {
	cookie, err := r.Cookie(clickIDCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Context carries the request-scoped inputs of payload assembly.
type Context struct {
	PageURL     string
	UserAgent   string
	ClickID     string
	IsWordPress bool
	IsQualified bool
	Now         time.Time
	// Geo is nil when the lookup failed or is disabled.
	Geo *GeoInfo
}

// BuildPayload assembles the enriched webhook payload from the answer set
// and the request context.
func BuildPayload(answers domain.AnswerSet, ec Context) domain.LeadPayload {
	p := domain.LeadPayload{
		Area:          answers.Get(flow.QuestionArea),
		AreaOutra:     answers.Get(flow.FieldAreaOutra),
		Frequencia:    answers.Get(flow.QuestionFrequencia),
		Familiaridade: answers.Get(flow.QuestionFamiliaridade),
		Faturamento:   answers.Get(flow.QuestionFaturamento),
		Investimento:  answers.Get(flow.QuestionInvestimento),
		Nome:          answers.Get(flow.FieldNome),
		Email:         answers.Get(flow.FieldEmail),
		Telefone:      answers.Get(flow.FieldTelefone),
		BlogLink:      answers.Get(flow.FieldBlogLink),

		Pais:          countryLiteral,
		Dispositivo:   DeviceClass(ec.UserAgent),
		UTMs:          UTMs(ec.PageURL),
		URLPagina:     ec.PageURL,
		DataSubmissao: ec.Now.UTC().Format(time.RFC3339),
		UserAgent:     ec.UserAgent,
		ClickID:       ec.ClickID,
		Form:          formLiteral,
		IsWordPress:   ec.IsWordPress,
		IsQualified:   ec.IsQualified,
		SubmissionID:  uuid.NewString(),
	}

	if ec.Geo != nil {
		p.Cidade = ec.Geo.City
		p.Estado = ec.Geo.Region
	}

	return p
}

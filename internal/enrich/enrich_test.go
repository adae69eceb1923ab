package enrich_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonesrussell/quiz-funnel/internal/domain"
	"github.com/jonesrussell/quiz-funnel/internal/enrich"
	"github.com/jonesrussell/quiz-funnel/internal/flow"
	"github.com/jonesrussell/quiz-funnel/internal/logger"
)

func TestDeviceClass(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{
			name:      "iphone",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
			want:      enrich.DeviceMobile,
		},
		{
			name:      "android lowercase",
			userAgent: "mozilla/5.0 (linux; android 14; Pixel 8)",
			want:      enrich.DeviceMobile,
		},
		{
			name:      "ipad",
			userAgent: "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X)",
			want:      enrich.DeviceMobile,
		},
		{
			name:      "opera mini",
			userAgent: "Opera/9.80 (J2ME/MIDP; Opera Mini/9.80)",
			want:      enrich.DeviceMobile,
		},
		{
			name:      "desktop chrome",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			want:      enrich.DeviceDesktop,
		},
		{
			name:      "empty",
			userAgent: "",
			want:      enrich.DeviceDesktop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := enrich.DeviceClass(tt.userAgent); got != tt.want {
				t.Fatalf("DeviceClass(%q) = %q, want %q", tt.userAgent, got, tt.want)
			}
		})
	}
}

func TestUTMs(t *testing.T) {
	page := "https://example.com/lp?utm_source=fb&utm_medium=cpc&utm_campaign=trial&utm_term=blog&utm_content=v2"
	got := enrich.UTMs(page)

	want := domain.UTMBundle{
		Source:   "fb",
		Medium:   "cpc",
		Campaign: "trial",
		Term:     "blog",
		Content:  "v2",
	}
	if got != want {
		t.Fatalf("UTMs mismatch: got %+v, want %+v", got, want)
	}
}

func TestUTMs_MissingParams(t *testing.T) {
	got := enrich.UTMs("https://example.com/lp?utm_source=fb")
	if got.Source != "fb" {
		t.Fatalf("source: got %q, want fb", got.Source)
	}
	if got.Medium != "" || got.Campaign != "" || got.Term != "" || got.Content != "" {
		t.Fatalf("expected remaining fields empty, got %+v", got)
	}
}

func TestClickID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	req.AddCookie(&http.Cookie{Name: "rtkclickid-store", Value: "click-123"})

	if got := enrich.ClickID(req); got != "click-123" {
		t.Fatalf("ClickID: got %q, want click-123", got)
	}
}

func TestClickID_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	if got := enrich.ClickID(req); got != "" {
		t.Fatalf("ClickID without cookie: got %q, want empty", got)
	}
}

func TestBuildPayload(t *testing.T) {
	answers := domain.NewAnswerSet()
	answers.Set(flow.QuestionArea, "Blogueiro(a)")
	answers.Set(flow.QuestionFrequencia, "Diariamente")
	answers.Set(flow.FieldNome, "Maria")
	answers.Set(flow.FieldEmail, "maria@example.com")
	answers.Set(flow.FieldTelefone, "+55 11 99999-0000")
	answers.Set(flow.FieldBlogLink, "https://blog.example.com")

	now := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
	p := enrich.BuildPayload(answers, enrich.Context{
		PageURL:     "https://example.com/lp?utm_source=fb",
		UserAgent:   "Mozilla/5.0 (iPhone)",
		ClickID:     "click-1",
		IsWordPress: true,
		IsQualified: true,
		Now:         now,
		Geo:         &enrich.GeoInfo{City: "São Paulo", Region: "SP"},
	})

	if p.Area != "Blogueiro(a)" {
		t.Fatalf("area: got %q", p.Area)
	}
	if p.Pais != "Brasil" {
		t.Fatalf("pais: got %q, want Brasil", p.Pais)
	}
	if p.Form != "lovableform" {
		t.Fatalf("form: got %q, want lovableform", p.Form)
	}
	if p.Dispositivo != enrich.DeviceMobile {
		t.Fatalf("dispositivo: got %q, want mobile", p.Dispositivo)
	}
	if p.UTMs.Source != "fb" {
		t.Fatalf("utm source: got %q, want fb", p.UTMs.Source)
	}
	if p.DataSubmissao != "2025-03-10T12:30:00Z" {
		t.Fatalf("data_submissao: got %q", p.DataSubmissao)
	}
	if !p.IsWordPress || !p.IsQualified {
		t.Fatalf("flags: got wp=%v qualified=%v", p.IsWordPress, p.IsQualified)
	}
	if p.Cidade != "São Paulo" || p.Estado != "SP" {
		t.Fatalf("geo: got cidade=%q estado=%q", p.Cidade, p.Estado)
	}
	if p.SubmissionID == "" {
		t.Fatal("expected a submission id")
	}
}

func TestBuildPayload_DistinctSubmissionIDs(t *testing.T) {
	answers := domain.NewAnswerSet()
	ec := enrich.Context{Now: time.Now()}

	a := enrich.BuildPayload(answers, ec)
	b := enrich.BuildPayload(answers, ec)
	if a.SubmissionID == b.SubmissionID {
		t.Fatal("two payloads share a submission id")
	}
}

func TestGeoClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/198.51.100.7" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"city":       "Curitiba",
			"regionName": "Paraná",
		})
	}))
	defer srv.Close()

	g := enrich.NewGeoClient(srv.URL, srv.Client(), logger.NewNop())
	info, err := g.Lookup(context.Background(), "198.51.100.7")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info.City != "Curitiba" || info.Region != "Paraná" {
		t.Fatalf("geo info mismatch: %+v", info)
	}
}

func TestGeoClient_Disabled(t *testing.T) {
	g := enrich.NewGeoClient("", http.DefaultClient, logger.NewNop())
	info, err := g.Lookup(context.Background(), "198.51.100.7")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info != nil {
		t.Fatalf("expected nil info when disabled, got %+v", info)
	}
}

func TestGeoClient_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := enrich.NewGeoClient(srv.URL, srv.Client(), logger.NewNop())
	if _, err := g.Lookup(context.Background(), "198.51.100.7"); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

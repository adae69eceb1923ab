package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jonesrussell/quiz-funnel/internal/logger"
)

// GeoInfo is the city/region pair from the IP geolocation lookup.
type GeoInfo struct {
	City   string `json:"city"`
	Region string `json:"regionName"`
}

// GeoClient performs best-effort IP geolocation. Every failure path returns
// an error the caller is expected to swallow; the payload fields are simply
// omitted.
type GeoClient struct {
	endpoint string
	client   *http.Client
	log      logger.Logger
}

// NewGeoClient creates a client against the given endpoint. An empty
// endpoint disables lookups.
func NewGeoClient(endpoint string, client *http.Client, log logger.Logger) *GeoClient {
	return &GeoClient{
		endpoint: endpoint,
		client:   client,
		log:      log,
	}
}

// Lookup resolves an IP address to city/region. It returns (nil, nil) when
// the lookup is disabled.
func (g *GeoClient) Lookup(ctx context.Context, ip string) (*GeoInfo, error) {
	if g.endpoint == "" || ip == "" {
		return nil, nil
	}

	target, err := url.JoinPath(g.endpoint, ip)
	if err != nil {
		return nil, fmt.Errorf("build geo url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build geo request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo lookup status %d", resp.StatusCode)
	}

	var info GeoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode geo response: %w", err)
	}
	return &info, nil
}

package civic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/civiq/civiq/internal/cache"
	"github.com/civiq/civiq/internal/metrics"
)

// Bill is the subset of Congress.gov legislation fields the profile pages
// render. Parsing is defensive: fields absent upstream stay zero-valued.
type Bill struct {
	Congress     int    `json:"congress"`
	Type         string `json:"type"`
	Number       string `json:"number"`
	Title        string `json:"title"`
	IntroducedAt string `json:"introducedDate,omitempty"`
	LatestAction string `json:"latestAction,omitempty"`
	URL          string `json:"url,omitempty"`
}

// CongressConfig points the client at Congress.gov (or a fixture).
type CongressConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	TTL     time.Duration
}

// CongressClient fetches member legislation from the Congress.gov v3 API.
type CongressClient struct {
	cfg CongressConfig
	f   fetcher
}

// NewCongress builds a Congress.gov client backed by the shared result cache.
func NewCongress(cfg CongressConfig, store cache.Store, recorder *metrics.Recorder) *CongressClient {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	return &CongressClient{
		cfg: cfg,
		f:   newFetcher("congress", cfg.Timeout, cfg.TTL, store, recorder),
	}
}

type sponsoredLegislationResponse struct {
	SponsoredLegislation []struct {
		Congress       int    `json:"congress"`
		Type           string `json:"type"`
		Number         string `json:"number"`
		Title          string `json:"title"`
		IntroducedDate string `json:"introducedDate"`
		LatestAction   struct {
			Text string `json:"text"`
		} `json:"latestAction"`
		URL string `json:"url"`
	} `json:"sponsoredLegislation"`
}

// SponsoredBills returns recent legislation sponsored by the member,
// memoized per bioguide ID.
func (c *CongressClient) SponsoredBills(ctx context.Context, bioguideID string, limit int) ([]Bill, error) {
	bioguideID = strings.ToUpper(strings.TrimSpace(bioguideID))
	if bioguideID == "" {
		return nil, &UpstreamError{Dependency: "congress", Reason: "bioguide id required"}
	}
	if limit <= 0 || limit > 250 {
		limit = 20
	}

	key := fmt.Sprintf("congress:sponsored:%s:%d", bioguideID, limit)
	payload, err := c.f.cachedJSON(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		query := url.Values{
			"format": {"json"},
			"limit":  {fmt.Sprintf("%d", limit)},
		}
		if c.cfg.APIKey != "" {
			query.Set("api_key", c.cfg.APIKey)
		}
		endpoint := fmt.Sprintf("%s/member/%s/sponsored-legislation?%s",
			strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(bioguideID), query.Encode())
		return c.f.get(ctx, endpoint, http.Header{"Accept": {"application/json"}})
	})
	if err != nil {
		return nil, err
	}

	var decoded sponsoredLegislationResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		// Schema drift reads as "no bills", not a crash.
		return nil, nil
	}

	bills := make([]Bill, 0, len(decoded.SponsoredLegislation))
	for _, item := range decoded.SponsoredLegislation {
		bills = append(bills, Bill{
			Congress:     item.Congress,
			Type:         item.Type,
			Number:       item.Number,
			Title:        item.Title,
			IntroducedAt: item.IntroducedDate,
			LatestAction: item.LatestAction.Text,
			URL:          item.URL,
		})
	}
	return bills, nil
}

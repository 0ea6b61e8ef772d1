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

// Article is one news item about a representative.
type Article struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Source    string `json:"source,omitempty"`
	Published string `json:"published,omitempty"`
}

// GDELTConfig points the client at the GDELT doc API (or a fixture).
type GDELTConfig struct {
	BaseURL string
	Timeout time.Duration
	TTL     time.Duration
}

// GDELTClient fetches recent news coverage from the GDELT doc search API.
type GDELTClient struct {
	cfg GDELTConfig
	f   fetcher
}

// NewGDELT builds a GDELT client backed by the shared result cache.
func NewGDELT(cfg GDELTConfig, store cache.Store, recorder *metrics.Recorder) *GDELTClient {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &GDELTClient{
		cfg: cfg,
		f:   newFetcher("gdelt", cfg.Timeout, cfg.TTL, store, recorder),
	}
}

type gdeltResponse struct {
	Articles []struct {
		Title    string `json:"title"`
		URL      string `json:"url"`
		Domain   string `json:"domain"`
		SeenDate string `json:"seendate"`
	} `json:"articles"`
}

// News returns recent headlines mentioning the representative by name.
func (c *GDELTClient) News(ctx context.Context, name string, limit int) ([]Article, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &UpstreamError{Dependency: "gdelt", Reason: "name required"}
	}
	if limit <= 0 || limit > 75 {
		limit = 10
	}

	key := fmt.Sprintf("gdelt:news:%s:%d", strings.ToLower(name), limit)
	payload, err := c.f.cachedJSON(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		query := url.Values{
			"query":      {fmt.Sprintf("%q", name)},
			"mode":       {"artlist"},
			"format":     {"json"},
			"maxrecords": {fmt.Sprintf("%d", limit)},
			"sort":       {"datedesc"},
		}
		return c.f.get(ctx, c.cfg.BaseURL+"?"+query.Encode(), http.Header{"Accept": {"application/json"}})
	})
	if err != nil {
		return nil, err
	}

	var decoded gdeltResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, nil
	}

	articles := make([]Article, 0, len(decoded.Articles))
	for _, a := range decoded.Articles {
		if a.URL == "" {
			continue
		}
		articles = append(articles, Article{
			Title:     a.Title,
			URL:       a.URL,
			Source:    a.Domain,
			Published: a.SeenDate,
		})
	}
	return articles, nil
}

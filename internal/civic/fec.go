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

// FinanceSummary aggregates a candidate's campaign finance totals for one
// election cycle.
type FinanceSummary struct {
	CandidateID   string  `json:"candidateId"`
	Cycle         int     `json:"cycle"`
	Receipts      float64 `json:"receipts"`
	Disbursements float64 `json:"disbursements"`
	CashOnHand    float64 `json:"cashOnHand"`
	Contributions float64 `json:"individualContributions"`
}

// FECConfig points the client at api.open.fec.gov (or a fixture).
type FECConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	TTL     time.Duration
}

// FECClient fetches campaign finance totals from the FEC API.
type FECClient struct {
	cfg FECConfig
	f   fetcher
}

// NewFEC builds an FEC client backed by the shared result cache.
func NewFEC(cfg FECConfig, store cache.Store, recorder *metrics.Recorder) *FECClient {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &FECClient{
		cfg: cfg,
		f:   newFetcher("fec", cfg.Timeout, cfg.TTL, store, recorder),
	}
}

type fecTotalsResponse struct {
	Results []struct {
		CandidateID             string  `json:"candidate_id"`
		Cycle                   int     `json:"cycle"`
		Receipts                float64 `json:"receipts"`
		Disbursements           float64 `json:"disbursements"`
		LastCashOnHandEndPeriod float64 `json:"last_cash_on_hand_end_period"`
		IndividualContributions float64 `json:"individual_contributions"`
	} `json:"results"`
}

// CandidateTotals returns the latest-cycle finance summary for a candidate,
// or nil when the FEC has no totals on file.
func (c *FECClient) CandidateTotals(ctx context.Context, candidateID string) (*FinanceSummary, error) {
	candidateID = strings.ToUpper(strings.TrimSpace(candidateID))
	if candidateID == "" {
		return nil, &UpstreamError{Dependency: "fec", Reason: "candidate id required"}
	}

	key := "fec:totals:" + candidateID
	payload, err := c.f.cachedJSON(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		query := url.Values{
			"sort":     {"-cycle"},
			"per_page": {"1"},
		}
		if c.cfg.APIKey != "" {
			query.Set("api_key", c.cfg.APIKey)
		}
		endpoint := fmt.Sprintf("%s/candidate/%s/totals/?%s",
			strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(candidateID), query.Encode())
		return c.f.get(ctx, endpoint, http.Header{"Accept": {"application/json"}})
	})
	if err != nil {
		return nil, err
	}

	var decoded fecTotalsResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, nil
	}
	if len(decoded.Results) == 0 {
		return nil, nil
	}

	latest := decoded.Results[0]
	return &FinanceSummary{
		CandidateID:   latest.CandidateID,
		Cycle:         latest.Cycle,
		Receipts:      latest.Receipts,
		Disbursements: latest.Disbursements,
		CashOnHand:    latest.LastCashOnHandEndPeriod,
		Contributions: latest.IndividualContributions,
	}, nil
}

// Candidate is one FEC candidate registration.
type Candidate struct {
	CandidateID string `json:"candidateId"`
	Name        string `json:"name"`
	Party       string `json:"party,omitempty"`
	State       string `json:"state,omitempty"`
	Office      string `json:"office,omitempty"`
}

type fecSearchResponse struct {
	Results []struct {
		CandidateID string `json:"candidate_id"`
		Name        string `json:"name"`
		Party       string `json:"party"`
		State       string `json:"state"`
		Office      string `json:"office"`
	} `json:"results"`
}

// SearchCandidates finds candidate registrations by name, optionally narrowed
// to a state and office ("H" or "S"). Callers chase the returned IDs through
// CandidateTotals.
func (c *FECClient) SearchCandidates(ctx context.Context, name, state, office string) ([]Candidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &UpstreamError{Dependency: "fec", Reason: "candidate name required"}
	}
	state = strings.ToUpper(strings.TrimSpace(state))
	office = strings.ToUpper(strings.TrimSpace(office))

	key := fmt.Sprintf("fec:candidates:%s:%s:%s", office, state, strings.ToLower(name))
	payload, err := c.f.cachedJSON(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		query := url.Values{
			"q":        {name},
			"sort":     {"-first_file_date"},
			"per_page": {"5"},
		}
		if state != "" {
			query.Set("state", state)
		}
		if office != "" {
			query.Set("office", office)
		}
		if c.cfg.APIKey != "" {
			query.Set("api_key", c.cfg.APIKey)
		}
		endpoint := fmt.Sprintf("%s/candidates/search/?%s",
			strings.TrimRight(c.cfg.BaseURL, "/"), query.Encode())
		return c.f.get(ctx, endpoint, http.Header{"Accept": {"application/json"}})
	})
	if err != nil {
		return nil, err
	}

	var decoded fecSearchResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(decoded.Results))
	for _, item := range decoded.Results {
		if item.CandidateID == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			CandidateID: item.CandidateID,
			Name:        item.Name,
			Party:       item.Party,
			State:       item.State,
			Office:      item.Office,
		})
	}
	return candidates, nil
}

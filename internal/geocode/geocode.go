package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/civiq/civiq/internal/districts"
	"github.com/civiq/civiq/internal/metrics"
)

// Error is the tagged failure the adapter returns when the geocoding service
// is unreachable or answers with a non-2xx status. It never escapes as a raw
// transport error.
type Error struct {
	Status int
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("geocode: %s (status %d)", e.Reason, e.Status)
	}
	return fmt.Sprintf("geocode: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Match is one candidate returned by the geocoding service. Geographies is
// kept loosely typed because the layer names and field sets are not
// contractually guaranteed by the upstream.
type Match struct {
	MatchedAddress string                      `json:"matchedAddress"`
	Coordinates    Coordinates                 `json:"coordinates"`
	Geographies    map[string][]map[string]any `json:"geographies"`
}

type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type geocodeResponse struct {
	Result struct {
		AddressMatches []Match `json:"addressMatches"`
	} `json:"result"`
}

// Config carries the handful of knobs the Census geocoder exposes.
type Config struct {
	BaseURL   string
	Benchmark string
	Vintage   string
	Timeout   time.Duration
}

// Client wraps the Census geocoding service. Every request is bounded by the
// configured timeout so a slow upstream cannot stall a lookup indefinitely.
type Client struct {
	cfg      Config
	http     *http.Client
	logger   *slog.Logger
	recorder *metrics.Recorder
}

// New builds a geocoder client. The recorder may be nil.
func New(cfg Config, logger *slog.Logger, recorder *metrics.Recorder) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Benchmark == "" {
		cfg.Benchmark = "Public_AR_Current"
	}
	if cfg.Vintage == "" {
		cfg.Vintage = "Current_Current"
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		recorder: recorder,
	}
}

// Locate resolves a free-text address into candidate matches with their
// congressional-district geographies attached.
func (c *Client) Locate(ctx context.Context, address string) ([]Match, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, &Error{Reason: "empty address"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/geographies/onelineaddress"
	query := url.Values{
		"address":   {address},
		"benchmark": {c.cfg.Benchmark},
		"vintage":   {c.cfg.Vintage},
		"format":    {"json"},
		"layers":    {"Congressional Districts"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &Error{Reason: "build request", Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recorder.ObserveUpstream("geocoder", 0, time.Since(start))
		return nil, &Error{Reason: "geocoding service unreachable", Err: err}
	}
	defer resp.Body.Close()
	c.recorder.ObserveUpstream("geocoder", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{Status: resp.StatusCode, Reason: "geocoding service returned an error"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Reason: "read response", Err: err}
	}

	var decoded geocodeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		// Malformed payloads are treated like no-match rather than a crash.
		if c.logger != nil {
			c.logger.Warn("geocoder returned unparseable payload", slog.Any("error", err))
		}
		return nil, nil
	}
	return decoded.Result.AddressMatches, nil
}

// ExtractDistrict pulls a district mapping out of a match's geography block.
// The upstream schema drifts across benchmark vintages, so every field access
// is defensive: anything missing yields nil, never a panic.
func ExtractDistrict(match Match) *districts.Mapping {
	for layer, features := range match.Geographies {
		if !strings.Contains(strings.ToLower(layer), "congressional district") {
			continue
		}
		for _, feature := range features {
			state := stateFromFeature(feature)
			if state == "" {
				continue
			}
			district := districtFromFeature(feature)
			if district == "" {
				continue
			}
			return &districts.Mapping{
				State:    state,
				District: districts.NormalizeDistrict(district),
			}
		}
	}
	return nil
}

func stateFromFeature(feature map[string]any) string {
	fips, ok := stringField(feature, "STATE")
	if !ok {
		return ""
	}
	return StateForFIPS(fips)
}

// cdFieldPattern matches the per-congress district code field (CD116, CD118,
// ...). The prefix alone is not enough: features also carry CDSESSN, whose
// value is the session number, not a district.
var cdFieldPattern = regexp.MustCompile(`^CD\d+$`)

// districtFromFeature reads the congressional-district code field; the
// Census names it per congress, so match CD followed by the congress number.
func districtFromFeature(feature map[string]any) string {
	if v, ok := stringField(feature, "BASENAME"); ok {
		if strings.EqualFold(v, "at large") {
			return districts.AtLarge
		}
	}
	for key, value := range feature {
		if !cdFieldPattern.MatchString(strings.ToUpper(key)) {
			continue
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
		if f, ok := value.(float64); ok {
			return fmt.Sprintf("%02.0f", f)
		}
	}
	return ""
}

func stringField(feature map[string]any, key string) (string, bool) {
	v, ok := feature[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

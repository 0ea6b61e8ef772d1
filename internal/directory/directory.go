package directory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/civiq/civiq/internal/districts"
	"github.com/civiq/civiq/internal/metrics"
)

// Chamber identifies which body a legislator serves in.
type Chamber string

const (
	ChamberHouse  Chamber = "House"
	ChamberSenate Chamber = "Senate"
)

// Term is one service period.
type Term struct {
	Chamber Chamber `json:"chamber"`
	State   string  `json:"state"`
	Party   string  `json:"party,omitempty"`
	Start   string  `json:"start"`
	End     string  `json:"end"`
}

// Representative is a currently serving federal legislator. District is set
// only for House members; BioguideID is stable across roster refreshes.
type Representative struct {
	BioguideID string  `json:"bioguideId"`
	Name       string  `json:"name"`
	Party      string  `json:"party"`
	State      string  `json:"state"`
	District   string  `json:"district,omitempty"`
	Chamber    Chamber `json:"chamber"`
	Title      string  `json:"title"`
	Terms      []Term  `json:"terms,omitempty"`
}

// Filter narrows a roster search. Zero-valued fields match everything.
type Filter struct {
	Name    string
	State   string
	Party   string
	Chamber Chamber
}

// Config governs the roster refresh cycle.
type Config struct {
	DatasetURL string
	TTL        time.Duration
	Timeout    time.Duration
}

// Directory caches the roster of current federal legislators, bulk-loaded
// from the congress-legislators dataset. The roster is replaced wholesale on
// refresh, never mutated in place; a stale roster keeps serving while a
// refresh fails.
type Directory struct {
	cfg      Config
	http     *http.Client
	logger   *slog.Logger
	recorder *metrics.Recorder
	now      func() time.Time

	mu        sync.RWMutex
	roster    []Representative
	byID      map[string]Representative
	expiresAt time.Time
}

// New builds a directory. The recorder may be nil.
func New(cfg Config, logger *slog.Logger, recorder *metrics.Recorder) *Directory {
	if cfg.TTL <= 0 {
		cfg.TTL = 6 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Directory{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// All returns the cached roster, refreshing it first when empty or stale.
// When the upstream dataset is unreachable and nothing is cached, the result
// is an empty list, never an error that crashes a request.
func (d *Directory) All(ctx context.Context) []Representative {
	d.refreshIfStale(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Representative, len(d.roster))
	copy(out, d.roster)
	return out
}

// ByBioguide returns the legislator with the given ID, or nil when the ID is
// unknown after a refresh attempt.
func (d *Directory) ByBioguide(ctx context.Context, id string) *Representative {
	d.refreshIfStale(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()
	rep, ok := d.byID[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return nil
	}
	return &rep
}

// ForDistrict returns the delegation for one district: both senators for the
// state plus the House member for the district itself.
func (d *Directory) ForDistrict(ctx context.Context, state, district string) []Representative {
	d.refreshIfStale(ctx)
	state = strings.ToUpper(strings.TrimSpace(state))
	district = districts.NormalizeDistrict(district)

	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Representative
	for _, rep := range d.roster {
		if rep.State != state {
			continue
		}
		switch rep.Chamber {
		case ChamberSenate:
			out = append(out, rep)
		case ChamberHouse:
			if rep.District == district {
				out = append(out, rep)
			}
		}
	}
	return out
}

// Search filters the roster by name substring, state, party, and chamber.
func (d *Directory) Search(ctx context.Context, filter Filter) []Representative {
	d.refreshIfStale(ctx)
	name := strings.ToLower(strings.TrimSpace(filter.Name))
	state := strings.ToUpper(strings.TrimSpace(filter.State))

	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Representative
	for _, rep := range d.roster {
		if name != "" && !strings.Contains(strings.ToLower(rep.Name), name) {
			continue
		}
		if state != "" && rep.State != state {
			continue
		}
		if filter.Party != "" && !strings.EqualFold(rep.Party, filter.Party) {
			continue
		}
		if filter.Chamber != "" && rep.Chamber != filter.Chamber {
			continue
		}
		out = append(out, rep)
	}
	return out
}

// Len reports the cached roster size without triggering a refresh.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.roster)
}

func (d *Directory) refreshIfStale(ctx context.Context) {
	d.mu.RLock()
	fresh := len(d.roster) > 0 && d.now().Before(d.expiresAt)
	d.mu.RUnlock()
	if fresh {
		return
	}

	roster, err := d.fetchRoster(ctx)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("legislator roster refresh failed", slog.Any("error", err))
		}
		// Keep serving whatever we have; push the next attempt out a little
		// so a dead upstream is not hammered on every request.
		d.mu.Lock()
		if d.now().After(d.expiresAt) {
			d.expiresAt = d.now().Add(30 * time.Second)
		}
		d.mu.Unlock()
		return
	}

	byID := make(map[string]Representative, len(roster))
	for _, rep := range roster {
		byID[rep.BioguideID] = rep
	}

	d.mu.Lock()
	d.roster = roster
	d.byID = byID
	d.expiresAt = d.now().Add(d.cfg.TTL)
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Info("legislator roster refreshed", slog.Int("members", len(roster)))
	}
}

func (d *Directory) fetchRoster(ctx context.Context) ([]Representative, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.DatasetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("directory: build request: %w", err)
	}

	start := time.Now()
	resp, err := d.http.Do(req)
	if err != nil {
		d.recorder.ObserveUpstream("legislators", 0, time.Since(start))
		return nil, fmt.Errorf("directory: fetch dataset: %w", err)
	}
	defer resp.Body.Close()
	d.recorder.ObserveUpstream("legislators", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("directory: dataset returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("directory: read dataset: %w", err)
	}

	roster, err := ParseLegislators(body, d.now())
	if err != nil {
		return nil, err
	}
	return roster, nil
}

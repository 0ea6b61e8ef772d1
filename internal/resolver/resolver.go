// Package resolver turns a ZIP code or free-form address into congressional
// districts and the legislators serving them. The ZIP lookup table answers
// directly whenever it can; everything else falls through to the Census
// geocoder.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/civiq/civiq/internal/directory"
	"github.com/civiq/civiq/internal/districts"
	"github.com/civiq/civiq/internal/geocode"
	"github.com/civiq/civiq/internal/metrics"
)

// ErrMissingQuery is returned when neither a ZIP nor an address was supplied.
var ErrMissingQuery = errors.New("resolver: zip or address required")

// Query is one resolution request. ZIP wins when both are set.
type Query struct {
	ZIP     string
	Address string
}

// Resolution is the answer to a query. Districts is empty when nothing
// matched; Unavailable is set when the geocoder was needed but unreachable,
// which callers surface as "data unavailable" rather than "not found".
type Resolution struct {
	State           string                     `json:"state,omitempty"`
	Districts       []districts.Mapping        `json:"districts"`
	MultiDistrict   bool                       `json:"multiDistrict"`
	Source          string                     `json:"source,omitempty"`
	MatchedAddress  string                     `json:"matchedAddress,omitempty"`
	Representatives []directory.Representative `json:"representatives"`
	Unavailable     bool                       `json:"-"`
}

// Found reports whether the resolution carries at least one district.
func (r *Resolution) Found() bool {
	return r != nil && len(r.Districts) > 0
}

// Resolver joins the district table, the geocoder, and the legislator
// directory. All fields but the store may be nil in tests.
type Resolver struct {
	store     *districts.Store
	geocoder  *geocode.Client
	directory *directory.Directory
	stats     metrics.Sink
	recorder  *metrics.Recorder
	logger    *slog.Logger
}

// New builds a resolver.
func New(store *districts.Store, geocoder *geocode.Client, dir *directory.Directory, stats metrics.Sink, recorder *metrics.Recorder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:     store,
		geocoder:  geocoder,
		directory: dir,
		stats:     stats,
		recorder:  recorder,
		logger:    logger,
	}
}

// Resolve answers a query. The flow is: explicit ZIP (or a ZIP parsed out of
// the address) against the table first; a table miss with a street address
// falls back to the geocoder; the resulting district set is then joined
// against the legislator directory.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*Resolution, error) {
	started := time.Now()

	// ZIP+4 collapses to its five-digit prefix: the table is keyed by
	// five digits, so "48221-1234" must look up as "48221".
	zip := geocode.CanonicalZIP(q.ZIP)
	if zip == "" && q.Address != "" {
		if parsed := geocode.ParseAddressComponents(q.Address); parsed.ZIP != "" {
			zip = parsed.ZIP
		}
	}
	if q.ZIP == "" && q.Address == "" {
		return nil, ErrMissingQuery
	}

	res := &Resolution{Source: string(metrics.LookupSourceTable)}

	if zip != "" {
		if mappings := r.store.Table().AllForZIP(zip); len(mappings) > 0 {
			res.Districts = mappings
		}
	}

	if !res.Found() && q.Address != "" && !geocode.LooksLikeZIP(q.Address) && r.geocoder != nil {
		res.Source = string(metrics.LookupSourceGeocoder)
		matches, err := r.geocoder.Locate(ctx, q.Address)
		if err != nil {
			r.logger.Warn("geocoder unavailable", "error", err)
			res.Unavailable = true
			r.observe(res, started)
			return res, nil
		}
		for _, match := range matches {
			mapping := geocode.ExtractDistrict(match)
			if mapping == nil {
				continue
			}
			res.Districts = []districts.Mapping{*mapping}
			res.MatchedAddress = match.MatchedAddress
			break
		}
	}

	if res.Found() {
		res.State = res.Districts[0].State
		res.MultiDistrict = len(res.Districts) > 1
		res.Representatives = r.join(ctx, res.Districts)
	}

	r.observe(res, started)
	return res, nil
}

// join collects the senators and House members for every district, deduped
// by bioguide ID so a multi-district ZIP lists each senator once.
func (r *Resolver) join(ctx context.Context, mappings []districts.Mapping) []directory.Representative {
	if r.directory == nil {
		return nil
	}
	seen := make(map[string]bool)
	var members []directory.Representative
	for _, m := range mappings {
		for _, rep := range r.directory.ForDistrict(ctx, m.State, m.District) {
			if seen[rep.BioguideID] {
				continue
			}
			seen[rep.BioguideID] = true
			members = append(members, rep)
		}
	}
	return members
}

// observe records the lookup in both the snapshot counters and Prometheus.
// Any resolution that produced districts counts as a hit, whether the table
// or the geocoder answered it.
func (r *Resolver) observe(res *Resolution, started time.Time) {
	duration := time.Since(started)
	if r.stats != nil {
		r.stats.RecordLookup(duration, res.MultiDistrict, res.Found())
	}
	outcome := "resolved"
	switch {
	case res.Unavailable:
		outcome = "unavailable"
	case !res.Found():
		outcome = "not_found"
	}
	r.recorder.ObserveLookup(metrics.LookupSource(res.Source), outcome, res.MultiDistrict, duration)
}

package directory

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const legislatorsFixture = `
- id:
    bioguide: T000481
  name:
    first: Rashida
    last: Tlaib
    official_full: Rashida Tlaib
  terms:
  - type: rep
    state: MI
    district: 13
    party: Democrat
    start: '2023-01-03'
    end: '2031-01-03'
- id:
    bioguide: P000595
  name:
    first: Gary
    last: Peters
    official_full: Gary C. Peters
  terms:
  - type: rep
    state: MI
    district: 14
    party: Democrat
    start: '2013-01-03'
    end: '2015-01-03'
  - type: sen
    state: MI
    party: Democrat
    start: '2021-01-03'
    end: '2031-01-03'
- id:
    bioguide: S000033
  name:
    first: Bernard
    last: Sanders
  terms:
  - type: sen
    state: VT
    party: Independent
    start: '2025-01-03'
    end: '2031-01-03'
- id:
    bioguide: R000000
  name:
    first: Retired
    last: Member
  terms:
  - type: rep
    state: MI
    district: 1
    party: Republican
    start: '2013-01-03'
    end: '2015-01-03'
- id:
    bioguide: B000001
  name:
    first: Broken
    last: Dates
  terms:
  - type: rep
    state: OH
    district: 3
    party: Democrat
    start: 'soon'
    end: 'later'
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestDirectory(t *testing.T, handler http.HandlerFunc) (*Directory, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	dir := New(Config{DatasetURL: server.URL, TTL: time.Hour, Timeout: 2 * time.Second}, discardLogger(), nil)
	return dir, server
}

func serveFixture(w http.ResponseWriter, _ *http.Request) {
	io.WriteString(w, legislatorsFixture)
}

func TestAllFiltersToCurrentlyServing(t *testing.T) {
	dir, _ := newTestDirectory(t, serveFixture)

	roster := dir.All(context.Background())
	if len(roster) != 3 {
		t.Fatalf("expected 3 current members, got %d: %#v", len(roster), roster)
	}
	for _, rep := range roster {
		if rep.BioguideID == "R000000" {
			t.Fatalf("retired member should be filtered out")
		}
		if rep.BioguideID == "B000001" {
			t.Fatalf("member with unparseable term dates should be filtered out")
		}
	}
}

func TestByBioguide(t *testing.T) {
	dir, _ := newTestDirectory(t, serveFixture)
	ctx := context.Background()

	rep := dir.ByBioguide(ctx, "t000481")
	if rep == nil {
		t.Fatalf("expected case-insensitive bioguide lookup to succeed")
	}
	if rep.Name != "Rashida Tlaib" || rep.Chamber != ChamberHouse || rep.District != "13" {
		t.Fatalf("unexpected representative: %#v", rep)
	}
	if rep.Title != "Rep." {
		t.Fatalf("expected House title, got %q", rep.Title)
	}

	if got := dir.ByBioguide(ctx, "Z999999"); got != nil {
		t.Fatalf("expected nil for unknown bioguide, got %#v", got)
	}
}

func TestSenatorHasNoDistrict(t *testing.T) {
	dir, _ := newTestDirectory(t, serveFixture)

	rep := dir.ByBioguide(context.Background(), "P000595")
	if rep == nil {
		t.Fatalf("expected senator in roster")
	}
	if rep.Chamber != ChamberSenate || rep.District != "" {
		t.Fatalf("senator must have no district: %#v", rep)
	}
	if len(rep.Terms) != 2 {
		t.Fatalf("expected full term history, got %d terms", len(rep.Terms))
	}
}

func TestForDistrictJoinsSenatorsAndHouseMember(t *testing.T) {
	dir, _ := newTestDirectory(t, serveFixture)

	delegation := dir.ForDistrict(context.Background(), "mi", "13")
	if len(delegation) != 2 {
		t.Fatalf("expected senator + house member, got %d: %#v", len(delegation), delegation)
	}
	var sawSenate, sawHouse bool
	for _, rep := range delegation {
		switch rep.Chamber {
		case ChamberSenate:
			sawSenate = true
		case ChamberHouse:
			sawHouse = true
			if rep.District != "13" {
				t.Fatalf("wrong district joined: %#v", rep)
			}
		}
	}
	if !sawSenate || !sawHouse {
		t.Fatalf("delegation missing a chamber: %#v", delegation)
	}
}

func TestSearch(t *testing.T) {
	dir, _ := newTestDirectory(t, serveFixture)
	ctx := context.Background()

	if got := dir.Search(ctx, Filter{Name: "tlaib"}); len(got) != 1 {
		t.Fatalf("name search: expected 1 match, got %d", len(got))
	}
	if got := dir.Search(ctx, Filter{State: "MI"}); len(got) != 2 {
		t.Fatalf("state search: expected 2 matches, got %d", len(got))
	}
	if got := dir.Search(ctx, Filter{Chamber: ChamberSenate}); len(got) != 2 {
		t.Fatalf("chamber search: expected 2 senators, got %d", len(got))
	}
	if got := dir.Search(ctx, Filter{Party: "independent"}); len(got) != 1 {
		t.Fatalf("party search: expected 1 match, got %d", len(got))
	}
	if got := dir.Search(ctx, Filter{State: "MI", Chamber: ChamberHouse}); len(got) != 1 {
		t.Fatalf("combined search: expected 1 match, got %d", len(got))
	}
}

func TestRosterCachedWithinTTL(t *testing.T) {
	var fetches atomic.Int64
	dir, _ := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		serveFixture(w, r)
	})
	ctx := context.Background()

	dir.All(ctx)
	dir.All(ctx)
	dir.ByBioguide(ctx, "T000481")
	if got := fetches.Load(); got != 1 {
		t.Fatalf("expected a single dataset fetch within ttl, got %d", got)
	}
}

func TestRosterRefreshedAfterTTL(t *testing.T) {
	var fetches atomic.Int64
	dir, _ := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		serveFixture(w, r)
	})
	ctx := context.Background()

	base := time.Now()
	dir.now = func() time.Time { return base }
	dir.All(ctx)

	dir.now = func() time.Time { return base.Add(2 * time.Hour) }
	dir.All(ctx)

	if got := fetches.Load(); got != 2 {
		t.Fatalf("expected refresh after ttl, got %d fetches", got)
	}
}

func TestUnreachableUpstreamYieldsEmptyRoster(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(serveFixture))
	server.Close()
	dir := New(Config{DatasetURL: server.URL, TTL: time.Hour, Timeout: time.Second}, discardLogger(), nil)

	roster := dir.All(context.Background())
	if len(roster) != 0 {
		t.Fatalf("expected empty roster when upstream is down, got %d", len(roster))
	}
	if got := dir.ByBioguide(context.Background(), "T000481"); got != nil {
		t.Fatalf("expected nil lookup when upstream is down")
	}
}

func TestStaleRosterServedWhileRefreshFails(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	dir, _ := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		serveFixture(w, r)
	})
	ctx := context.Background()

	base := time.Now()
	dir.now = func() time.Time { return base }
	if got := dir.All(ctx); len(got) == 0 {
		t.Fatalf("expected initial roster")
	}

	healthy.Store(false)
	dir.now = func() time.Time { return base.Add(2 * time.Hour) }
	if got := dir.All(ctx); len(got) != 3 {
		t.Fatalf("expected stale roster to keep serving, got %d", len(got))
	}
}

func TestParseLegislatorsMalformedYAML(t *testing.T) {
	if _, err := ParseLegislators([]byte("{not yaml"), time.Now()); err == nil {
		t.Fatalf("expected error for malformed dataset")
	}
}

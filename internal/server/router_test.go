package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/civiq/civiq/internal/cache"
	"github.com/civiq/civiq/internal/civic"
	"github.com/civiq/civiq/internal/directory"
	"github.com/civiq/civiq/internal/districts"
	"github.com/civiq/civiq/internal/metrics"
	"github.com/civiq/civiq/internal/resolver"
)

const rosterFixture = `
- id:
    bioguide: T000481
  name:
    official_full: Rashida Tlaib
  terms:
    - type: rep
      state: MI
      district: 13
      party: Democrat
      start: "2023-01-03"
      end: "2027-01-03"
- id:
    bioguide: P000595
  name:
    official_full: Gary Peters
  terms:
    - type: sen
      state: MI
      party: Democrat
      start: "2021-01-03"
      end: "2027-01-03"
`

const billsFixture = `{
  "sponsoredLegislation": [
    {"congress": 118, "type": "HR", "number": "4052", "title": "Restoring Communities Act",
     "introducedDate": "2023-06-13", "latestAction": {"text": "Referred."}, "url": "u"}
  ]
}`

const newsFixture = `{
  "articles": [
    {"title": "Headline", "url": "https://example.com/a", "domain": "example.com", "seendate": "20240130T120000Z"}
  ]
}`

func fixtureServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

// testHandler builds the full router over fixture-backed dependencies. The
// rollcall client is left nil so its endpoints answer 503.
func testHandler(t *testing.T) http.Handler {
	t.Helper()

	dir := directory.New(directory.Config{
		DatasetURL: fixtureServer(t, rosterFixture).URL,
		TTL:        time.Hour,
	}, newTestLogger(), nil)

	store := districts.NewStore(districts.NewTable(map[string][]districts.Mapping{
		"48221": {{State: "MI", District: "13", Primary: true}},
		"01007": {
			{State: "MA", District: "01", Primary: true},
			{State: "MA", District: "02"},
		},
	}))

	congress := civic.NewCongress(civic.CongressConfig{BaseURL: fixtureServer(t, billsFixture).URL, Timeout: time.Second},
		cache.NewMemory(time.Minute), nil)
	gdelt := civic.NewGDELT(civic.GDELTConfig{BaseURL: fixtureServer(t, newsFixture).URL, Timeout: time.Second},
		cache.NewMemory(time.Minute), nil)

	stats := metrics.NewLookupStats()
	res := resolver.New(store, nil, dir, stats, nil, newTestLogger())

	api := NewAPI(Deps{
		Logger:    newTestLogger(),
		Resolver:  res,
		Directory: dir,
		Districts: store,
		Congress:  congress,
		GDELT:     gdelt,
		Stats:     stats,
	})
	return NewRouter(api)
}

func doGet(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s response: %v\n%s", path, err, rec.Body.String())
		}
	}
	return rec, body
}

func TestLookupByZIP(t *testing.T) {
	handler := testHandler(t)

	rec, body := doGet(t, handler, "/representatives?zip=48221")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["state"] != "MI" {
		t.Fatalf("unexpected state: %v", body["state"])
	}
	reps, ok := body["representatives"].([]any)
	if !ok || len(reps) != 2 {
		t.Fatalf("expected 2 representatives, got %v", body["representatives"])
	}
	if body["multiDistrict"] != false {
		t.Fatalf("single-district ZIP flagged multi")
	}
}

func TestLookupByZIPPlusFour(t *testing.T) {
	handler := testHandler(t)

	rec, body := doGet(t, handler, "/representatives?zip=48221-1234")
	if rec.Code != http.StatusOK {
		t.Fatalf("ZIP+4 should resolve on its five-digit prefix, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["state"] != "MI" {
		t.Fatalf("unexpected state: %v", body["state"])
	}
}

func TestLookupByQParamZIP(t *testing.T) {
	handler := testHandler(t)

	rec, body := doGet(t, handler, "/representatives?q=01007")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["multiDistrict"] != true {
		t.Fatalf("expected multi-district result: %v", body)
	}
}

func TestLookupNameSearch(t *testing.T) {
	handler := testHandler(t)

	rec, body := doGet(t, handler, "/representatives?q=Tlaib")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	reps, ok := body["representatives"].([]any)
	if !ok || len(reps) != 1 {
		t.Fatalf("expected 1 search hit, got %v", body["representatives"])
	}
}

func TestLookupValidation(t *testing.T) {
	handler := testHandler(t)

	rec, _ := doGet(t, handler, "/representatives")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing query: expected 400, got %d", rec.Code)
	}

	rec, _ = doGet(t, handler, "/representatives?zip=1234")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short zip: expected 400, got %d", rec.Code)
	}

	rec, body := doGet(t, handler, "/representatives?zip=00000")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown zip: expected 404, got %d", rec.Code)
	}
	if body["error"] == "" {
		t.Fatalf("expected error body")
	}
}

func TestProfile(t *testing.T) {
	handler := testHandler(t)

	rec, body := doGet(t, handler, "/representatives/T000481")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["bioguideId"] != "T000481" || body["chamber"] != "House" {
		t.Fatalf("unexpected profile: %v", body)
	}

	rec, _ = doGet(t, handler, "/representatives/Z999999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown member: expected 404, got %d", rec.Code)
	}
}

func TestBills(t *testing.T) {
	handler := testHandler(t)

	rec, body := doGet(t, handler, "/representatives/T000481/bills")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	bills, ok := body["bills"].([]any)
	if !ok || len(bills) != 1 {
		t.Fatalf("expected 1 bill, got %v", body["bills"])
	}
}

func TestNews(t *testing.T) {
	handler := testHandler(t)

	rec, body := doGet(t, handler, "/representatives/T000481/news")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	articles, ok := body["articles"].([]any)
	if !ok || len(articles) != 1 {
		t.Fatalf("expected 1 article, got %v", body["articles"])
	}
}

func TestVotesUnconfigured(t *testing.T) {
	handler := testHandler(t)

	rec, _ := doGet(t, handler, "/representatives/P000595/votes")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without rollcall client, got %d", rec.Code)
	}
}

func TestDistrictsEndpoint(t *testing.T) {
	handler := testHandler(t)

	rec, body := doGet(t, handler, "/districts/01007")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	mappings, ok := body["districts"].([]any)
	if !ok || len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %v", body["districts"])
	}
	if body["multiDistrict"] != true {
		t.Fatalf("expected multiDistrict true")
	}

	rec, body = doGet(t, handler, "/districts/01007-0007")
	if rec.Code != http.StatusOK {
		t.Fatalf("ZIP+4: expected 200, got %d", rec.Code)
	}
	if body["zip"] != "01007" {
		t.Fatalf("expected canonical zip in response, got %v", body["zip"])
	}

	rec, _ = doGet(t, handler, "/districts/abcde")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric zip: expected 400, got %d", rec.Code)
	}

	rec, _ = doGet(t, handler, "/districts/99999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unmapped zip: expected 404, got %d", rec.Code)
	}
}

func TestHealthAndDiagnostics(t *testing.T) {
	handler := testHandler(t)

	rec, body := doGet(t, handler, "/healthz")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", rec.Code, body)
	}

	// One lookup, then the diagnostics snapshot must reflect it.
	if rec, _ := doGet(t, handler, "/representatives?zip=48221"); rec.Code != http.StatusOK {
		t.Fatalf("lookup failed: %d", rec.Code)
	}
	rec, body = doGet(t, handler, "/diagnostics/lookups")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["totalLookups"] != float64(1) || body["directHits"] != float64(1) {
		t.Fatalf("unexpected snapshot: %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := testHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/representatives?zip=48221", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	handler := testHandler(t)

	rec, _ := doGet(t, handler, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/civiq/civiq/internal/civic"
	"github.com/civiq/civiq/internal/directory"
	"github.com/civiq/civiq/internal/districts"
	"github.com/civiq/civiq/internal/geocode"
	"github.com/civiq/civiq/internal/metrics"
	"github.com/civiq/civiq/internal/resolver"
)

// Deps collects everything the HTTP surface needs. Upstream clients may be
// nil, in which case their detail endpoints answer 503.
type Deps struct {
	Logger    *slog.Logger
	Resolver  *resolver.Resolver
	Directory *directory.Directory
	Districts *districts.Store
	Congress  *civic.CongressClient
	FEC       *civic.FECClient
	Rollcall  *civic.RollcallClient
	GDELT     *civic.GDELTClient
	Stats     metrics.Sink
	Recorder  *metrics.Recorder
}

// API implements the request handlers behind the router.
type API struct {
	deps    Deps
	started time.Time
}

// NewAPI builds the handler set.
func NewAPI(deps Deps) *API {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &API{deps: deps, started: time.Now()}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.deps.Logger.Warn("response encode failed", "error", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}

// upstreamStatus maps a detail-endpoint error to an HTTP status: tagged
// upstream failures are 503, anything else is a plain 502.
func (a *API) writeUpstreamError(w http.ResponseWriter, err error) {
	var tagged *civic.UpstreamError
	if errors.As(err, &tagged) {
		a.deps.Logger.Warn("upstream failure", "dependency", tagged.Dependency, "status", tagged.Status, "error", err)
		a.writeError(w, http.StatusServiceUnavailable, "data unavailable")
		return
	}
	a.deps.Logger.Warn("upstream failure", "error", err)
	a.writeError(w, http.StatusBadGateway, "data unavailable")
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":        "ok",
		"uptimeSeconds": int(time.Since(a.started).Seconds()),
	}
	if a.deps.Directory != nil {
		payload["rosterSize"] = a.deps.Directory.Len()
	}
	if a.deps.Districts != nil {
		payload["zipTableSize"] = a.deps.Districts.Table().Len()
	}
	a.writeJSON(w, http.StatusOK, payload)
}

func (a *API) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if a.deps.Stats == nil {
		a.writeError(w, http.StatusNotFound, "lookup statistics not enabled")
		return
	}
	a.writeJSON(w, http.StatusOK, a.deps.Stats.Snapshot())
}

func (a *API) handleDistricts(w http.ResponseWriter, r *http.Request, zip string) {
	zip = geocode.CanonicalZIP(zip)
	if zip == "" {
		a.writeError(w, http.StatusBadRequest, "zip must be five digits")
		return
	}
	mappings := a.deps.Districts.Table().AllForZIP(zip)
	if len(mappings) == 0 {
		a.writeError(w, http.StatusNotFound, "no district mapping for zip")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"zip":           zip,
		"state":         mappings[0].State,
		"districts":     mappings,
		"multiDistrict": len(mappings) > 1,
	})
}

// handleLookup answers /representatives with zip=, address=, or free-text q=.
// A q that is neither a ZIP nor address-shaped falls back to a roster name
// search.
func (a *API) handleLookup(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := resolver.Query{
		ZIP:     strings.TrimSpace(params.Get("zip")),
		Address: strings.TrimSpace(params.Get("address")),
	}

	if q := strings.TrimSpace(params.Get("q")); q != "" && query.ZIP == "" && query.Address == "" {
		switch {
		case geocode.LooksLikeZIP(q):
			query.ZIP = q
		case looksLikeAddress(q):
			query.Address = q
		default:
			a.handleNameSearch(w, r, q)
			return
		}
	}

	if query.ZIP != "" && !geocode.LooksLikeZIP(query.ZIP) {
		a.writeError(w, http.StatusBadRequest, "zip must be five digits")
		return
	}

	res, err := a.deps.Resolver.Resolve(r.Context(), query)
	if err != nil {
		if errors.Is(err, resolver.ErrMissingQuery) {
			a.writeError(w, http.StatusBadRequest, "zip, address, or q parameter required")
			return
		}
		a.deps.Logger.Error("lookup failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if res.Unavailable {
		a.writeError(w, http.StatusServiceUnavailable, "data unavailable")
		return
	}
	if !res.Found() {
		a.writeError(w, http.StatusNotFound, "no districts found for query")
		return
	}
	a.writeJSON(w, http.StatusOK, res)
}

func (a *API) handleNameSearch(w http.ResponseWriter, r *http.Request, name string) {
	filter := directory.Filter{
		Name:  name,
		State: strings.TrimSpace(r.URL.Query().Get("state")),
		Party: strings.TrimSpace(r.URL.Query().Get("party")),
	}
	matches := a.deps.Directory.Search(r.Context(), filter)
	a.writeJSON(w, http.StatusOK, map[string]any{"representatives": matches})
}

func (a *API) member(w http.ResponseWriter, r *http.Request, bioguideID string) *directory.Representative {
	rep := a.deps.Directory.ByBioguide(r.Context(), bioguideID)
	if rep == nil {
		a.writeError(w, http.StatusNotFound, "unknown bioguide id")
		return nil
	}
	return rep
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request, bioguideID string) {
	rep := a.member(w, r, bioguideID)
	if rep == nil {
		return
	}
	a.writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleBills(w http.ResponseWriter, r *http.Request, bioguideID string) {
	rep := a.member(w, r, bioguideID)
	if rep == nil {
		return
	}
	if a.deps.Congress == nil {
		a.writeError(w, http.StatusServiceUnavailable, "data unavailable")
		return
	}
	bills, err := a.deps.Congress.SponsoredBills(r.Context(), rep.BioguideID, intParam(r, "limit", 20))
	if err != nil {
		a.writeUpstreamError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"bioguideId": rep.BioguideID,
		"bills":      bills,
	})
}

// handleVotes is chamber-dependent: senators get the session's roll-call
// summaries; House members get one roll call (year + roll params) with their
// own position pulled out.
func (a *API) handleVotes(w http.ResponseWriter, r *http.Request, bioguideID string) {
	rep := a.member(w, r, bioguideID)
	if rep == nil {
		return
	}
	if a.deps.Rollcall == nil {
		a.writeError(w, http.StatusServiceUnavailable, "data unavailable")
		return
	}

	now := time.Now()
	switch rep.Chamber {
	case directory.ChamberSenate:
		congress := intParam(r, "congress", congressForYear(now.Year()))
		session := intParam(r, "session", sessionForYear(now.Year()))
		votes, err := a.deps.Rollcall.SenateVotes(r.Context(), congress, session)
		if err != nil {
			a.writeUpstreamError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]any{
			"bioguideId": rep.BioguideID,
			"congress":   congress,
			"session":    session,
			"votes":      votes,
		})
	case directory.ChamberHouse:
		roll := intParam(r, "roll", 0)
		if roll <= 0 {
			a.writeError(w, http.StatusBadRequest, "roll parameter required for House votes")
			return
		}
		year := intParam(r, "year", now.Year())
		vote, err := a.deps.Rollcall.HouseRollcall(r.Context(), year, roll)
		if err != nil {
			a.writeUpstreamError(w, err)
			return
		}
		if vote == nil {
			a.writeError(w, http.StatusNotFound, "roll call not found")
			return
		}
		payload := map[string]any{
			"bioguideId": rep.BioguideID,
			"year":       year,
			"vote":       vote.Vote,
		}
		for _, pos := range vote.Positions {
			if pos.BioguideID == rep.BioguideID {
				payload["position"] = pos
				break
			}
		}
		a.writeJSON(w, http.StatusOK, payload)
	default:
		a.writeError(w, http.StatusNotFound, "no vote records for member")
	}
}

func (a *API) handleFinance(w http.ResponseWriter, r *http.Request, bioguideID string) {
	rep := a.member(w, r, bioguideID)
	if rep == nil {
		return
	}
	if a.deps.FEC == nil {
		a.writeError(w, http.StatusServiceUnavailable, "data unavailable")
		return
	}

	office := "H"
	if rep.Chamber == directory.ChamberSenate {
		office = "S"
	}
	candidates, err := a.deps.FEC.SearchCandidates(r.Context(), rep.Name, rep.State, office)
	if err != nil {
		a.writeUpstreamError(w, err)
		return
	}
	if len(candidates) == 0 {
		a.writeError(w, http.StatusNotFound, "no finance records for member")
		return
	}
	summary, err := a.deps.FEC.CandidateTotals(r.Context(), candidates[0].CandidateID)
	if err != nil {
		a.writeUpstreamError(w, err)
		return
	}
	if summary == nil {
		a.writeError(w, http.StatusNotFound, "no finance records for member")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"bioguideId": rep.BioguideID,
		"finance":    summary,
	})
}

func (a *API) handleNews(w http.ResponseWriter, r *http.Request, bioguideID string) {
	rep := a.member(w, r, bioguideID)
	if rep == nil {
		return
	}
	if a.deps.GDELT == nil {
		a.writeError(w, http.StatusServiceUnavailable, "data unavailable")
		return
	}
	articles, err := a.deps.GDELT.News(r.Context(), rep.Name, intParam(r, "limit", 10))
	if err != nil {
		a.writeUpstreamError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"bioguideId": rep.BioguideID,
		"articles":   articles,
	})
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// looksLikeAddress reports whether free text is address-shaped: it carries a
// ZIP, starts with a house number, or has comma-separated locality parts.
func looksLikeAddress(q string) bool {
	components := geocode.ParseAddressComponents(q)
	if components.ZIP != "" || components.Street != "" {
		return true
	}
	return strings.Contains(q, ",") && components.State != ""
}

// congressForYear maps a calendar year to its Congress number. The 1st
// Congress convened in 1789; each seats for two years.
func congressForYear(year int) int {
	return (year-1789)/2 + 1
}

// sessionForYear: odd years open a Congress (session 1), even years close it.
func sessionForYear(year int) int {
	if year%2 == 0 {
		return 2
	}
	return 1
}

package server

import (
	"net/http"
	"strings"
)

// NewRouter dispatches URL paths onto the API handlers. Routing stays here so
// the handlers never parse paths themselves.
func NewRouter(api *API) http.Handler {
	if api == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		})
	}
	var metricsHandler http.Handler
	if api.deps.Recorder != nil {
		metricsHandler = api.deps.Recorder.Handler()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		parts := splitPath(r.URL.Path)
		switch {
		case len(parts) == 1 && parts[0] == "healthz":
			api.handleHealth(w, r)
		case len(parts) == 1 && parts[0] == "metrics":
			if metricsHandler == nil {
				api.writeError(w, http.StatusNotFound, "metrics not enabled")
				return
			}
			metricsHandler.ServeHTTP(w, r)
		case len(parts) == 2 && parts[0] == "diagnostics" && parts[1] == "lookups":
			api.handleDiagnostics(w, r)
		case len(parts) == 2 && parts[0] == "districts":
			api.handleDistricts(w, r, parts[1])
		case parts[0] == "representatives":
			routeRepresentatives(api, w, r, parts[1:])
		default:
			api.writeError(w, http.StatusNotFound, "not found")
		}
	})
}

func routeRepresentatives(api *API, w http.ResponseWriter, r *http.Request, rest []string) {
	switch len(rest) {
	case 0:
		api.handleLookup(w, r)
	case 1:
		api.handleProfile(w, r, rest[0])
	case 2:
		switch strings.ToLower(rest[1]) {
		case "bills":
			api.handleBills(w, r, rest[0])
		case "votes":
			api.handleVotes(w, r, rest[0])
		case "finance":
			api.handleFinance(w, r, rest[0])
		case "news":
			api.handleNews(w, r, rest[0])
		default:
			api.writeError(w, http.StatusNotFound, "not found")
		}
	default:
		api.writeError(w, http.StatusNotFound, "not found")
	}
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{""}
	}
	return strings.Split(trimmed, "/")
}

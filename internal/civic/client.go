// Package civic wraps the external government APIs the service proxies:
// Congress.gov for legislation, FEC.gov for campaign finance, the Senate and
// House roll-call feeds for votes, and GDELT for news coverage. Every client
// funnels through the shared result cache so repeated requests for the same
// entity are served from memory within a TTL window, and every upstream
// failure is normalized to a tagged error at this boundary.
package civic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/civiq/civiq/internal/cache"
	"github.com/civiq/civiq/internal/metrics"
)

// UpstreamError tags any failure talking to an external dependency. Handlers
// map it to a "data unavailable" response; it never surfaces as fabricated
// data or an unhandled panic.
type UpstreamError struct {
	Dependency string
	Status     int
	Reason     string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Dependency, e.Reason, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Dependency, e.Reason)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// fetcher bundles what every upstream client needs: a bounded HTTP client,
// the shared result cache, and instrumentation.
type fetcher struct {
	dependency string
	http       *http.Client
	store      cache.Store
	ttl        time.Duration
	recorder   *metrics.Recorder
}

func newFetcher(dependency string, timeout, ttl time.Duration, store cache.Store, recorder *metrics.Recorder) fetcher {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return fetcher{
		dependency: dependency,
		http:       &http.Client{Timeout: timeout},
		store:      store,
		ttl:        ttl,
		recorder:   recorder,
	}
}

// get performs one instrumented GET and returns the body. Non-2xx statuses
// and transport failures come back as tagged upstream errors.
func (f fetcher) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &UpstreamError{Dependency: f.dependency, Reason: "build request", Err: err}
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	start := time.Now()
	resp, err := f.http.Do(req)
	if err != nil {
		f.recorder.ObserveUpstream(f.dependency, 0, time.Since(start))
		return nil, &UpstreamError{Dependency: f.dependency, Reason: "unreachable", Err: err}
	}
	defer resp.Body.Close()
	f.recorder.ObserveUpstream(f.dependency, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Dependency: f.dependency, Status: resp.StatusCode, Reason: "request rejected"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &UpstreamError{Dependency: f.dependency, Reason: "read response", Err: err}
	}
	return body, nil
}

// cachedJSON wraps get in the result cache: producer output must already be
// JSON. Cache hits and misses are observed on the recorder.
func (f fetcher) cachedJSON(ctx context.Context, key string, produce func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	payload, hit, err := cache.Fetch(ctx, f.store, key, f.ttl, produce)
	if err != nil {
		f.recorder.ObserveCache(metrics.CacheOperationLookup, string(metrics.CacheLookupError))
		return nil, err
	}
	if hit {
		f.recorder.ObserveCache(metrics.CacheOperationLookup, string(metrics.CacheLookupHit))
	} else {
		f.recorder.ObserveCache(metrics.CacheOperationLookup, string(metrics.CacheLookupMiss))
	}
	return payload, nil
}

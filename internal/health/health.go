// Package health serves the liveness and readiness probes for a Duplex
// host.
//
//   - /healthz — liveness; a process that can answer HTTP is alive.
//   - /readyz  — readiness; passes only when every registered [Checker]
//     passes. Hosts typically register the engine's sampling loop and any
//     provider reachability probes here.
//
// Both endpoints answer JSON: a top-level "status" of "ok" or "fail", and
// for readiness a "checks" map with the per-checker outcome.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds each readiness check individually. Checks run
// concurrently, so a slow dependency delays the probe by at most this long.
const DefaultCheckTimeout = 5 * time.Second

// Checker is one named readiness probe.
type Checker struct {
	// Name labels the check in the JSON response (e.g. "engine", "stt").
	Name string

	// Check probes the dependency, returning nil when healthy. It must
	// respect context cancellation.
	Check func(ctx context.Context) error
}

// NewCheck is a convenience constructor for a [Checker].
func NewCheck(name string, fn func(ctx context.Context) error) Checker {
	return Checker{Name: name, Check: fn}
}

// Handler serves the probe endpoints. Safe for concurrent use; the checker
// list is fixed at construction.
type Handler struct {
	checkers []Checker
	timeout  time.Duration
}

// New creates a [Handler] evaluating the given checkers on every /readyz
// request. Checks run concurrently; each gets its own deadline.
func New(checkers ...Checker) *Handler {
	return &Handler{
		checkers: append([]Checker(nil), checkers...),
		timeout:  DefaultCheckTimeout,
	}
}

// result is the JSON response body for both probes.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz always answers 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz answers 200 only when every registered [Checker] passes, 503
// otherwise. All checks run, even after the first failure, so the response
// always reports the full picture.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	outcomes := make([]string, len(h.checkers))

	g, ctx := errgroup.WithContext(r.Context())
	for i, c := range h.checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			if err := c.Check(checkCtx); err != nil {
				outcomes[i] = "fail: " + err.Error()
			} else {
				outcomes[i] = "ok"
			}
			// Failures are reported in the body, never as a group error:
			// one broken dependency must not cancel the sibling checks.
			return nil
		})
	}
	// The goroutines never return errors; failures live in outcomes.
	_ = g.Wait()

	res := result{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		res.Checks[c.Name] = outcomes[i]
		if outcomes[i] != "ok" {
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

// Package health serves liveness and readiness probes for a running game
// session.
//
//   - /healthz answers 200 whenever the process can serve HTTP.
//   - /readyz runs every registered probe and answers 200 only if all pass;
//     a session whose LLM backends are all benched is alive but not ready.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// DefaultProbeTimeout bounds a single probe per /readyz request.
const DefaultProbeTimeout = 5 * time.Second

// Probe is one named readiness condition. Fn returns nil when the condition
// holds and must respect context cancellation.
type Probe struct {
	Name string
	Fn   func(ctx context.Context) error
}

// report is the /readyz response body.
type report struct {
	Ready  bool          `json:"ready"`
	Probes []probeResult `json:"probes,omitempty"`
}

type probeResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Handler evaluates probes on demand. Safe for concurrent use; the probe list
// is fixed at construction.
type Handler struct {
	timeout time.Duration
	probes  []Probe
}

// Option configures a Handler.
type Option func(*Handler)

// WithProbeTimeout overrides DefaultProbeTimeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// New returns a Handler that evaluates the given probes, in order, on each
// /readyz request.
func New(probes []Probe, opts ...Option) *Handler {
	h := &Handler{
		timeout: DefaultProbeTimeout,
		probes:  append([]Probe(nil), probes...),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.serveLive)
	mux.HandleFunc("GET /readyz", h.serveReady)
}

func (h *Handler) serveLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Ready: true})
}

func (h *Handler) serveReady(w http.ResponseWriter, r *http.Request) {
	rep := report{Ready: true}
	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := p.Fn(ctx)
		cancel()

		res := probeResult{Name: p.Name, OK: err == nil}
		if err != nil {
			res.Error = err.Error()
			rep.Ready = false
		}
		rep.Probes = append(rep.Probes, res)
	}

	status := http.StatusOK
	if !rep.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"ready":false}`, http.StatusInternalServerError)
	}
}

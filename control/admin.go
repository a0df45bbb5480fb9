// control/admin.go
// Author: momentics <momentics@gmail.com>
//
// Admin HTTP surface: Prometheus scrape endpoint, debug state and liveness.

package control

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewAdminRouter serves /metrics, /debug/state, /debug/state/{name} and
// /healthz. A nil probes registry serves an empty state object.
func NewAdminRouter(m *Metrics, probes *DebugProbes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	if m != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	}

	r.Get("/debug/state", func(w http.ResponseWriter, _ *http.Request) {
		state := map[string]any{}
		if probes != nil {
			state = probes.DumpState()
		}
		writeJSON(w, state)
	})

	r.Get("/debug/state/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		if probes == nil {
			http.NotFound(w, req)
			return
		}
		v, ok := probes.Probe(name)
		if !ok {
			http.NotFound(w, req)
			return
		}
		writeJSON(w, map[string]any{name: v})
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

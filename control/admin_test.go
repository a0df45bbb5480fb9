package control

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAdminRouter(t *testing.T) {
	m := NewMetrics()
	m.ConnectionAccepted()

	probes := NewDebugProbes()
	probes.RegisterProbe("connections", func() any { return 7 })
	RegisterPlatformProbes(probes)

	srv := httptest.NewServer(NewAdminRouter(m, probes))
	defer srv.Close()

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(body), "wsrelay_connections_accepted_total 1") {
			t.Errorf("scrape missing accepted counter:\n%s", body)
		}
	})

	t.Run("debug state", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/debug/state")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var state map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			t.Fatal(err)
		}
		if state["connections"] != float64(7) {
			t.Errorf("connections = %v", state["connections"])
		}
		if _, ok := state["platform.cpus"]; !ok {
			t.Error("platform probes missing")
		}
	})

	t.Run("single probe", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/debug/state/connections")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var state map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			t.Fatal(err)
		}
		if len(state) != 1 || state["connections"] != float64(7) {
			t.Errorf("state = %v", state)
		}
	})

	t.Run("unknown probe", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/debug/state/missing")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nope")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

func TestAdminRouterWithoutProbes(t *testing.T) {
	rec := httptest.NewRecorder()
	NewAdminRouter(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/state", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "{}" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestDebugProbesNames(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("b", func() any { return 1 })
	dp.RegisterProbe("a", func() any { return 2 })
	dp.RegisterProbe("b", func() any { return 3 })

	names := dp.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("names = %v", names)
	}
	if got := dp.DumpState()["b"]; got != 3 {
		t.Errorf("replaced probe returned %v", got)
	}
}

func TestDebugProbesPanicReported(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("ok", func() any { return "fine" })
	dp.RegisterProbe("broken", func() any { panic("boom") })

	state := dp.DumpState()
	if state["ok"] != "fine" {
		t.Errorf("ok = %v", state["ok"])
	}
	if got, _ := state["broken"].(string); !strings.Contains(got, "boom") {
		t.Errorf("broken = %v", state["broken"])
	}
}

func TestDebugProbesReentrant(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("count", func() any { return len(dp.Names()) })
	dp.RegisterProbe("other", func() any { return 1 })

	if got := dp.DumpState()["count"]; got != 2 {
		t.Errorf("count = %v", got)
	}
	if v, ok := dp.Probe("other"); !ok || v != 1 {
		t.Errorf("Probe(other) = %v, %v", v, ok)
	}
	if _, ok := dp.Probe("missing"); ok {
		t.Error("missing probe reported")
	}
}

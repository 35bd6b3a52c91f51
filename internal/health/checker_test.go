package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

func ok(detail string) Probe {
	return func(context.Context) (string, error) { return detail, nil }
}

func failing(msg string) Probe {
	return func(context.Context) (string, error) { return "", errors.New(msg) }
}

// flaky fails the first n calls.
func flaky(n int) Probe {
	calls := 0
	return func(context.Context) (string, error) {
		calls++
		if calls <= n {
			return "", errors.New("down")
		}
		return "up", nil
	}
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestCheck_aggregatesStatus(t *testing.T) {
	cases := []struct {
		name       string
		components []Component
		want       string
	}{
		{"all healthy", []Component{
			{Name: "text_normalizer", Critical: true, Probe: ok("ready")},
			{Name: "database", Probe: ok("memory")},
		}, StatusHealthy},
		{"optional failing", []Component{
			{Name: "text_normalizer", Critical: true, Probe: ok("ready")},
			{Name: "incident_classifier", Probe: failing("no model")},
		}, StatusDegraded},
		{"critical failing", []Component{
			{Name: "text_normalizer", Critical: true, Probe: failing("dictionary missing")},
			{Name: "incident_classifier", Probe: failing("no model")},
		}, StatusUnhealthy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New("test", Config{}, zap.NewNop(), tc.components...)
			r := h.Check(context.Background())
			if r.Status != tc.want {
				t.Errorf("status = %s, want %s (%+v)", r.Status, tc.want, r.Components)
			}
			if len(r.Components) != len(tc.components) {
				t.Errorf("got %d components, want %d", len(r.Components), len(tc.components))
			}
			if r.Version != "test" {
				t.Errorf("version = %q", r.Version)
			}
		})
	}
}

func TestCheck_componentDetail(t *testing.T) {
	h := New("v", Config{}, zap.NewNop(),
		Component{Name: "database", Probe: failing("connection refused")})
	r := h.Check(context.Background())
	st := r.Components["database"]
	if st.Status != StatusDegraded || st.Error != "connection refused" {
		t.Errorf("database = %+v", st)
	}
}

func TestCheck_transitionsAtThreshold(t *testing.T) {
	var events []bool
	h := New("v", Config{FailThreshold: 3, ProbeTimeout: time.Second}, zap.NewNop(),
		Component{Name: "database", Probe: flaky(3)})
	h.SetTransition(func(_ string, healthy bool) { events = append(events, healthy) })

	for i := 0; i < 4; i++ {
		h.Check(context.Background())
	}
	if len(events) != 2 || events[0] || !events[1] {
		t.Errorf("transitions = %v, want [false true]", events)
	}
}

func TestCheck_recordsMetrics(t *testing.T) {
	var mu sync.Mutex
	got := map[string]bool{}
	h := New("v", Config{}, zap.NewNop(),
		Component{Name: "a", Probe: ok("")},
		Component{Name: "b", Probe: failing("x")})
	h.SetMetricsRecord(func(name string, success bool) {
		mu.Lock()
		got[name] = success
		mu.Unlock()
	})
	h.Check(context.Background())
	if len(got) != 2 || !got["a"] || got["b"] {
		t.Errorf("metrics = %v", got)
	}
}

func TestLast_beforeAnyCheck(t *testing.T) {
	h := New("v", Config{}, zap.NewNop(), Component{Name: "a", Probe: ok("")})
	r := h.Last()
	if r.Status != StatusHealthy || len(r.Components) != 0 {
		t.Errorf("Last() = %+v", r)
	}
}

func TestStart_runsUntilStopClosed(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	probe := func(context.Context) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "ok", nil
	}
	h := New("test", Config{CheckInterval: 5 * time.Millisecond}, zap.NewNop(),
		Component{Name: "db", Probe: probe})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		h.Start(stop)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("check loop never probed")
		}
		time.Sleep(time.Millisecond)
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after stop was closed")
	}
}

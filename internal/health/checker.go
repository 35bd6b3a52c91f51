// Package health aggregates component readiness for /healthz and the gRPC
// health service.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Component statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe reports one component's state. A non-nil error marks it failed.
type Probe func(ctx context.Context) (string, error)

// Component is a named probe. Critical components make the whole service
// unhealthy when they fail; the others only degrade it.
type Component struct {
	Name     string
	Critical bool
	Probe    Probe
}

// ComponentStatus is the last observed state of one component.
type ComponentStatus struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report is the aggregated readiness view.
type Report struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentStatus `json:"components"`
}

// TransitionFunc is called when a component crosses the fail threshold in
// either direction.
type TransitionFunc func(component string, healthy bool)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(component string, success bool)

// Checker runs the component probes.
type Checker struct {
	components   []Component
	version      string
	cfg          Config
	mu           sync.Mutex
	failCounts   map[string]int
	last         map[string]ComponentStatus
	onTransition TransitionFunc
	onMetrics    MetricsRecordFunc
	logger       *zap.Logger
}

// New creates a Checker.
func New(version string, cfg Config, logger *zap.Logger, components ...Component) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{
		components: components,
		version:    version,
		cfg:        cfg,
		failCounts: make(map[string]int),
		last:       make(map[string]ComponentStatus),
		logger:     logger,
	}
}

// SetTransition configures the threshold transition callback.
func (h *Checker) SetTransition(fn TransitionFunc) {
	h.onTransition = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs the check loop until stop is closed.
func (h *Checker) Start(stop <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Check(context.Background())
		case <-stop:
			return
		}
	}
}

// Check probes every component concurrently and returns the aggregate.
func (h *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, c := range h.components {
		wg.Add(1)
		go func(c Component) {
			defer wg.Done()
			detail, err := c.Probe(ctx)
			h.record(c, detail, err)
		}(c)
	}
	wg.Wait()
	return h.Last()
}

func (h *Checker) record(c Component, detail string, err error) {
	success := err == nil
	if h.onMetrics != nil {
		h.onMetrics(c.Name, success)
	}

	st := ComponentStatus{Status: StatusHealthy, Detail: detail}
	if !success {
		st.Status = StatusDegraded
		if c.Critical {
			st.Status = StatusUnhealthy
		}
		st.Error = err.Error()
	}

	h.mu.Lock()
	prevCount := h.failCounts[c.Name]
	if success {
		h.failCounts[c.Name] = 0
	} else {
		h.failCounts[c.Name]++
	}
	count := h.failCounts[c.Name]
	h.last[c.Name] = st
	h.mu.Unlock()

	switch {
	case success && prevCount >= h.cfg.FailThreshold:
		h.logger.Info("health: recovered", zap.String("component", c.Name))
		if h.onTransition != nil {
			h.onTransition(c.Name, true)
		}
	case !success && count == h.cfg.FailThreshold:
		h.logger.Warn("health: failing",
			zap.String("component", c.Name),
			zap.Int("fail_count", count),
			zap.Error(err),
		)
		if h.onTransition != nil {
			h.onTransition(c.Name, false)
		}
	}
}

// Last returns the aggregate of the most recent probe results without
// probing. Components never probed are omitted.
func (h *Checker) Last() Report {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := Report{
		Status:     StatusHealthy,
		Version:    h.version,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentStatus, len(h.last)),
	}
	names := make([]string, 0, len(h.last))
	for name := range h.last {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := h.last[name]
		r.Components[name] = st
		switch {
		case st.Status == StatusUnhealthy:
			r.Status = StatusUnhealthy
		case st.Status == StatusDegraded && r.Status == StatusHealthy:
			r.Status = StatusDegraded
		}
	}
	return r
}

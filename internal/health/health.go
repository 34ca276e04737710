// Package health reports process health for the HTTP proxy and the daemon.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Status is the current health state.
type Status struct {
	Status               string        `json:"status"`
	UptimeSeconds        int64         `json:"uptime_seconds"`
	MemoryMB             float64       `json:"memory_mb"`
	PendingNotifications int           `json:"pending_notifications"`
	LastCheck            time.Time     `json:"last_check"`
	Version              string        `json:"version,omitempty"`
	Goroutines           int           `json:"goroutines"`
	Checks               []CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Checker aggregates named checks.
type Checker struct {
	mu        sync.RWMutex
	startTime time.Time
	lastCheck time.Time
	version   string
	pending   func() int
	checks    map[string]CheckFunc
}

// NewChecker creates a checker reporting version.
func NewChecker(version string) *Checker {
	return &Checker{
		startTime: time.Now(),
		version:   version,
		checks:    make(map[string]CheckFunc),
	}
}

// AddCheck registers check under name, replacing any previous one.
func (h *Checker) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// RemoveCheck unregisters a check.
func (h *Checker) RemoveCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.checks, name)
}

// SetPendingSource reports fn() as the number of queued notifications.
func (h *Checker) SetPendingSource(fn func() int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = fn
}

// Check runs every registered check in name order.
func (h *Checker) Check(ctx context.Context) *Status {
	h.mu.Lock()
	h.lastCheck = time.Now()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	pending := h.pending
	status := &Status{
		Status:        StatusHealthy,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		LastCheck:     h.lastCheck,
		Version:       h.version,
	}
	h.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		res := CheckResult{Name: name, Healthy: true}
		if err := checks[name](ctx); err != nil {
			res.Healthy = false
			res.Error = err.Error()
			status.Status = StatusUnhealthy
		}
		status.Checks = append(status.Checks, res)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	status.MemoryMB = float64(mem.Alloc) / 1024 / 1024
	status.Goroutines = runtime.NumGoroutine()
	if pending != nil {
		status.PendingNotifications = pending()
	}
	return status
}

// IsHealthy reports whether every check passes.
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Status == StatusHealthy
}

// Uptime returns how long the checker has existed.
func (h *Checker) Uptime() time.Duration {
	return time.Since(h.startTime)
}

// JSON returns the indented health status.
func (h *Checker) JSON(ctx context.Context) ([]byte, error) {
	return json.MarshalIndent(h.Check(ctx), "", "  ")
}

// ServeHTTP writes the status as JSON, with 503 when unhealthy.
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())
	code := http.StatusOK
	if status.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

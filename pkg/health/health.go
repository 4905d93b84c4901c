// Package health provides Kubernetes-style liveness and readiness probe
// support.
//
// Registered checks run periodically in a background goroutine. Checks use
// failure/success thresholds (inspired by Kubernetes probe configuration) to
// avoid flapping: a check must fail consecutively failureThreshold times
// before being marked unhealthy, and succeed successThreshold times before
// being marked healthy again.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc is a health check function. It should return nil if the checked
// component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// checkConfig holds the configuration and runtime state for a single check.
//
// Concurrency model: run() is called from exactly one goroutine (the ticker).
// The consecutive counters are only accessed by run(), so they need no
// synchronization. The healthy flag and lastErr are read by HTTP handlers
// from arbitrary goroutines, so they use atomic operations.
type checkConfig struct {
	name             string
	timeout          time.Duration
	check            CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func (c *checkConfig) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.check(checkCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= c.failureThreshold {
			c.healthy.Store(false)
		}
	} else {
		c.consecutiveFails = 0
		c.consecutiveOK++
		if c.consecutiveOK >= c.successThreshold {
			c.healthy.Store(true)
		}
	}
}

func (c *checkConfig) getLastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	ready atomic.Bool

	// mu protects the check slices and cancel. Held during registration
	// (before Start) and in Start/Stop; HTTP handlers snapshot the slices
	// under RLock and release immediately.
	mu              sync.RWMutex
	livenessChecks  []*checkConfig
	readinessChecks []*checkConfig
	cancel          context.CancelFunc
}

// New creates a new Health instance. The service starts in a not-ready state;
// call SetReady(true) once initialization has finished.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a liveness check. Liveness checks determine
// whether the process is alive and functioning.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.addCheck(&h.livenessChecks, name, timeout, check)
}

// AddReadinessCheck registers a readiness check. Readiness checks determine
// whether the service can serve traffic (e.g. its database is reachable).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.addCheck(&h.readinessChecks, name, timeout, check)
}

func (h *Health) addCheck(list *[]*checkConfig, name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &checkConfig{
		name:             name,
		timeout:          timeout,
		check:            check,
		failureThreshold: 3,
		successThreshold: 1,
	}
	c.healthy.Store(true) // assume healthy until proven otherwise
	*list = append(*list, c)
}

// Start launches the background goroutine that runs all registered checks at
// the given interval. Checks also run once immediately.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, h.cancel = context.WithCancel(ctx)
	checks := make([]*checkConfig, 0, len(h.livenessChecks)+len(h.readinessChecks))
	checks = append(checks, h.livenessChecks...)
	checks = append(checks, h.readinessChecks...)

	go func() {
		for _, c := range checks {
			c.run(ctx)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, c := range checks {
					c.run(ctx)
				}
			}
		}
	}()
}

// Stop terminates the background check goroutine.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the overall readiness gate. A service that is not ready
// fails its readiness probe regardless of individual check results.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// response is the JSON body returned by the probe endpoints.
type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint is the HTTP handler for the liveness probe.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := h.livenessChecks
	h.mu.RUnlock()

	h.respond(w, checks, true)
}

// ReadyEndpoint is the HTTP handler for the readiness probe. It fails when
// SetReady(false) or when any readiness check is unhealthy.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := h.readinessChecks
	h.mu.RUnlock()

	h.respond(w, checks, h.ready.Load())
}

func (h *Health) respond(w http.ResponseWriter, checks []*checkConfig, gate bool) {
	healthy := gate
	results := make(map[string]string, len(checks))
	for _, c := range checks {
		if c.healthy.Load() {
			results[c.name] = "ok"
			continue
		}
		healthy = false
		if err := c.getLastError(); err != nil {
			results[c.name] = err.Error()
		} else {
			results[c.name] = "unhealthy"
		}
	}

	status := http.StatusOK
	body := response{Status: "ok", Checks: results}
	if !healthy {
		status = http.StatusServiceUnavailable
		body.Status = "unavailable"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

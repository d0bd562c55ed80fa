// Package health provides Kubernetes-style liveness and readiness endpoints.
// Checks run at request time with a per-check timeout; readiness additionally
// requires the manual ready gate, which graceful shutdown flips off first.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Probes holds the registered checks and the readiness gate.
type Probes struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []check
	readiness []check
}

// New creates a Probes instance. The service starts not ready; call
// SetReady(true) once initialization completes.
func New() *Probes {
	return &Probes{}
}

// AddLiveness registers a liveness check, e.g. a goroutine count guard.
func (p *Probes) AddLiveness(name string, timeout time.Duration, fn CheckFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.liveness = append(p.liveness, check{name: name, timeout: timeout, fn: fn})
}

// AddReadiness registers a readiness check, e.g. a database ping.
func (p *Probes) AddReadiness(name string, timeout time.Duration, fn CheckFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readiness = append(p.readiness, check{name: name, timeout: timeout, fn: fn})
}

// SetReady flips the manual readiness gate. Graceful shutdown sets it to
// false before draining so load balancers stop routing new traffic.
func (p *Probes) SetReady(ready bool) {
	p.ready.Store(ready)
}

// LiveEndpoint serves /livez.
func (p *Probes) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	checks := append([]check(nil), p.liveness...)
	p.mu.RUnlock()

	writeStatus(w, runChecks(r.Context(), checks))
}

// ReadyEndpoint serves /readyz.
func (p *Probes) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	checks := append([]check(nil), p.readiness...)
	p.mu.RUnlock()

	failures := runChecks(r.Context(), checks)
	if !p.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func runChecks(ctx context.Context, checks []check) map[string]string {
	failures := make(map[string]string)
	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.fn(checkCtx)
		cancel()
		if err != nil {
			failures[c.name] = err.Error()
		}
	}
	return failures
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	resp := statusResponse{Status: "ok"}
	status := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

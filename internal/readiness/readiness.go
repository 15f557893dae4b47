// Package readiness gates traffic until the model providers have been warmed
// up at least once.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

// Warmer is implemented by every model client.
type Warmer interface {
	Warmup(ctx context.Context) error
}

// Check is a named warmup step.
type Check struct {
	Name   string
	Warmer Warmer
}

// Gate runs its checks until each has succeeded once.
type Gate struct {
	checks   []Check
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	mu      sync.RWMutex
	passed  map[string]bool
	lastErr error
	ready   bool
}

// NewGate creates a gate. interval is the pause between retry rounds and
// timeout bounds each warmup call.
func NewGate(logger *log.Logger, interval, timeout time.Duration, checks ...Check) *Gate {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gate{
		checks:   checks,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		passed:   make(map[string]bool, len(checks)),
		ready:    len(checks) == 0,
	}
}

// Run blocks until every check has passed or ctx is done.
func (g *Gate) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if g.round(ctx) {
			g.logger.Printf("readiness: all %d checks passed (attempt %d)", len(g.checks), attempt)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.interval):
		}
	}
}

// round runs every pending check once and reports whether all have passed.
func (g *Gate) round(ctx context.Context) bool {
	var errs []error
	for _, c := range g.checks {
		if g.hasPassed(c.Name) {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err := c.Warmer.Warmup(callCtx)
		cancel()

		if err != nil {
			g.logger.Printf("readiness: %s warmup failed: %v", c.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		g.logger.Printf("readiness: %s ready", c.Name)
		g.mu.Lock()
		g.passed[c.Name] = true
		g.mu.Unlock()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastErr = errors.Join(errs...)
	g.ready = len(errs) == 0
	return g.ready
}

func (g *Gate) hasPassed(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.passed[name]
}

// Ready reports whether every check has passed.
func (g *Gate) Ready() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ready
}

// Err returns the failures of the most recent round, or nil.
func (g *Gate) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastErr
}

// Pending lists the checks that have not passed yet.
func (g *Gate) Pending() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for _, c := range g.checks {
		if !g.passed[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out
}

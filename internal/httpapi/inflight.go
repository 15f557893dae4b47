package httpapi

import (
	"sync"
	"sync/atomic"
)

// InFlight tracks session requests being served and supports graceful
// draining. When draining is enabled, new requests are rejected while
// in-flight ones finish naturally.
//
// mu makes the draining check and wg.Add atomic in Add, so no request can
// slip in between StartDraining and Wait.
type InFlight struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewInFlight creates an empty registry.
func NewInFlight() *InFlight {
	return &InFlight{}
}

// Add registers a request. Returns false if the registry is draining.
func (f *InFlight) Add() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draining {
		return false
	}
	f.wg.Add(1)
	f.count.Add(1)
	return true
}

// Done marks a request as completed. Must be called exactly once per successful Add.
func (f *InFlight) Done() {
	f.count.Add(-1)
	f.wg.Done()
}

// StartDraining makes future Add calls return false.
func (f *InFlight) StartDraining() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (f *InFlight) IsDraining() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draining
}

// ActiveCount returns the number of requests currently being served.
func (f *InFlight) ActiveCount() int64 {
	return f.count.Load()
}

// Wait blocks until every registered request has completed.
func (f *InFlight) Wait() {
	f.wg.Wait()
}

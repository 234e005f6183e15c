// Package breaker implements the per-source circuit breaker that keeps a
// failing bibliographic API from dragging down every search request.
package breaker

import (
	"sync"
	"time"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 2
	defaultOpenTimeout      = 60 * time.Second
)

// Breaker is one source's CLOSED/OPEN/HALF_OPEN state machine.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	lastFailure      time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	now              func() time.Time
}

func New() *Breaker {
	return &Breaker{
		state:            StateClosed,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		openTimeout:      defaultOpenTimeout,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. The first call after the open
// timeout elapses transitions to HALF_OPEN and is allowed as a probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.openTimeout {
			b.state = StateHalfOpen
			b.successes = 0
			return true
		}
		return false
	}
	return true
}

// RecordSuccess counts a successful call toward closing the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	}
}

// RecordFailure counts a failed call; enough consecutive failures open the
// breaker, and any failure while half-open re-opens it.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailure = b.now()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.successes = 0
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Registry holds one breaker per source name.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewRegistry() *Registry {
	return &Registry{breakers: map[string]*Breaker{}}
}

func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = New()
		r.breakers[name] = b
	}
	return b
}

// States snapshots every breaker's current state for the ops endpoint.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}

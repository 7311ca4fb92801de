// Package ratelimit tracks provider failures and computes how long to
// back off before the next attempt.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Policy bounds the exponential backoff schedule.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxRetries   int
}

func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   5,
	}
}

// Tracker keeps the consecutive failure count for one provider and
// turns it into a wait duration. A provider-announced retry-after
// always wins over the computed schedule.
type Tracker struct {
	mu       sync.Mutex
	policy   Policy
	failures int
}

func NewTracker(policy Policy) *Tracker {
	return &Tracker{policy: policy}
}

// RecordFailure bumps the failure count and returns how long to wait
// before retrying. When the provider announced a retry-after, that
// value is returned verbatim; otherwise the delay grows exponentially
// with the consecutive failure count, capped at MaxDelay.
func (t *Tracker) RecordFailure(retryAfter time.Duration) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures++

	if retryAfter > 0 {
		return retryAfter
	}

	delay := float64(t.policy.InitialDelay) *
		math.Pow(t.policy.Multiplier, float64(t.failures-1))
	if capped := float64(t.policy.MaxDelay); delay > capped {
		delay = capped
	}
	return time.Duration(delay)
}

// RecordSuccess clears the failure streak.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures = 0
}

// ShouldGiveUp reports whether the provider has failed often enough in
// a row to stop trying it.
func (t *Tracker) ShouldGiveUp() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.failures >= t.policy.MaxRetries
}

// ConsecutiveFailures returns the current streak length.
func (t *Tracker) ConsecutiveFailures() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.failures
}

// Registry hands out one shared Tracker per provider. All translation
// sessions in the process see the same failure state.
type Registry struct {
	mu       sync.Mutex
	policy   Policy
	trackers map[string]*Tracker
}

func NewRegistry(policy Policy) *Registry {
	return &Registry{
		policy:   policy,
		trackers: make(map[string]*Tracker),
	}
}

// For returns the tracker for providerID, creating it on first use.
func (r *Registry) For(providerID string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trackers[providerID]
	if !ok {
		t = NewTracker(r.policy)
		r.trackers[providerID] = t
	}
	return t
}

// Reset clears the failure streak of every tracked provider.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.trackers {
		t.RecordSuccess()
	}
}

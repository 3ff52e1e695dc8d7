package model

import (
	"sync"
	"time"
)

// Endpoint health is a consecutive-failure circuit breaker. The llm
// client reports call outcomes here, and the registry filters fallback
// chains by what the breakers currently allow.

// BreakerConfig tunes circuit behavior for all endpoints.
type BreakerConfig struct {
	// TripAfter is the consecutive-failure count that opens a circuit.
	TripAfter int

	// RetryAfter is how long an open circuit holds before letting a
	// trial request through.
	RetryAfter time.Duration
}

// DefaultBreakerConfig trips fast and retries soon, which suits local
// model runtimes that come and go.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		TripAfter:  3,
		RetryAfter: 30 * time.Second,
	}
}

// EndpointHealth is a point-in-time snapshot of one endpoint's breaker.
type EndpointHealth struct {
	Available   bool      `json:"available"`
	Failures    int       `json:"failures"`
	Open        bool      `json:"open"`
	OpenedAt    time.Time `json:"opened_at,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

type breakerState struct {
	failures    int
	open        bool
	openedAt    time.Time
	lastSuccess time.Time
	lastFailure time.Time
}

// breakers tracks circuit state per endpoint name.
type breakers struct {
	mu     sync.Mutex
	cfg    BreakerConfig
	states map[string]*breakerState
}

func newBreakers(cfg BreakerConfig) *breakers {
	return &breakers{cfg: cfg, states: map[string]*breakerState{}}
}

// stateLocked returns the state for name, creating it on first sight.
// Callers hold b.mu.
func (b *breakers) stateLocked(name string) *breakerState {
	st, ok := b.states[name]
	if !ok {
		st = &breakerState{}
		b.states[name] = st
	}
	return st
}

// allows reports whether traffic may go to name. An open circuit lets a
// trial request through once RetryAfter has elapsed.
func (b *breakers) allows(name string, now time.Time) bool {
	st, ok := b.states[name]
	if !ok || !st.open {
		return true
	}
	return now.Sub(st.openedAt) > b.cfg.RetryAfter
}

// MarkEndpointSuccess closes the endpoint's circuit and clears its
// failure streak.
func (r *Registry) MarkEndpointSuccess(name string) {
	r.breakers.mu.Lock()
	defer r.breakers.mu.Unlock()

	st := r.breakers.stateLocked(name)
	st.failures = 0
	st.open = false
	st.lastSuccess = time.Now()
}

// MarkEndpointFailure extends the failure streak and opens the circuit
// once the streak reaches the trip threshold. A failed trial request on
// an already-open circuit restarts the retry window.
func (r *Registry) MarkEndpointFailure(name string) {
	r.breakers.mu.Lock()
	defer r.breakers.mu.Unlock()

	st := r.breakers.stateLocked(name)
	st.failures++
	st.lastFailure = time.Now()
	if st.failures >= r.breakers.cfg.TripAfter {
		st.open = true
		st.openedAt = st.lastFailure
	}
}

// IsEndpointAvailable reports whether requests may be sent to name.
// Endpoints never reported on count as available.
func (r *Registry) IsEndpointAvailable(name string) bool {
	r.breakers.mu.Lock()
	defer r.breakers.mu.Unlock()

	return r.breakers.allows(name, time.Now())
}

// EndpointHealth snapshots the breaker for name. Nil when the endpoint
// has never been reported on.
func (r *Registry) EndpointHealth(name string) *EndpointHealth {
	r.breakers.mu.Lock()
	defer r.breakers.mu.Unlock()

	st, ok := r.breakers.states[name]
	if !ok {
		return nil
	}
	return &EndpointHealth{
		Available:   r.breakers.allows(name, time.Now()),
		Failures:    st.failures,
		Open:        st.open,
		OpenedAt:    st.openedAt,
		LastSuccess: st.lastSuccess,
		LastFailure: st.lastFailure,
	}
}

// SetBreakerConfig swaps the breaker tuning. Existing circuit state is
// kept; only the thresholds change.
func (r *Registry) SetBreakerConfig(cfg BreakerConfig) {
	r.breakers.mu.Lock()
	defer r.breakers.mu.Unlock()

	r.breakers.cfg = cfg
}

// GetAvailableFallbackChain is GetFallbackChain filtered by breaker
// state. When every endpoint in the chain is open it returns the whole
// chain unfiltered, since trying something beats failing without a
// single call.
func (r *Registry) GetAvailableFallbackChain(capability Capability) []string {
	chain := r.GetFallbackChain(capability)

	r.breakers.mu.Lock()
	defer r.breakers.mu.Unlock()

	now := time.Now()
	usable := make([]string, 0, len(chain))
	for _, name := range chain {
		if r.breakers.allows(name, now) {
			usable = append(usable, name)
		}
	}
	if len(usable) == 0 {
		return chain
	}
	return usable
}

package llm

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds how hard the client leans on a single endpoint
// before failing over to the next one in the chain.
type RetryConfig struct {
	// Attempts is the total number of tries per endpoint, first included.
	Attempts int

	// BaseDelay seeds the exponential backoff between tries.
	BaseDelay time.Duration

	// Growth multiplies the delay after every failed try.
	Growth float64

	// MaxDelay caps the backoff regardless of growth.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the defaults used by NewClient.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:  3,
		BaseDelay: 2 * time.Second,
		Growth:    2.0,
		MaxDelay:  30 * time.Second,
	}
}

// backoffFor returns the jittered delay to sleep after failed attempt n
// (1-based). Jitter of +/-25% keeps concurrent clients from retrying in
// lockstep against an overloaded endpoint.
func (rc RetryConfig) backoffFor(attempt int) time.Duration {
	d := float64(rc.BaseDelay) * math.Pow(rc.Growth, float64(attempt-1))
	if lim := float64(rc.MaxDelay); d > lim {
		d = lim
	}
	jitter := d * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(d + jitter)
}

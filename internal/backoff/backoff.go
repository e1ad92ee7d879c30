// Package backoff provides exponential backoff with jitter for reconnect
// loops.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff calculation.
type Policy struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps the computed delay.
	Max time.Duration
	// Factor is the exponential factor applied per attempt.
	Factor float64
	// Jitter is the randomization fraction (0.0 to 1.0) added to the delay.
	Jitter float64
}

// Default is tuned for WebSocket reconnects: 1s initial, 60s cap,
// doubling with 20% jitter.
func Default() Policy {
	return Policy{
		Initial: time.Second,
		Max:     60 * time.Second,
		Factor:  2,
		Jitter:  0.2,
	}
}

// Next returns the delay for the given attempt. Attempts start at 1; values
// below 1 are treated as 1.
func (p Policy) Next(attempt int) time.Duration {
	return p.next(attempt, rand.Float64())
}

func (p Policy) next(attempt int, random float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.Initial) * math.Pow(p.Factor, exp)
	jitter := base * p.Jitter * random
	return time.Duration(math.Min(float64(p.Max), base+jitter))
}

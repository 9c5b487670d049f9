// Package backoff provides the shared exponential backoff policy used for
// dispatch retries. Keeping it in one place keeps retry behavior consistent
// and testable in isolation.
package backoff

import "time"

// Policy describes bounded exponential backoff: Base, Base*Factor,
// Base*Factor^2, ... capped at Cap.
type Policy struct {
	// Base is the delay before the second attempt.
	Base time.Duration
	// Factor multiplies the delay after every failed attempt. Values below 1
	// are treated as 1 (constant delay).
	Factor float64
	// Cap bounds the delay. Zero means uncapped.
	Cap time.Duration
	// MaxAttempts is the total number of delivery attempts (the first try
	// included). Zero or negative means a single attempt, no retries.
	MaxAttempts int
}

// Default mirrors the dispatch queue's documented retry discipline:
// base 1s, factor 2, cap 30s, five attempts.
var Default = Policy{
	Base:        time.Second,
	Factor:      2,
	Cap:         30 * time.Second,
	MaxAttempts: 5,
}

// Attempts returns the effective total attempt count (at least 1).
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the pause before attempt number attempt, where the first
// attempt is 1. Attempt 1 has no pause.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.Base <= 0 {
		return 0
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.Base)
	for i := 2; i < attempt; i++ {
		d *= factor
		if p.Cap > 0 && d >= float64(p.Cap) {
			return p.Cap
		}
	}
	if p.Cap > 0 && d > float64(p.Cap) {
		return p.Cap
	}
	return time.Duration(d)
}

// Package backoff provides the delay schedules used between retry and
// reconnect attempts.
package backoff

import "time"

// Strategy defines the interface for backoff calculation algorithms.
type Strategy interface {
	// Calculate returns the delay before the given attempt, bounded by max.
	Calculate(attempt int, base, max time.Duration) time.Duration
}

// ExponentialStrategy doubles (or multiplies) the base delay per attempt:
// base * Multiplier^attempt, capped at max. No jitter is applied so the
// schedule stays deterministic.
type ExponentialStrategy struct {
	Multiplier float64
}

// Calculate implements the Strategy interface.
func (s ExponentialStrategy) Calculate(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	multiplier := s.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	delay := time.Duration(float64(base) * pow(multiplier, attempt))
	if delay < 0 || delay > max {
		delay = max
	}
	return delay
}

// LinearStrategy grows the delay by one base step per attempt: base *
// attempt, capped at max. Attempt 0 yields the base delay.
type LinearStrategy struct{}

// Calculate implements the Strategy interface.
func (s LinearStrategy) Calculate(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := base * time.Duration(attempt)
	if delay < 0 || delay > max {
		delay = max
	}
	return delay
}

// pow calculates base^exponent using integer exponentiation.
func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

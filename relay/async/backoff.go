package async

import (
	"math"
	"time"
)

// BackoffConfig shapes the delay between result probes.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is the relative spread applied to each delay, in [0, 1).
	Jitter float64
}

// DefaultBackoff starts at 250ms and doubles up to 5s with ±20% jitter.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		Initial:    250 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

func (b BackoffConfig) normalized() BackoffConfig {
	def := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = def.Initial
	}
	if b.Max <= 0 {
		b.Max = def.Max
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	if b.Jitter >= 1 {
		b.Jitter = 0.99
	}
	return b
}

// Delay returns the wait before retry number n (0-based). rnd must return a
// value in [0, 1). The result is min(Max, Initial*Multiplier^n) scaled by a
// factor drawn uniformly from [1-Jitter, 1+Jitter], then clamped to [0, Max].
func (b BackoffConfig) Delay(n int, rnd func() float64) time.Duration {
	b = b.normalized()
	if n < 0 {
		n = 0
	}

	base := float64(b.Initial) * math.Pow(b.Multiplier, float64(n))
	if base > float64(b.Max) || math.IsInf(base, 1) || math.IsNaN(base) {
		base = float64(b.Max)
	}

	if b.Jitter > 0 && rnd != nil {
		base *= 1 - b.Jitter + 2*b.Jitter*rnd()
	}

	d := time.Duration(base)
	switch {
	case d < 0:
		return 0
	case d > b.Max:
		return b.Max
	default:
		return d
	}
}

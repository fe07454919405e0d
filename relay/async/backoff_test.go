package async

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelayWithoutJitter(t *testing.T) {
	b := BackoffConfig{Initial: 250 * time.Millisecond, Max: 5 * time.Second, Multiplier: 2}
	want := []time.Duration{
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	for n, w := range want {
		require.Equal(t, w, b.Delay(n, nil), "attempt %d", n)
	}
	require.Equal(t, 5*time.Second, b.Delay(10_000, nil), "huge exponents saturate at the cap")
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	b := DefaultBackoff()
	rng := rand.New(rand.NewPCG(1, 2))
	for n := range 12 {
		nominal := b.Delay(n, nil)
		for range 200 {
			d := b.Delay(n, rng.Float64)
			require.GreaterOrEqual(t, d, time.Duration(float64(nominal)*(1-b.Jitter))-time.Nanosecond)
			require.LessOrEqual(t, d, b.Max)
			require.LessOrEqual(t, d, time.Duration(float64(nominal)*(1+b.Jitter))+time.Nanosecond)
		}
	}
}

func TestBackoffJitterExtremes(t *testing.T) {
	b := BackoffConfig{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2, Jitter: 0.5}
	require.Equal(t, 500*time.Millisecond, b.Delay(0, func() float64 { return 0 }))
	require.Equal(t, 1250*time.Millisecond, b.Delay(0, func() float64 { return 0.75 }))
	require.Equal(t, 10*time.Second, b.Delay(5, func() float64 { return 0.999 }), "jitter never exceeds the cap")
}

func TestBackoffNormalizesBadConfig(t *testing.T) {
	b := BackoffConfig{Initial: -1, Max: 0, Multiplier: 0.5, Jitter: 3}
	d := b.Delay(3, func() float64 { return 0.5 })
	require.InDelta(t, float64(DefaultBackoff().Initial), float64(d), float64(time.Microsecond),
		"multiplier below one means a constant delay")
}

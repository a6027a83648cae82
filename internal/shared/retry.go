package shared

import (
	"context"
	"math"
	"time"
)

// Backoff describes an exponential retry cooldown: attempt n waits Cooldown * Exponent^n.
type Backoff struct {
	Retries  int
	Cooldown time.Duration
	Exponent float64
}

// Delay returns the wait after the given zero-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	exp := b.Exponent
	if exp <= 0 {
		exp = 1
	}
	return time.Duration(float64(b.Cooldown) * math.Pow(exp, float64(attempt)))
}

// Retry calls fn until it succeeds, the attempts run out, or ctx is done.
//
// fn is called at least once. The last error is returned.
func Retry(ctx context.Context, b Backoff, fn func(ctx context.Context) error) error {
	attempts := max(b.Retries, 1)

	var err error
	for tries := range attempts {
		if err = fn(ctx); err == nil {
			return nil
		}
		if tries == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(b.Delay(tries)):
		}
	}
	return err
}

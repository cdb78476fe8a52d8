package websocket

import (
	"math/rand/v2"
	"time"
)

// Backoff computes reconnect delays: Base doubled per attempt, plus up to
// 50% additive jitter, never more than Max. The delay is never below Base,
// so each window sees at most one attempt.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// Jitter returns a value in [0, n). Nil uses math/rand.
	Jitter func(n int64) int64
}

func (b Backoff) Delay(attempt int) time.Duration {
	base, max := b.Base, b.Max
	if base <= 0 {
		base = 5 * time.Second
	}
	if max < base {
		max = base
	}

	exp := max
	if attempt < 32 {
		if d := base << uint(attempt); d > 0 && d < max {
			exp = d
		}
	}

	jitter := time.Duration(0)
	if half := int64(exp / 2); half > 0 {
		if b.Jitter != nil {
			jitter = time.Duration(b.Jitter(half))
		} else {
			jitter = time.Duration(rand.Int64N(half))
		}
	}

	if d := exp + jitter; d < max {
		return d
	}
	return max
}

// NoJitter makes Delay deterministic.
func NoJitter(int64) int64 { return 0 }

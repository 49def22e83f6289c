package postgresbackend

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultReconnectBaseDelay = 100 * time.Millisecond
	defaultReconnectMaxDelay  = 10 * time.Second
	defaultJitterFactor       = 0.3
	maxBackoffShift           = 30
)

// backoff computes exponential delays with jitter: base*2^attempt, capped at max.
type backoff struct {
	base         time.Duration
	max          time.Duration
	jitterFactor float64
}

func defaultBackoff() backoff {
	return backoff{
		base:         defaultReconnectBaseDelay,
		max:          defaultReconnectMaxDelay,
		jitterFactor: defaultJitterFactor,
	}
}

func (b backoff) delay(attempt int) time.Duration {
	delay := b.base << min(max(attempt, 0), maxBackoffShift)
	if delay <= 0 || delay > b.max {
		delay = b.max
	}

	jitter := rand.Float64() * float64(delay) * b.jitterFactor //nolint:gosec //math/rand is sufficient for jitter

	return delay + time.Duration(jitter)
}

// sleep waits for d and reports false if ctx or stop ended first. stop may be nil.
func sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}

package postgresbackend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_backoff_delay(t *testing.T) {
	b := backoff{base: 10 * time.Millisecond, max: 50 * time.Millisecond, jitterFactor: 0.3}

	testCases := []struct {
		attempt int
		base    time.Duration
	}{
		{attempt: 0, base: 10 * time.Millisecond},
		{attempt: 1, base: 20 * time.Millisecond},
		{attempt: 2, base: 40 * time.Millisecond},
		{attempt: 3, base: 50 * time.Millisecond},
		{attempt: 100, base: 50 * time.Millisecond},
	}

	for _, tc := range testCases {
		delay := b.delay(tc.attempt)

		assert.GreaterOrEqual(t, delay, tc.base)
		assert.LessOrEqual(t, delay, tc.base+time.Duration(float64(tc.base)*0.3))
	}
}

func Test_sleep(t *testing.T) {
	assert.True(t, sleep(context.Background(), nil, time.Millisecond))

	stop := make(chan struct{})
	close(stop)
	assert.False(t, sleep(context.Background(), stop, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, nil, time.Hour))
}

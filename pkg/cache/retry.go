package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks a backend that could not be reached. Only writes
// failing with it are retried.
var ErrUnavailable = errors.New("cache backend unavailable")

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Transient reports whether err is a backend outage rather than a rejected
// entry.
func Transient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// WritePolicy bounds the time a freshly computed result may wait on a
// flaky backend. The result is already in hand, so a write that keeps
// failing is dropped rather than surfaced.
type WritePolicy struct {
	Attempts int
	Delay    time.Duration // before the second attempt; doubles after that
	MaxDelay time.Duration
}

// DefaultWritePolicy gives up on a write within about 150ms.
var DefaultWritePolicy = WritePolicy{
	Attempts: 3,
	Delay:    50 * time.Millisecond,
	MaxDelay: 200 * time.Millisecond,
}

// Store writes data under key, retrying transient failures. It returns the
// number of attempts made with the last error.
func (p WritePolicy) Store(ctx context.Context, c Cache, key string, data []byte, ttl time.Duration) (int, error) {
	attempts := max(p.Attempts, 1)
	delay := p.Delay
	for n := 1; ; n++ {
		err := c.Set(ctx, key, data, ttl)
		if err == nil || !Transient(err) || n == attempts {
			return n, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

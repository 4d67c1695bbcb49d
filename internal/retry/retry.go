// Package retry provides the bounded fixed-backoff retry loop shared by the
// fetch and message-delete paths.
package retry

import (
	"context"
	"time"
)

// Do calls fn up to attempts times, sleeping delay between failed attempts.
// It returns nil on the first success, the last error once attempts are
// exhausted, or ctx.Err() if the context is canceled while waiting.
// fn receives the 1-based attempt number.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if last = fn(i); last == nil {
			return nil
		}
		if i == attempts {
			break
		}
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	return last
}

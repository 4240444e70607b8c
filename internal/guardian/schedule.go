package guardian

import (
	"context"
	"time"
)

// Schedule decides when cycles run.
type Schedule struct {
	Interval time.Duration
	Once     bool
	// Trigger requests an immediate cycle. Nil disables early triggers.
	Trigger <-chan struct{}
	// After defaults to time.After.
	After func(time.Duration) <-chan time.Time
}

// Run calls fn immediately, then once per interval until ctx is cancelled.
// With Once set it returns after the first call. A trigger received while
// waiting starts the next cycle early and restarts the interval.
func (s Schedule) Run(ctx context.Context, fn func(context.Context)) error {
	after := s.After
	if after == nil {
		after = time.After
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fn(ctx)
		if s.Once {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-after(s.Interval):
		case <-s.Trigger:
		}
	}
}

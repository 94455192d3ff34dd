package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a deadline; timeout <= 0 means none. It returns
// once the deadline passes even if fn has not yet noticed ctx ending.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	cause := fmt.Errorf("%s exceeded %v: %w", name, timeout, context.DeadlineExceeded)
	tctx, cancel := context.WithTimeoutCause(ctx, timeout, cause)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- fn(tctx) }()
	select {
	case err := <-errc:
		return err
	case <-tctx.Done():
		return context.Cause(tctx)
	}
}

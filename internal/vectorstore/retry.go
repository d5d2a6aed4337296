package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// retrier retries transient failures with exponential backoff and opens a
// circuit after too many consecutive failures.
type retrier struct {
	maxRetries int
	backoff    time.Duration
	threshold  int
	cooldown   time.Duration

	mu       sync.Mutex
	failures int
	lastFail time.Time
}

func newRetrier(maxRetries int, backoff time.Duration, threshold int) *retrier {
	return &retrier{
		maxRetries: maxRetries,
		backoff:    backoff,
		threshold:  threshold,
		cooldown:   30 * time.Second,
	}
}

func (r *retrier) do(ctx context.Context, op string, fn func() error) error {
	if r.open() {
		return fmt.Errorf("%s: circuit breaker open", op)
	}

	backoff := r.backoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			r.reset()
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", op, err)
		}
		r.fail()
		if attempt >= r.maxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", op, r.maxRetries, err)
		}
		if r.open() {
			return fmt.Errorf("%s: circuit breaker open: %w", op, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", op, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (r *retrier) fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	r.lastFail = time.Now()
}

func (r *retrier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = 0
}

func (r *retrier) open() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures < r.threshold {
		return false
	}
	if time.Since(r.lastFail) > r.cooldown {
		r.failures = 0
		return false
	}
	return true
}

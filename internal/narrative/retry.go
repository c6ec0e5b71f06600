package narrative

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// retrying repeats completions that failed as Unavailable or RateLimited.
// A Malformed reply gets one more try; Rejected and Truncated get none.
type retrying struct {
	next Backend
	cfg  RetryConfig
	wait func(ctx context.Context, d time.Duration) error
}

func withRetry(b Backend, cfg RetryConfig) *retrying {
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	return &retrying{next: b, cfg: cfg, wait: waitCtx}
}

func (r *retrying) Complete(ctx context.Context, p Prompt) (*Reply, error) {
	malformed := 0
	for attempt := 1; ; attempt++ {
		reply, err := r.next.Complete(ctx, p)
		if err == nil {
			return reply, nil
		}
		if attempt == r.cfg.MaxAttempts || !worthRetrying(err, &malformed) {
			return nil, err
		}
		if werr := r.wait(ctx, r.delay(attempt, err)); werr != nil {
			return nil, werr
		}
	}
}

func (r *retrying) Model() string { return r.next.Model() }

func worthRetrying(err error, malformed *int) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case Unavailable, RateLimited:
		return true
	case Malformed:
		*malformed++
		return *malformed == 1
	}
	return false
}

// delay is the pause after the given 1-based attempt: exponential, capped
// at MaxWait, with ±20% jitter. A server Retry-After wins.
func (r *retrying) delay(attempt int, err error) time.Duration {
	var e *Error
	if errors.As(err, &e) && e.RetryAfter > 0 {
		return e.RetryAfter
	}
	d := float64(r.cfg.InitialWait) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	d = min(d, float64(r.cfg.MaxWait))
	d *= 0.8 + 0.4*rand.Float64()
	return time.Duration(d)
}

func waitCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

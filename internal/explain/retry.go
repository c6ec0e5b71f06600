package explain

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior for transient explainer failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns a short backoff suited to an interactive form.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     2 * time.Second,
		Multiplier:  2.0,
	}
}

// Pause is the wait before retry n (1-based), before jitter.
func (c RetryConfig) Pause(n int) time.Duration {
	d := float64(c.InitialWait) * math.Pow(c.Multiplier, float64(n-1))
	return time.Duration(min(d, float64(c.MaxWait)))
}

type verdict int

const (
	giveUp verdict = iota
	tryAgain
	tryOnceMore // only the first time this error class shows up
)

// classify decides what a failed call deserves. Unknown errors are treated
// as transport failures.
func classify(err error) verdict {
	var (
		rejected *ErrRejected
		invalid  *ErrInvalidResponse
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return giveUp
	case errors.As(err, &rejected):
		return giveUp
	case errors.As(err, &invalid):
		return tryOnceMore
	}
	return tryAgain
}

type retrier struct {
	next  Explainer
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// WithRetry retries e on transient failures with exponential backoff and
// ±20% jitter. A server Retry-After replaces the computed wait.
func WithRetry(e Explainer, cfg RetryConfig) Explainer {
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	return &retrier{next: e, cfg: cfg, sleep: sleepCtx}
}

func (r *retrier) Explain(ctx context.Context, req Request) (*Attribution, error) {
	usedOnce := false
	for n := 1; ; n++ {
		attr, err := r.next.Explain(ctx, req)
		if err == nil {
			return attr, nil
		}
		switch classify(err) {
		case giveUp:
			return nil, err
		case tryOnceMore:
			if usedOnce {
				return nil, err
			}
			usedOnce = true
		}
		if n == r.cfg.MaxAttempts {
			return nil, err
		}
		if serr := r.sleep(ctx, r.wait(n, err)); serr != nil {
			return nil, serr
		}
	}
}

func (r *retrier) wait(n int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	return time.Duration(float64(r.cfg.Pause(n)) * (0.8 + 0.4*rand.Float64()))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package explain

import (
	"fmt"
	"time"
)

// ErrRateLimit indicates the explainer returned 429.
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("explainer rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the explainer answered with a body that does
// not match the expected shape.
type ErrInvalidResponse struct {
	Body []byte
	Err  error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid explainer response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrUnavailable indicates the explainer is down or unreachable.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("explainer unavailable: %v", e.Err)
	}
	return "explainer unavailable"
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// ErrRejected indicates a 4xx the explainer will keep returning.
type ErrRejected struct {
	Status int
	Body   string
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("explainer rejected request: HTTP %d: %s", e.Status, e.Body)
}

package narrative

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a backend failure. The retry policy is keyed on it.
type Kind int

const (
	// Unavailable covers transport errors and 5xx answers.
	Unavailable Kind = iota
	// RateLimited is a 429; RetryAfter may carry the server's hint.
	RateLimited
	// Rejected is any other 4xx. Sending the same prompt again won't help.
	Rejected
	// Malformed means the reply did not match the requested output format.
	Malformed
	// Truncated means the reply hit the token limit before it was complete.
	Truncated
)

func (k Kind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case RateLimited:
		return "rate limited"
	case Rejected:
		return "rejected"
	case Malformed:
		return "malformed reply"
	case Truncated:
		return "truncated reply"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Error is a classified backend failure.
type Error struct {
	Kind       Kind
	RetryAfter time.Duration
	// Body is the offending reply for Malformed and Truncated.
	Body json.RawMessage
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "llm " + e.Kind.String()
	}
	return "llm " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of err. ok is false when err carries no *Error.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func failure(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func badReply(kind Kind, body []byte, err error) *Error {
	return &Error{Kind: kind, Body: json.RawMessage(body), Err: err}
}

// fromStatus classifies an SDK error that carries the HTTP status.
func fromStatus(status int, header http.Header, err error) *Error {
	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Kind: RateLimited, RetryAfter: retryAfter(header), Err: err}
	case status >= 400 && status < 500 && status != http.StatusRequestTimeout:
		return failure(Rejected, err)
	}
	return failure(Unavailable, err)
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

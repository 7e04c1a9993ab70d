package fetch

import (
	"errors"
	"fmt"
)

// Kind categorizes a fetch failure.
type Kind string

const (
	// KindNetwork covers connection failures, invalid URLs and cancellation.
	KindNetwork Kind = "network_error"
	// KindTimeout means the per-request timeout expired.
	KindTimeout Kind = "timeout"
	// KindDecode means the body could not be decoded to text.
	KindDecode Kind = "decode_error"
	// KindHTTP means a non-2xx status under strict status checking.
	KindHTTP Kind = "http_error"
)

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Kind       Kind
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %s: %v", e.URL, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s: %s", e.URL, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the Kind of err if it is or wraps an *Error, or "".
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

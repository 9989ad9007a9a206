package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a fetch failure.
type Kind string

// Failure kinds. These map onto the vendor-scoped failure taxonomy; the
// scraper layer translates them into outcome reasons.
const (
	KindNetwork     Kind = "network"
	KindHTTP        Kind = "http"
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
)

// Error is a classified fetch failure for one URL.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain. Returns the empty
// string when the error is not a fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// classifyTransport maps a transport-level error onto a failure kind.
func classifyTransport(url string, err error) *Error {
	kind := KindNetwork

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}

	return &Error{Kind: kind, URL: url, Err: err}
}

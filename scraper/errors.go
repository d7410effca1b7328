package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// SourceError classifies a failed fetch against the external site.
type SourceError struct {
	Kind string
	Err  error
}

// Error kinds reported by classify.
const (
	KindTimeout     = "timeout"
	KindConnection  = "connection"
	KindForbidden   = "forbidden"
	KindNotFound    = "not_found"
	KindRateLimited = "rate_limited"
	KindOther       = "other"
)

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func classify(err error, statusCode int) *SourceError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &SourceError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &SourceError{Kind: KindTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &SourceError{Kind: KindConnection, Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return &SourceError{Kind: KindForbidden, Err: wrapped}
		case http.StatusNotFound:
			return &SourceError{Kind: KindNotFound, Err: wrapped}
		case http.StatusTooManyRequests:
			return &SourceError{Kind: KindRateLimited, Err: wrapped}
		}
	}

	if err == nil {
		err = fmt.Errorf("unknown failure")
	}
	return &SourceError{Kind: KindOther, Err: err}
}

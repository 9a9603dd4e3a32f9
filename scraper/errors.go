package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNoListingContent is returned when the listing page has no fetchable body.
var ErrNoListingContent = errors.New("could not fetch body of main page")

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	URL string
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout fetching %s: %w", e.URL, e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates the target could not be reached at all.
type ErrConnection struct {
	URL string
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection to %s: %w", e.URL, e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrInvalidReference indicates a link that cannot be resolved to a URL.
type ErrInvalidReference struct {
	Ref string
	Err error
}

func (e ErrInvalidReference) Error() string {
	return fmt.Errorf("invalid reference %q: %w", e.Ref, e.Err).Error()
}

func (e ErrInvalidReference) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrServer indicates a 5xx response.
type ErrServer struct {
	Err error
}

func (e ErrServer) Error() string {
	return fmt.Errorf("server_error: %w", e.Err).Error()
}

func (e ErrServer) Unwrap() error {
	return e.Err
}

// errEmptyBody marks a 2xx response without content.
var errEmptyBody = errors.New("empty body")

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, errEmptyBody) {
		return "empty_body"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var invalid ErrInvalidReference
	if errors.As(err, &invalid) {
		return "invalid_reference"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var server ErrServer
	if errors.As(err, &server) {
		return "server_error"
	}
	var status statusError
	if errors.As(err, &status) {
		return "http_error"
	}
	return "other"
}

type statusError struct {
	Code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

// classifyError wraps a transport error or non-success status in the typed
// error for its category. It returns nil for a 2xx status without error.
func classifyError(rawURL string, err error, statusCode int) error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout{URL: rawURL, Err: err}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrTimeout{URL: rawURL, Err: err}
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return ErrConnection{URL: rawURL, Err: err}
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return ErrConnection{URL: rawURL, Err: err}
		}
		return err
	}

	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	wrapped := statusError{Code: statusCode}
	switch {
	case statusCode == http.StatusForbidden:
		return ErrForbidden{Err: wrapped}
	case statusCode == http.StatusNotFound:
		return ErrNotFound{Err: wrapped}
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimited{Err: wrapped}
	case statusCode >= 500:
		return ErrServer{Err: wrapped}
	}
	return wrapped
}

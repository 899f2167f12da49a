package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"unicode/utf8"
)

// ErrMalformedResponse marks a body that is not the JSON/XML shape the caller expected.
var ErrMalformedResponse = errors.New("malformed response")

// StatusError is a completed HTTP exchange with a non-2xx/3xx status.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d url=%s body=%s", e.Code, e.URL, truncate(e.Body, 160))
}

// ClientRejection reports a 4xx: the request will not succeed by repeating it.
func (e *StatusError) ClientRejection() bool { return e.Code >= 400 && e.Code < 500 }

// Retryable reports a 5xx.
func (e *StatusError) Retryable() bool { return e.Code >= 500 }

// TransientNetworkError wraps a transport failure that is worth retrying:
// connection resets, proxy handshake failures, timeouts, truncated reads.
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string { return "transient network error: " + e.Err.Error() }
func (e *TransientNetworkError) Unwrap() error { return e.Err }

// TransportError wraps a transport failure outside the transient set. It is
// retried only while attempts remain, with the same backoff.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsClientRejection reports whether err carries a 4xx status.
func IsClientRejection(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.ClientRejection()
}

// IsTransient reports whether err is a TransientNetworkError.
func IsTransient(err error) bool {
	var te *TransientNetworkError
	return errors.As(err, &te)
}

// DefaultRetryable is the predicate used by Client: 5xx and transport
// errors retry while attempts remain, everything else is terminal.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	if IsTransient(err) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te)
}

// classifyTransport wraps err in TransientNetworkError when it belongs to the
// known transient set, and in TransportError otherwise.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if isTransientTransport(err) {
		return &TransientNetworkError{Err: err}
	}
	return &TransportError{Err: err}
}

func isTransientTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"connection reset",
		"proxyconnect",
		"proxy handshake",
		"tls handshake",
		"handshake failure",
		"unexpected eof",
		"server closed idle connection",
		"timeout",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

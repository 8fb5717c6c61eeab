package resilient

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// Result is a successful response from one attempt: the HTTP status, the
// fully read body, and the description of the strategy that won.
type Result struct {
	StatusCode int
	Body       []byte

	// Strategy is the description of the strategy the response was obtained
	// with, for diagnostics.
	Strategy string
}

// JSON unmarshals the response body into v. An empty body is treated as an
// empty JSON document and leaves v untouched.
func (r *Result) JSON(v interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// FailureKind classifies why a single attempt failed.
type FailureKind int

const (
	// FailureTLS is a certificate or TLS handshake failure.
	FailureTLS FailureKind = iota

	// FailureNetwork is a connection, DNS, or timeout failure.
	FailureNetwork

	// FailureStatus is an HTTP error status (4xx/5xx). It ranks equal to a
	// transport failure: the caller moves on to the next strategy.
	FailureStatus

	// FailureRejected means the response arrived with a success status but
	// the payload was rejected by the caller's acceptance check.
	FailureRejected

	// FailureUnexpected is anything else.
	FailureUnexpected
)

func (k FailureKind) String() string {
	switch k {
	case FailureTLS:
		return "tls"
	case FailureNetwork:
		return "network"
	case FailureStatus:
		return "status"
	case FailureRejected:
		return "rejected"
	}
	return "unexpected"
}

// AttemptError is a classified failure of one attempt, carrying the
// originating strategy's description for diagnostics.
type AttemptError struct {
	Kind     FailureKind
	Strategy string

	// StatusCode is set when Kind is FailureStatus.
	StatusCode int

	Err error
}

func (e *AttemptError) Error() string {
	if e.Kind == FailureStatus {
		return fmt.Sprintf("%s error with %q: HTTP %d", e.Kind, e.Strategy, e.StatusCode)
	}
	return fmt.Sprintf("%s error with %q: %v", e.Kind, e.Strategy, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// ExhaustedError is the aggregate failure raised only after every strategy
// and the final fallback have failed.
type ExhaustedError struct {
	// Attempts holds the classified error of every failed attempt.
	Attempts error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf(
		"all request strategies failed (this may be due to corporate firewall or proxy restrictions): %v",
		e.Attempts)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Attempts
}

// classifyTransportError maps an error from http.Client.Do to a FailureKind.
func classifyTransportError(err error) FailureKind {
	var (
		certVerify *tls.CertificateVerificationError
		recHeader  tls.RecordHeaderError
		unkAuth    x509.UnknownAuthorityError
		hostname   x509.HostnameError
		certInv    x509.CertificateInvalidError
	)
	if errors.As(err, &certVerify) ||
		errors.As(err, &recHeader) ||
		errors.As(err, &unkAuth) ||
		errors.As(err, &hostname) ||
		errors.As(err, &certInv) {
		return FailureTLS
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureNetwork
	}

	return FailureUnexpected
}

package protocol

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// ConnectFailure classifies why a Connection could not be opened.
type ConnectFailure int

const (
	// ConnectUnavailable means the particular broker couldn't be reached
	// (refused, timed out, reset). Another Endpoint may well succeed.
	ConnectUnavailable ConnectFailure = iota
	// ConnectProtocol means protocol negotiation with the broker failed.
	// The ConnectionParameters are at fault, and no Endpoint will succeed.
	ConnectProtocol
	// ConnectTLS means the TLS handshake or certificate verification failed.
	// As with ConnectProtocol, no Endpoint will succeed.
	ConnectTLS
)

func (f ConnectFailure) String() string {
	switch f {
	case ConnectUnavailable:
		return "unavailable"
	case ConnectProtocol:
		return "protocol"
	case ConnectTLS:
		return "tls"
	default:
		return fmt.Sprintf("ConnectFailure(%d)", int(f))
	}
}

// IsFatal returns true if the ConnectFailure implicates the
// ConnectionParameters rather than a particular broker.
func (f ConnectFailure) IsFatal() bool { return f != ConnectUnavailable }

// ConnectError is a classified failure to open a Connection.
type ConnectError struct {
	Kind     ConnectFailure
	Endpoint Endpoint
	Err      error
}

// NewConnectError returns a ConnectError of the Kind, Endpoint and cause.
func NewConnectError(kind ConnectFailure, ep Endpoint, err error) *ConnectError {
	return &ConnectError{Kind: kind, Endpoint: ep, Err: err}
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s (%s): %v", e.Endpoint, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ClassifyConnectError returns the ConnectFailure of an error returned by
// Dialer.Open. A *ConnectError anywhere in the chain decides the
// classification. Otherwise, errors of crypto/tls and crypto/x509 are
// ConnectTLS, and all remaining errors are ConnectUnavailable.
func ClassifyConnectError(err error) ConnectFailure {
	var (
		ce       *ConnectError
		recErr   tls.RecordHeaderError
		alertErr tls.AlertError
		verErr   *tls.CertificateVerificationError
		authErr  x509.UnknownAuthorityError
		hostErr  x509.HostnameError
		certErr  x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &ce):
		return ce.Kind
	case errors.As(err, &recErr), errors.As(err, &alertErr), errors.As(err, &verErr),
		errors.As(err, &authErr), errors.As(err, &hostErr), errors.As(err, &certErr):
		return ConnectTLS
	default:
		return ConnectUnavailable
	}
}

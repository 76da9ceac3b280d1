package client

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	pb "go.gazette.dev/streams/broker/protocol"
)

var (
	// ErrEnvironmentClosed is returned by operations of an Environment which
	// has been closed, including operations which were in-flight when Close
	// was called and then failed.
	ErrEnvironmentClosed = errors.New("environment is closed")
	// ErrNoProducerFactory is returned by CreateProducer of an Environment
	// having no ProducerFactory.
	ErrNoProducerFactory = errors.New("environment has no ProducerFactory")
	// ErrNoConsumerFactory is returned by CreateConsumer of an Environment
	// having no ConsumerFactory.
	ErrNoConsumerFactory = errors.New("environment has no ConsumerFactory")

	// errClosedOnOpen is the cause recorded for an Endpoint which opened a
	// Connection that was already closed.
	errClosedOnOpen = errors.New("connection was closed upon open")
)

// InitializationError is returned by NewEnvironment when none of its
// Endpoints could be connected to. Errs holds the failure of each Endpoint,
// in the order they were attempted.
type InitializationError struct {
	Endpoints []pb.Endpoint
	Errs      []error
}

func (e *InitializationError) add(ep pb.Endpoint, err error) {
	e.Endpoints = append(e.Endpoints, ep)
	e.Errs = append(e.Errs, err)
}

func (e *InitializationError) Error() string {
	var parts = make([]string, len(e.Endpoints))
	for i := range e.Endpoints {
		parts[i] = fmt.Sprintf("%s: %v", e.Endpoints[i], e.Errs[i])
	}
	return "could not connect to any endpoint (" + strings.Join(parts, "; ") + ")"
}

// Unwrap returns the failures of each Endpoint.
func (e *InitializationError) Unwrap() []error { return e.Errs }

// ProducerError is returned by CreateProducer. Either Err is set, if the
// ProducerConfig is invalid or the Environment couldn't be used, or Code
// is the broker's ResponseCode for metadata of the Stream.
type ProducerError struct {
	Stream string
	Code   pb.ResponseCode
	Err    error
}

func (e *ProducerError) Error() string {
	return sessionErrorString("producer", e.Stream, e.Code, e.Err)
}
func (e *ProducerError) Unwrap() error { return e.Err }

// ConsumerError is returned by CreateConsumer. Either Err is set, if the
// ConsumerConfig is invalid or the Environment couldn't be used, or Code
// is the broker's ResponseCode for metadata of the Stream.
type ConsumerError struct {
	Stream string
	Code   pb.ResponseCode
	Err    error
}

func (e *ConsumerError) Error() string {
	return sessionErrorString("consumer", e.Stream, e.Code, e.Err)
}
func (e *ConsumerError) Unwrap() error { return e.Err }

func sessionErrorString(kind, stream string, code pb.ResponseCode, err error) string {
	if err != nil {
		return fmt.Sprintf("creating %s of stream %q: %v", kind, stream, err)
	}
	return fmt.Sprintf("creating %s of stream %q: %s", kind, stream, code)
}

// StreamError is returned by stream administration operations. Op names
// the operation (eg "create", "delete", "stats"). Either Err is set, or
// Code is the broker's unexpected ResponseCode.
type StreamError struct {
	Op     string
	Stream string
	Code   pb.ResponseCode
	Err    error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s stream %q: %v", e.Op, e.Stream, e.Err)
	}
	return fmt.Sprintf("%s stream %q: %s", e.Op, e.Stream, e.Code)
}

func (e *StreamError) Unwrap() error { return e.Err }

// QueryError is returned by QueryOffset and QuerySequence. Op names the
// queried value ("offset" or "sequence"). Either Err is set, or Code is
// the broker's non-OK ResponseCode.
type QueryError struct {
	Op        string
	Reference string
	Stream    string
	Code      pb.ResponseCode
	Err       error
}

func (e *QueryError) Error() string {
	var prefix = fmt.Sprintf("querying %s of reference %q on stream %q", e.Op, e.Reference, e.Stream)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Code)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ResponseCodeOf returns the broker ResponseCode carried by |err|, if any.
func ResponseCodeOf(err error) (pb.ResponseCode, bool) {
	var (
		pe *ProducerError
		ce *ConsumerError
		se *StreamError
		qe *QueryError
	)
	var code pb.ResponseCode

	switch {
	case errors.As(err, &pe):
		code = pe.Code
	case errors.As(err, &ce):
		code = ce.Code
	case errors.As(err, &se):
		code = se.Code
	case errors.As(err, &qe):
		code = qe.Code
	}
	return code, code != 0
}

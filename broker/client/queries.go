package client

import (
	"context"

	pb "go.gazette.dev/streams/broker/protocol"
)

// QueryOffset returns the offset stored by consumer |reference| on
// |stream|. A reference which has stored no offset fails with Code
// CodeOffsetNotFound.
//
// QueryOffset uses the current locator without first checking that it's
// live, unlike QuerySequence.
func (e *Environment) QueryOffset(ctx context.Context, reference, stream string) (uint64, error) {
	var fail = func(code pb.ResponseCode, err error) (uint64, error) {
		return 0, &QueryError{Op: "offset", Reference: reference, Stream: stream, Code: code, Err: err}
	}

	if err := validateQuery(reference, stream); err != nil {
		return fail(0, err)
	}
	var conn, err = e.current()
	if err != nil {
		return fail(0, err)
	}

	offset, code, err := conn.QueryOffset(ctx, reference, stream)
	if err != nil {
		return fail(0, e.mapClosedErr(err))
	}
	observeResponse("offset", code)

	if code != pb.CodeOK {
		return fail(code, nil)
	}
	return offset, nil
}

// QuerySequence returns the last publishing sequence number of producer
// |reference| on |stream|, which is zero if it has never published.
func (e *Environment) QuerySequence(ctx context.Context, reference, stream string) (uint64, error) {
	var fail = func(code pb.ResponseCode, err error) (uint64, error) {
		return 0, &QueryError{Op: "sequence", Reference: reference, Stream: stream, Code: code, Err: err}
	}

	var conn, err = e.ensureLocator(ctx)
	if err != nil {
		return fail(0, err)
	} else if err = validateQuery(reference, stream); err != nil {
		return fail(0, err)
	}

	seq, code, err := conn.QueryPublisherSequence(ctx, reference, stream)
	if err != nil {
		return fail(0, e.mapClosedErr(err))
	}
	observeResponse("sequence", code)

	if code != pb.CodeOK {
		return fail(code, nil)
	}
	return seq, nil
}

func validateQuery(reference, stream string) error {
	if reference == "" {
		return pb.NewValidationError("expected Reference")
	} else if stream == "" {
		return pb.NewValidationError("expected Stream")
	}
	return nil
}

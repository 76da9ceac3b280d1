package client

import (
	"context"

	log "github.com/sirupsen/logrus"
	pb "go.gazette.dev/streams/broker/protocol"
)

// CreateStream creates the stream of the StreamSpec. A stream which already
// exists is not an error, and its existing configuration is left as-is.
//
// CreateStream uses the current locator without first checking that it's
// live. If it has closed, CreateStream fails and a subsequent operation
// which checks liveness will re-open it.
func (e *Environment) CreateStream(ctx context.Context, spec pb.StreamSpec) error {
	if err := spec.Validate(); err != nil {
		return &StreamError{Op: "create", Stream: spec.Name, Err: err}
	}
	var conn, err = e.current()
	if err != nil {
		return &StreamError{Op: "create", Stream: spec.Name, Err: err}
	}

	code, err := conn.CreateStream(ctx, spec.Name, spec.Args())
	if err != nil {
		return &StreamError{Op: "create", Stream: spec.Name, Err: e.mapClosedErr(err)}
	}
	observeResponse("create", code)

	switch code {
	case pb.CodeOK:
		log.WithFields(log.Fields{
			"stream": spec.Name,
			"args":   spec.Args(),
		}).Info("created stream")
		return nil
	case pb.CodeStreamAlreadyExists:
		log.WithField("stream", spec.Name).Debug("stream already exists")
		return nil
	default:
		return &StreamError{Op: "create", Stream: spec.Name, Code: code}
	}
}

// DeleteStream deletes stream |name|. Deleting a stream which doesn't exist
// is an error, having Code CodeStreamDoesNotExist.
func (e *Environment) DeleteStream(ctx context.Context, name string) error {
	if err := pb.ValidateName(name, 1, pb.MaxStreamNameLen); err != nil {
		return &StreamError{Op: "delete", Stream: name, Err: pb.ExtendContext(err, "Stream")}
	}
	var conn, err = e.ensureLocator(ctx)
	if err != nil {
		return &StreamError{Op: "delete", Stream: name, Err: err}
	}

	code, err := conn.DeleteStream(ctx, name)
	if err != nil {
		return &StreamError{Op: "delete", Stream: name, Err: e.mapClosedErr(err)}
	}
	observeResponse("delete", code)

	if code != pb.CodeOK {
		return &StreamError{Op: "delete", Stream: name, Code: code}
	}
	e.cache.Invalidate(name)

	log.WithField("stream", name).Info("deleted stream")
	return nil
}

// StreamExists returns true if stream |name| exists and is available.
// It never fails: a closed Environment, an unreachable broker, or a
// non-OK ResponseCode of the stream's metadata each report false.
func (e *Environment) StreamExists(ctx context.Context, name string) bool {
	var info, err = e.streamInfo(ctx, name)
	if err != nil {
		log.WithFields(log.Fields{
			"stream": name,
			"err":    err,
		}).Debug("failed to query stream existence")
		return false
	}
	return info.Code == pb.CodeOK
}

// StreamInfo queries and returns the current StreamInfo of stream |name|.
// Unlike StreamExists, a failure to query is returned. A StreamInfo having a
// non-OK Code is not an error.
func (e *Environment) StreamInfo(ctx context.Context, name string) (pb.StreamInfo, error) {
	var info, err = e.streamInfo(ctx, name)
	if err != nil {
		return pb.StreamInfo{}, &StreamError{Op: "describe", Stream: name, Err: err}
	}
	return info, nil
}

func (e *Environment) streamInfo(ctx context.Context, name string) (pb.StreamInfo, error) {
	var conn, err = e.ensureLocator(ctx)
	if err != nil {
		return pb.StreamInfo{}, err
	}
	return e.queryStreamInfo(ctx, conn, name)
}

// CachedStreamInfo returns the StreamInfo of |stream| last observed by the
// Environment, if it's cached and hasn't expired.
func (e *Environment) CachedStreamInfo(stream string) (pb.StreamInfo, bool) {
	return e.cache.Get(stream)
}

// StreamStats returns broker statistics of stream |name|.
func (e *Environment) StreamStats(ctx context.Context, name string) (pb.StreamStats, error) {
	if err := pb.ValidateName(name, 1, pb.MaxStreamNameLen); err != nil {
		return nil, &StreamError{Op: "stats", Stream: name, Err: pb.ExtendContext(err, "Stream")}
	}
	var conn, err = e.ensureLocator(ctx)
	if err != nil {
		return nil, &StreamError{Op: "stats", Stream: name, Err: err}
	}

	stats, code, err := conn.StreamStats(ctx, name)
	if err != nil {
		return nil, &StreamError{Op: "stats", Stream: name, Err: e.mapClosedErr(err)}
	}
	observeResponse("stats", code)

	if code != pb.CodeOK {
		return nil, &StreamError{Op: "stats", Stream: name, Code: code}
	}
	return stats, nil
}

// CreateSuperStream creates the super stream of the SuperStreamSpec, along
// with its partition streams. A super stream which already exists is not
// an error.
func (e *Environment) CreateSuperStream(ctx context.Context, spec pb.SuperStreamSpec) error {
	if err := spec.Validate(); err != nil {
		return &StreamError{Op: "create super", Stream: spec.Name, Err: err}
	}
	var conn, err = e.ensureLocator(ctx)
	if err != nil {
		return &StreamError{Op: "create super", Stream: spec.Name, Err: err}
	}

	code, err := conn.CreateSuperStream(ctx, spec.Name, spec.PartitionNames(), spec.Keys(), spec.Args())
	if err != nil {
		return &StreamError{Op: "create super", Stream: spec.Name, Err: e.mapClosedErr(err)}
	}
	observeResponse("create_super", code)

	switch code {
	case pb.CodeOK:
		log.WithFields(log.Fields{
			"stream":     spec.Name,
			"partitions": spec.PartitionNames(),
		}).Info("created super stream")
		return nil
	case pb.CodeStreamAlreadyExists:
		return nil
	default:
		return &StreamError{Op: "create super", Stream: spec.Name, Code: code}
	}
}

// DeleteSuperStream deletes super stream |name| and its partition streams.
func (e *Environment) DeleteSuperStream(ctx context.Context, name string) error {
	if err := pb.ValidateName(name, 1, pb.MaxStreamNameLen); err != nil {
		return &StreamError{Op: "delete super", Stream: name, Err: pb.ExtendContext(err, "Stream")}
	}
	var conn, err = e.ensureLocator(ctx)
	if err != nil {
		return &StreamError{Op: "delete super", Stream: name, Err: err}
	}

	code, err := conn.DeleteSuperStream(ctx, name)
	if err != nil {
		return &StreamError{Op: "delete super", Stream: name, Err: e.mapClosedErr(err)}
	}
	observeResponse("delete_super", code)

	if code != pb.CodeOK {
		return &StreamError{Op: "delete super", Stream: name, Code: code}
	}
	log.WithField("stream", name).Info("deleted super stream")
	return nil
}

// QueryPartitions returns the partition streams of super stream |name|.
func (e *Environment) QueryPartitions(ctx context.Context, name string) ([]string, error) {
	if err := pb.ValidateName(name, 1, pb.MaxStreamNameLen); err != nil {
		return nil, &StreamError{Op: "partitions", Stream: name, Err: pb.ExtendContext(err, "Stream")}
	}
	var conn, err = e.ensureLocator(ctx)
	if err != nil {
		return nil, &StreamError{Op: "partitions", Stream: name, Err: err}
	}

	parts, code, err := conn.QueryPartitions(ctx, name)
	if err != nil {
		return nil, &StreamError{Op: "partitions", Stream: name, Err: e.mapClosedErr(err)}
	}
	observeResponse("partitions", code)

	if code != pb.CodeOK {
		return nil, &StreamError{Op: "partitions", Stream: name, Code: code}
	}
	return parts, nil
}

// QueryRoute returns the partition streams of super stream |name| to which
// |routingKey| is bound. An unbound key returns no partitions.
func (e *Environment) QueryRoute(ctx context.Context, name, routingKey string) ([]string, error) {
	if err := pb.ValidateName(name, 1, pb.MaxStreamNameLen); err != nil {
		return nil, &StreamError{Op: "route", Stream: name, Err: pb.ExtendContext(err, "Stream")}
	} else if routingKey == "" {
		return nil, &StreamError{Op: "route", Stream: name, Err: pb.NewValidationError("expected RoutingKey")}
	}
	var conn, err = e.ensureLocator(ctx)
	if err != nil {
		return nil, &StreamError{Op: "route", Stream: name, Err: err}
	}

	parts, code, err := conn.QueryRoute(ctx, name, routingKey)
	if err != nil {
		return nil, &StreamError{Op: "route", Stream: name, Err: e.mapClosedErr(err)}
	}
	observeResponse("route", code)

	if code != pb.CodeOK {
		return nil, &StreamError{Op: "route", Stream: name, Code: code}
	}
	return parts, nil
}

package client

import (
	"context"

	log "github.com/sirupsen/logrus"
	pb "go.gazette.dev/streams/broker/protocol"
)

// Producer is a data-path session which publishes to a stream. Its
// implementation is provided by a ProducerFactory.
type Producer interface {
	Close() error
}

// Consumer is a data-path session which consumes from a stream. Its
// implementation is provided by a ConsumerFactory.
type Consumer interface {
	Close() error
}

// ProducerFactory builds a Producer of a validated ProducerConfig. It's
// passed the ConnectionParameters the Producer should use (which carry the
// ProducerConfig's client name) and the StreamInfo of the stream, from
// which it may select a broker to connect to.
type ProducerFactory func(context.Context, pb.ConnectionParameters, ProducerConfig, pb.StreamInfo) (Producer, error)

// ConsumerFactory builds a Consumer of a validated ConsumerConfig. It's
// passed the ConnectionParameters the Consumer should use (which carry the
// ConsumerConfig's client name) and the StreamInfo of the stream, from
// which it may select a broker to connect to.
type ConsumerFactory func(context.Context, pb.ConnectionParameters, ConsumerConfig, pb.StreamInfo) (Consumer, error)

// ProducerConfig configures a Producer.
type ProducerConfig struct {
	// Stream to publish to.
	Stream string
	// ClientProvidedName of the Producer's connection. If empty, the client
	// name of the Environment is used.
	ClientProvidedName string
	// Reference of the Producer, used for message deduplication. Optional.
	Reference string
	// MessagesBufferSize is the number of messages which the Producer may
	// accumulate into a single batch. It must be greater than
	// MinMessagesBufferSize.
	MessagesBufferSize int
}

// Validate returns an error if the ProducerConfig is not well-formed.
func (m *ProducerConfig) Validate() error {
	if m.Stream == "" {
		return pb.NewValidationError("expected Stream")
	} else if err := pb.ValidateName(m.Stream, 1, pb.MaxStreamNameLen); err != nil {
		return pb.ExtendContext(err, "Stream")
	} else if m.MessagesBufferSize <= MinMessagesBufferSize {
		return pb.NewValidationError("invalid MessagesBufferSize (%d; expected > %d)",
			m.MessagesBufferSize, MinMessagesBufferSize)
	} else if m.Reference == "" {
		// Pass.
	} else if err = pb.ValidateReference(m.Reference); err != nil {
		return pb.ExtendContext(err, "Reference")
	}
	return nil
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	// Stream to consume from.
	Stream string
	// ClientProvidedName of the Consumer's connection. If empty, the client
	// name of the Environment is used.
	ClientProvidedName string
	// Reference of the Consumer, under which it stores offsets. Optional,
	// unless SingleActiveConsumer is set.
	Reference string
	// SingleActiveConsumer, if true, has brokers deliver to only one of the
	// Consumers sharing the Reference at a time.
	SingleActiveConsumer bool
}

// Validate returns an error if the ConsumerConfig is not well-formed.
func (m *ConsumerConfig) Validate() error {
	if m.Stream == "" {
		return pb.NewValidationError("expected Stream")
	} else if err := pb.ValidateName(m.Stream, 1, pb.MaxStreamNameLen); err != nil {
		return pb.ExtendContext(err, "Stream")
	} else if m.SingleActiveConsumer && m.Reference == "" {
		return pb.NewValidationError("expected Reference (required by SingleActiveConsumer)")
	} else if m.Reference == "" {
		// Pass.
	} else if err = pb.ValidateReference(m.Reference); err != nil {
		return pb.ExtendContext(err, "Reference")
	}
	return nil
}

// CreateProducer validates the ProducerConfig, queries the metadata of its
// Stream, and builds a Producer of the Stream using the Environment's
// ProducerFactory. Failures are returned as *ProducerError.
//
// An invalid ProducerConfig fails before any broker is contacted. A
// non-OK ResponseCode of the Stream's metadata is returned as the
// ProducerError's Code.
func (e *Environment) CreateProducer(ctx context.Context, cfg ProducerConfig) (Producer, error) {
	var fail = func(code pb.ResponseCode, err error, outcome string) (Producer, error) {
		sessionsCreatedTotal.WithLabelValues("producer", outcome).Inc()
		return nil, &ProducerError{Stream: cfg.Stream, Code: code, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return fail(0, err, outcomeInvalid)
	} else if e.closed.Load() {
		return fail(0, ErrEnvironmentClosed, outcomeFailed)
	} else if e.newProducer == nil {
		return fail(0, ErrNoProducerFactory, outcomeInvalid)
	}

	var params, info, err = e.resolveSession(ctx, cfg.Stream)
	if err != nil {
		return fail(0, err, outcomeFailed)
	} else if info.Code != pb.CodeOK {
		return fail(info.Code, nil, outcomeRejected)
	}

	// Serialize the client name override and Producer creation.
	if err = e.acquire(ctx); err != nil {
		return fail(0, err, outcomeFailed)
	}
	defer e.gate.Release(1)

	params = params.WithClientName(cfg.ClientProvidedName)
	producer, err := e.newProducer(ctx, params, cfg, info)
	if err != nil {
		return fail(0, err, outcomeFailed)
	}
	sessionsCreatedTotal.WithLabelValues("producer", outcomeOK).Inc()

	log.WithFields(log.Fields{
		"stream": cfg.Stream,
		"leader": info.Leader.Address(),
		"client": params.ClientName,
	}).Debug("created producer")

	return producer, nil
}

// CreateConsumer validates the ConsumerConfig, queries the metadata of its
// Stream, and builds a Consumer of the Stream using the Environment's
// ConsumerFactory. Failures are returned as *ConsumerError.
//
// An invalid ConsumerConfig fails before any broker is contacted. A
// non-OK ResponseCode of the Stream's metadata is returned as the
// ConsumerError's Code.
func (e *Environment) CreateConsumer(ctx context.Context, cfg ConsumerConfig) (Consumer, error) {
	var fail = func(code pb.ResponseCode, err error, outcome string) (Consumer, error) {
		sessionsCreatedTotal.WithLabelValues("consumer", outcome).Inc()
		return nil, &ConsumerError{Stream: cfg.Stream, Code: code, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return fail(0, err, outcomeInvalid)
	} else if e.closed.Load() {
		return fail(0, ErrEnvironmentClosed, outcomeFailed)
	} else if e.newConsumer == nil {
		return fail(0, ErrNoConsumerFactory, outcomeInvalid)
	}

	var params, info, err = e.resolveSession(ctx, cfg.Stream)
	if err != nil {
		return fail(0, err, outcomeFailed)
	} else if info.Code != pb.CodeOK {
		return fail(info.Code, nil, outcomeRejected)
	}

	// Serialize the client name override and Consumer creation.
	if err = e.acquire(ctx); err != nil {
		return fail(0, err, outcomeFailed)
	}
	defer e.gate.Release(1)

	params = params.WithClientName(cfg.ClientProvidedName)
	consumer, err := e.newConsumer(ctx, params, cfg, info)
	if err != nil {
		return fail(0, err, outcomeFailed)
	}
	sessionsCreatedTotal.WithLabelValues("consumer", outcomeOK).Inc()

	log.WithFields(log.Fields{
		"stream": cfg.Stream,
		"leader": info.Leader.Address(),
		"client": params.ClientName,
	}).Debug("created consumer")

	return consumer, nil
}

// resolveSession ensures a live locator, and queries the StreamInfo of
// |stream| through it. It returns base ConnectionParameters bound to the
// locator's Endpoint, for use by a session factory.
func (e *Environment) resolveSession(ctx context.Context, stream string) (pb.ConnectionParameters, pb.StreamInfo, error) {
	var conn, err = e.ensureLocator(ctx)
	if err != nil {
		return pb.ConnectionParameters{}, pb.StreamInfo{}, err
	}
	info, err := e.queryStreamInfo(ctx, conn, stream)
	if err != nil {
		return pb.ConnectionParameters{}, pb.StreamInfo{}, err
	}
	return e.params.WithEndpoint(conn.Parameters().Endpoint), info, nil
}

// queryStreamInfo queries the metadata of a single |stream|. A stream
// absent from the broker's response is reported as CodeStreamDoesNotExist.
func (e *Environment) queryStreamInfo(ctx context.Context, conn pb.Connection, stream string) (pb.StreamInfo, error) {
	var resp, err = conn.QueryMetadata(ctx, stream)
	if err != nil {
		return pb.StreamInfo{}, e.mapClosedErr(err)
	}

	var info, ok = resp[stream]
	if !ok {
		info = pb.StreamInfo{Stream: stream, Code: pb.CodeStreamDoesNotExist}
	}
	observeResponse("metadata", info.Code)
	e.cache.Update(info)

	return info, nil
}

const (
	// MinMessagesBufferSize is the exclusive lower bound of ProducerConfig.MessagesBufferSize.
	MinMessagesBufferSize = 0
	// DefaultMessagesBufferSize is a suggested ProducerConfig.MessagesBufferSize.
	DefaultMessagesBufferSize = 100
)

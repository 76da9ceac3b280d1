package client

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/streams/async"
	pb "go.gazette.dev/streams/broker/protocol"
	"golang.org/x/sync/semaphore"
)

// EnvironmentArgs are arguments of NewEnvironment.
type EnvironmentArgs struct {
	// Endpoints which are candidates for the locator connection, in the
	// order in which they're attempted.
	Endpoints []pb.Endpoint
	// Parameters are base ConnectionParameters of all connections opened by
	// the Environment. Parameters.Endpoint is ignored. If ClientName is
	// empty, a unique name is generated.
	Parameters pb.ConnectionParameters
	// Dialer opens Connections.
	Dialer pb.Dialer
	// NewProducer builds producers for CreateProducer. Optional.
	NewProducer ProducerFactory
	// NewConsumer builds consumers for CreateConsumer. Optional.
	NewConsumer ConsumerFactory
	// Cache, if non-nil, is updated with observed StreamInfo.
	Cache *StreamInfoCache
}

// Validate returns an error if the EnvironmentArgs are not well-formed.
func (m *EnvironmentArgs) Validate() error {
	if len(m.Endpoints) == 0 {
		return pb.NewValidationError("expected at least one Endpoint")
	} else if m.Dialer == nil {
		return pb.NewValidationError("expected Dialer")
	}
	for i, ep := range m.Endpoints {
		var params = m.Parameters.WithEndpoint(m.Parameters.Resolve(ep))
		if err := params.Validate(); err != nil {
			return pb.ExtendContext(err, "Endpoints[%d]", i)
		}
	}
	return nil
}

// Environment is the entry point of applications to a cluster of stream
// brokers. It owns a single control-plane Connection, the "locator", which
// it uses to administer streams, to query stored offsets and publisher
// sequences, and to resolve the leader and replicas of a stream before a
// producer or consumer of it is created. Producers and consumers have
// connections of their own, and are owned by the caller.
//
// An Environment is safe for concurrent use. If the locator connection is
// found to be closed, it's transparently re-opened by the next operation
// which requires it. A single gate serializes locator re-opens, and also
// the creation of producers and consumers. It's never held across metadata
// queries, stream administration, or offset and sequence queries.
type Environment struct {
	params      pb.ConnectionParameters // Base parameters, holding the original ClientName.
	dialer      pb.Dialer
	newProducer ProducerFactory
	newConsumer ConsumerFactory
	cache       *StreamInfoCache

	gate    *semaphore.Weighted // Weight-one gate of locator re-opens and session creation.
	locator atomic.Value        // Holds locatorRef.
	closed  atomic.Bool
	done    async.Promise
}

// locatorRef wraps a Connection for storage in an atomic.Value, which
// requires a consistent concrete type.
type locatorRef struct{ conn pb.Connection }

// NewEnvironment builds an Environment by opening a locator Connection to
// the first of the Endpoints which accepts one, attempting each in order.
//
// An Endpoint which fails to connect is skipped, unless its failure is
// classified as fatal by pb.ClassifyConnectError (a protocol negotiation or
// TLS failure) in which case NewEnvironment returns it immediately, as no
// other Endpoint could fare better. If the Context is done, the Dialer's
// error is likewise returned immediately and unchanged. Dial timeouts of an
// Endpoint are otherwise skipped as any other unavailable Endpoint. If every Endpoint fails,
// an *InitializationError is returned.
func NewEnvironment(ctx context.Context, args EnvironmentArgs) (*Environment, error) {
	if args.Parameters.ClientName == "" {
		args.Parameters.ClientName = pb.NewClientName(DefaultClientNamePrefix)
	}
	if err := args.Validate(); err != nil {
		return nil, err
	}
	var initErr = new(InitializationError)

	for attempt, ep := range args.Endpoints {
		var params = args.Parameters.WithEndpoint(args.Parameters.Resolve(ep))
		var conn, err = args.Dialer.Open(ctx, params)

		if err == nil && (conn == nil || conn.IsClosed()) {
			err = errClosedOnOpen
		}
		if err == nil {
			locatorConnectTotal.WithLabelValues(outcomeOK).Inc()

			log.WithFields(log.Fields{
				"endpoint": params.Endpoint,
				"client":   params.ClientName,
				"attempt":  attempt,
			}).Info("connected stream environment locator")

			return newEnvironment(args, conn), nil
		}

		if ctx.Err() != nil {
			return nil, err
		} else if kind := pb.ClassifyConnectError(err); kind.IsFatal() {
			locatorConnectTotal.WithLabelValues(outcomeFatal).Inc()
			return nil, err
		}
		locatorConnectTotal.WithLabelValues(outcomeUnavailable).Inc()

		log.WithFields(log.Fields{
			"endpoint": params.Endpoint,
			"err":      err,
			"attempt":  attempt,
		}).Warn("failed to connect locator (will try next endpoint)")

		initErr.add(params.Endpoint, err)
	}
	return nil, initErr
}

func newEnvironment(args EnvironmentArgs, conn pb.Connection) *Environment {
	var env = &Environment{
		params:      args.Parameters,
		dialer:      args.Dialer,
		newProducer: args.NewProducer,
		newConsumer: args.NewConsumer,
		cache:       args.Cache,
		gate:        semaphore.NewWeighted(1),
		done:        async.NewPromise(),
	}
	env.locator.Store(locatorRef{conn})
	return env
}

// Locator returns the current locator Connection of the Environment. It may
// be closed, in which case it will be replaced by the next operation which
// requires a live locator.
func (e *Environment) Locator() pb.Connection {
	return e.locator.Load().(locatorRef).conn
}

// Parameters returns the base ConnectionParameters of the Environment.
func (e *Environment) Parameters() pb.ConnectionParameters { return e.params }

// Cache returns the StreamInfoCache of the Environment, which may be nil.
func (e *Environment) Cache() *StreamInfoCache { return e.cache }

// Done returns a Promise which is resolved when the Environment is closed.
func (e *Environment) Done() async.Promise { return e.done }

// Close the Environment and its locator Connection. Subsequent operations
// fail with ErrEnvironmentClosed, as do in-flight operations which then
// fail. Producers and consumers created by the Environment are unaffected.
// Close may be called more than once, but only the first call closes.
func (e *Environment) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.done.Resolve()

	// Wait out any in-progress re-open, so that the Connection it installs
	// is the one we close. No re-open will start after this point.
	_ = e.gate.Acquire(context.Background(), 1)
	defer e.gate.Release(1)

	var conn = e.Locator()
	if conn.IsClosed() {
		return nil
	}
	log.WithField("endpoint", conn.Parameters().Endpoint).Debug("closing stream environment")
	return conn.Close("environment closed")
}

// current returns the present locator Connection without checking whether
// it's live, or ErrEnvironmentClosed.
func (e *Environment) current() (pb.Connection, error) {
	if e.closed.Load() {
		return nil, ErrEnvironmentClosed
	}
	return e.Locator(), nil
}

// ensureLocator returns a live locator Connection, re-opening it against
// its previous Endpoint if it has closed. Re-opens use the base
// ConnectionParameters, and don't fail over to other Endpoints.
func (e *Environment) ensureLocator(ctx context.Context) (pb.Connection, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.gate.Release(1)

	var conn = e.Locator()
	if !conn.IsClosed() {
		return conn, nil
	}
	var params = e.params.WithEndpoint(conn.Parameters().Endpoint)
	var next, err = e.dialer.Open(ctx, params)

	if err == nil && (next == nil || next.IsClosed()) {
		err = errClosedOnOpen
	}
	if err != nil {
		locatorReconnectTotal.WithLabelValues(outcomeFailed).Inc()

		log.WithFields(log.Fields{
			"endpoint": params.Endpoint,
			"err":      err,
		}).Warn("failed to re-open closed locator")

		if ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.WithMessagef(err, "re-opening locator to %s", params.Endpoint)
	}
	e.locator.Store(locatorRef{next})
	locatorReconnectTotal.WithLabelValues(outcomeOK).Inc()

	log.WithFields(log.Fields{
		"endpoint": params.Endpoint,
		"client":   params.ClientName,
	}).Info("re-opened closed locator")

	return next, nil
}

// acquire the gate, failing if the Environment is closed. On success, the
// caller must Release the gate.
func (e *Environment) acquire(ctx context.Context) error {
	if e.closed.Load() {
		return ErrEnvironmentClosed
	} else if err := e.gate.Acquire(ctx, 1); err != nil {
		return err
	} else if e.closed.Load() {
		e.gate.Release(1)
		return ErrEnvironmentClosed
	}
	return nil
}

// mapClosedErr maps an error of a locator operation which raced Close to
// ErrEnvironmentClosed.
func (e *Environment) mapClosedErr(err error) error {
	if err != nil && e.closed.Load() {
		return ErrEnvironmentClosed
	}
	return err
}

// DefaultClientNamePrefix prefixes generated client names of Environments.
const DefaultClientNamePrefix = "stream-environment"

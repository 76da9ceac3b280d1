// Package client implements the session layer of a Go client for stream
// brokers. Its Environment owns one control-plane Connection, the locator,
// through which applications administer streams, query stored consumer
// offsets and publisher sequences, and resolve the leader and replicas of a
// stream before creating a producer or consumer of it.
//
// An Environment is built over an ordered list of Endpoints, of which the
// first to accept a Connection becomes the locator:
//
//	var env, err = client.NewEnvironment(ctx, client.EnvironmentArgs{
//	    Endpoints:  []pb.Endpoint{"stream://broker-a:5552", "stream://broker-b:5552"},
//	    Parameters: pb.ConnectionParameters{User: "guest", Password: "guest", VirtualHost: "/"},
//	    Dialer:     myDialer,
//	})
//
// Endpoints which are unavailable are skipped. Failures which implicate the
// ConnectionParameters themselves (protocol negotiation, TLS) are returned
// immediately, and exhausting all Endpoints returns an *InitializationError.
//
// Should the locator close, the next operation which requires it re-opens
// it against the same Endpoint. Concurrent operations finding a closed
// locator result in exactly one re-open. The Dialer is a pb.Dialer, which
// encapsulates the wire protocol: frame codecs, authentication, heartbeats
// and TLS are not concerns of this package.
//
//	if err = env.CreateStream(ctx, pb.StreamSpec{
//	    Name:          "orders",
//	    LeaderLocator: pb.LeaderLocatorClientLocal,
//	}); err != nil {
//	    return err // A stream which already exists is not an error.
//	}
//	var producer, err = env.CreateProducer(ctx, client.ProducerConfig{
//	    Stream:             "orders",
//	    MessagesBufferSize: client.DefaultMessagesBufferSize,
//	})
//
// Producers and consumers are built by ProducerFactory and ConsumerFactory
// functions of the EnvironmentArgs, which are passed the stream's current
// StreamInfo and own their data-path connections.
//
// Failures are typed. Operations return *ProducerError, *ConsumerError,
// *StreamError or *QueryError, each of which wraps an underlying cause
// (such as a *pb.ValidationError) or carries the broker's non-OK
// pb.ResponseCode, as extracted by ResponseCodeOf.
package client

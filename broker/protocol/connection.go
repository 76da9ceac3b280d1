package protocol

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/google/uuid"
)

// ConnectionParameters configure the opening of a Connection to a single broker.
type ConnectionParameters struct {
	// Endpoint to connect to.
	Endpoint Endpoint
	// User and Password authenticate the connection.
	User     string
	Password string
	// VirtualHost to open the connection against.
	VirtualHost string
	// TLS configuration of the connection. If nil and the Endpoint is a TLS
	// endpoint, the Dialer uses a default configuration.
	TLS *tls.Config
	// Heartbeat is the keep-alive interval negotiated with the broker.
	// Zero disables heartbeats.
	Heartbeat time.Duration
	// AddressResolver, if non-nil, maps each Endpoint to the address actually
	// dialed. It's used where brokers are reached through a load balancer.
	AddressResolver AddressResolver
	// ClientName identifies the connection to brokers, and is shown in
	// broker management tooling.
	ClientName string
}

// Validate returns an error if the ConnectionParameters are not well-formed.
func (m *ConnectionParameters) Validate() error {
	if err := m.Endpoint.Validate(); err != nil {
		return ExtendContext(err, "Endpoint")
	} else if m.Heartbeat < 0 {
		return NewValidationError("invalid Heartbeat (%s; expected >= 0)", m.Heartbeat)
	} else if m.VirtualHost == "" {
		return NewValidationError("expected VirtualHost")
	}
	return nil
}

// WithEndpoint returns a copy of the ConnectionParameters bound to |ep|.
func (m ConnectionParameters) WithEndpoint(ep Endpoint) ConnectionParameters {
	m.Endpoint = ep
	return m
}

// WithClientName returns a copy of the ConnectionParameters using client
// name |name|. If |name| is empty, the present ClientName is kept.
func (m ConnectionParameters) WithClientName(name string) ConnectionParameters {
	if name != "" {
		m.ClientName = name
	}
	return m
}

// Resolve returns the Endpoint to dial for |ep|, which is |ep| itself
// unless an AddressResolver is set.
func (m *ConnectionParameters) Resolve(ep Endpoint) Endpoint {
	if m.AddressResolver == nil {
		return ep
	}
	return m.AddressResolver.Resolve(ep)
}

// AddressResolver maps an advertised Endpoint to the Endpoint which should
// actually be dialed.
type AddressResolver interface {
	Resolve(Endpoint) Endpoint
}

// StaticAddressResolver resolves every Endpoint to itself, which is
// typically a load balancer fronting all brokers.
type StaticAddressResolver Endpoint

// Resolve returns the StaticAddressResolver as an Endpoint.
func (r StaticAddressResolver) Resolve(Endpoint) Endpoint { return Endpoint(r) }

// NewClientName returns a unique client name having the given prefix.
func NewClientName(prefix string) string {
	return prefix + "-" + uuid.New().String()
}

// Connection is a control-plane connection to a single broker. It's
// implemented by the wire protocol layer, which owns framing, the
// authentication handshake, heartbeats and TLS. All methods other than
// IsClosed and Close block on a broker round-trip, and return the broker's
// ResponseCode alongside a nil error when a reply was received.
type Connection interface {
	// Parameters returns the ConnectionParameters the Connection was opened with.
	Parameters() ConnectionParameters
	// QueryMetadata returns StreamInfo of each of the named streams. Streams
	// unknown to the broker may be absent from the result.
	QueryMetadata(ctx context.Context, streams ...string) (map[string]StreamInfo, error)
	// CreateStream creates stream |name| with broker arguments |args|.
	CreateStream(ctx context.Context, name string, args map[string]string) (ResponseCode, error)
	// DeleteStream deletes stream |name|.
	DeleteStream(ctx context.Context, name string) (ResponseCode, error)
	// QueryOffset returns the stored offset of |reference| on |stream|.
	QueryOffset(ctx context.Context, reference, stream string) (uint64, ResponseCode, error)
	// QueryPublisherSequence returns the last publishing sequence
	// number of |reference| on |stream|.
	QueryPublisherSequence(ctx context.Context, reference, stream string) (uint64, ResponseCode, error)
	// StreamStats returns broker statistics of |stream|.
	StreamStats(ctx context.Context, stream string) (StreamStats, ResponseCode, error)
	// CreateSuperStream creates super stream |name| of |partitions|, routed by |bindingKeys|.
	CreateSuperStream(ctx context.Context, name string, partitions, bindingKeys []string, args map[string]string) (ResponseCode, error)
	// DeleteSuperStream deletes super stream |name| and its partitions.
	DeleteSuperStream(ctx context.Context, name string) (ResponseCode, error)
	// QueryPartitions returns the partition streams of |superStream|.
	QueryPartitions(ctx context.Context, superStream string) ([]string, ResponseCode, error)
	// QueryRoute returns the partition streams |routingKey| routes to within |superStream|.
	QueryRoute(ctx context.Context, superStream, routingKey string) ([]string, ResponseCode, error)
	// IsClosed returns true if the Connection is no longer usable, either
	// because Close was called or the broker side went away.
	IsClosed() bool
	// Close the Connection, reporting |reason| to the broker.
	Close(reason string) error
}

// Dialer opens Connections.
type Dialer interface {
	// Open a Connection using the ConnectionParameters. Errors which
	// implicate the parameters themselves, rather than availability of the
	// particular broker, should be returned as a *ConnectError having Kind
	// ConnectProtocol or ConnectTLS.
	Open(context.Context, ConnectionParameters) (Connection, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(context.Context, ConnectionParameters) (Connection, error)

// Open invokes the DialerFunc.
func (fn DialerFunc) Open(ctx context.Context, params ConnectionParameters) (Connection, error) {
	return fn(ctx, params)
}

// Package teststub provides an in-memory broker, reachable through a
// pb.Dialer, for use within tests. Brokers track streams, stored offsets and
// publisher sequences, and super streams, and allow tests to fail or take
// down individual Endpoints, to count every call, and to replace the
// behavior of individual operations with hook functions.
package teststub

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	pb "go.gazette.dev/streams/broker/protocol"
)

// ErrConnectionClosed is returned by operations of a closed Conn.
var ErrConnectionClosed = errors.New("connection is closed")

// Operation names counted by Broker.Calls.
const (
	OpQueryMetadata     = "QueryMetadata"
	OpCreateStream      = "CreateStream"
	OpDeleteStream      = "DeleteStream"
	OpQueryOffset       = "QueryOffset"
	OpQuerySequence     = "QueryPublisherSequence"
	OpStreamStats       = "StreamStats"
	OpCreateSuperStream = "CreateSuperStream"
	OpDeleteSuperStream = "DeleteSuperStream"
	OpQueryPartitions   = "QueryPartitions"
	OpQueryRoute        = "QueryRoute"
)

// Broker is an in-memory broker cluster. Each Endpoint dialed through
// Dialer is a node of the cluster, and all nodes share one set of streams.
type Broker struct {
	// OpenFunc, if set, is invoked by each Dialer.Open before the Broker's
	// own checks. A non-nil error fails the Open.
	OpenFunc func(context.Context, pb.ConnectionParameters) error
	// QueryMetadataFunc, if set, replaces in-memory metadata queries.
	QueryMetadataFunc func(context.Context, []string) (map[string]pb.StreamInfo, error)
	// CreateStreamFunc, if set, replaces in-memory stream creation.
	CreateStreamFunc func(context.Context, string, map[string]string) (pb.ResponseCode, error)
	// DeleteStreamFunc, if set, replaces in-memory stream deletion.
	DeleteStreamFunc func(context.Context, string) (pb.ResponseCode, error)
	// QueryOffsetFunc, if set, replaces in-memory offset queries.
	QueryOffsetFunc func(ctx context.Context, reference, stream string) (uint64, pb.ResponseCode, error)
	// QuerySequenceFunc, if set, replaces in-memory publisher sequence queries.
	QuerySequenceFunc func(ctx context.Context, reference, stream string) (uint64, pb.ResponseCode, error)

	mu       sync.Mutex
	streams  map[string]*stream
	supers   map[string]*superStream
	down     map[pb.Endpoint]bool
	dead     map[pb.Endpoint]bool
	openErrs map[pb.Endpoint]error
	opens    map[pb.Endpoint]int
	calls    map[string]int
	conns    []*Conn
}

type stream struct {
	args      map[string]string
	offsets   map[string]uint64
	sequences map[string]uint64
	stats     pb.StreamStats
}

type superStream struct {
	partitions []string
	keys       []string
}

// NewBroker returns an empty Broker with all Endpoints reachable.
func NewBroker() *Broker {
	return &Broker{
		streams:  make(map[string]*stream),
		supers:   make(map[string]*superStream),
		down:     make(map[pb.Endpoint]bool),
		dead:     make(map[pb.Endpoint]bool),
		openErrs: make(map[pb.Endpoint]error),
		opens:    make(map[pb.Endpoint]int),
		calls:    make(map[string]int),
	}
}

// Dialer returns a pb.Dialer which opens Conns of the Broker.
func (b *Broker) Dialer() pb.Dialer { return pb.DialerFunc(b.open) }

// SetDown marks whether Endpoint |ep| refuses connections.
func (b *Broker) SetDown(ep pb.Endpoint, down bool) {
	b.mu.Lock()
	b.down[ep] = down
	b.mu.Unlock()
}

// SetOpenError causes Opens of Endpoint |ep| to fail with |err|. A nil
// |err| clears a previously set error.
func (b *Broker) SetOpenError(ep pb.Endpoint, err error) {
	b.mu.Lock()
	if err == nil {
		delete(b.openErrs, ep)
	} else {
		b.openErrs[ep] = err
	}
	b.mu.Unlock()
}

// SetDeadOnOpen causes Opens of Endpoint |ep| to succeed, but with a Conn
// which is already closed.
func (b *Broker) SetDeadOnOpen(ep pb.Endpoint, dead bool) {
	b.mu.Lock()
	b.dead[ep] = dead
	b.mu.Unlock()
}

// Opens returns the number of Open attempts made of Endpoint |ep|.
func (b *Broker) Opens(ep pb.Endpoint) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens[ep]
}

// TotalOpens returns the number of Open attempts made of all Endpoints.
func (b *Broker) TotalOpens() (n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.opens {
		n += c
	}
	return
}

// Calls returns the number of invocations of operation |op| across all Conns.
func (b *Broker) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// TotalCalls returns the number of operation invocations across all Conns.
// Opens are not included.
func (b *Broker) TotalCalls() (n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.calls {
		n += c
	}
	return
}

// Conns returns all Conns successfully opened of the Broker, in order.
func (b *Broker) Conns() []*Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Conn(nil), b.conns...)
}

// OpenConns returns the number of Conns which are not closed.
func (b *Broker) OpenConns() (n int) {
	for _, c := range b.Conns() {
		if !c.IsClosed() {
			n++
		}
	}
	return
}

// StreamArgs returns the creation arguments of |name|, and whether it exists.
func (b *Broker) StreamArgs(name string) (map[string]string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.streams[name]; ok {
		return s.args, true
	}
	return nil, false
}

// StoreOffset stores |offset| for |reference| on existing stream |name|.
func (b *Broker) StoreOffset(reference, name string, offset uint64) {
	b.mu.Lock()
	b.streams[name].offsets[reference] = offset
	b.mu.Unlock()
}

// StoreSequence stores publisher |sequence| for |reference| on existing stream |name|.
func (b *Broker) StoreSequence(reference, name string, sequence uint64) {
	b.mu.Lock()
	b.streams[name].sequences[reference] = sequence
	b.mu.Unlock()
}

// SetStats sets the statistics of existing stream |name|.
func (b *Broker) SetStats(name string, stats pb.StreamStats) {
	b.mu.Lock()
	b.streams[name].stats = stats
	b.mu.Unlock()
}

func (b *Broker) open(ctx context.Context, params pb.ConnectionParameters) (pb.Connection, error) {
	var ep = params.Endpoint

	b.mu.Lock()
	b.opens[ep]++
	var openFn = b.OpenFunc
	b.mu.Unlock()

	if openFn != nil {
		if err := openFn(ctx, params); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	} else if err = params.Validate(); err != nil {
		return nil, pb.NewConnectError(pb.ConnectProtocol, ep, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err, ok := b.openErrs[ep]; ok {
		return nil, err
	} else if b.down[ep] {
		return nil, &net.OpError{Op: "dial", Net: "tcp",
			Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}
	}

	var conn = &Conn{broker: b, params: params}
	if b.dead[ep] {
		conn.closed = true
	}
	b.conns = append(b.conns, conn)

	log.WithFields(log.Fields{"endpoint": ep, "client": params.ClientName}).Debug("teststub: opened connection")
	return conn, nil
}

// Conn is a pb.Connection to a Broker.
type Conn struct {
	broker *Broker
	params pb.ConnectionParameters

	mu          sync.Mutex
	closed      bool
	closeReason string
}

var _ pb.Connection = (*Conn)(nil)

// Parameters returns the ConnectionParameters the Conn was opened with.
func (c *Conn) Parameters() pb.ConnectionParameters { return c.params }

// IsClosed returns whether the Conn was closed or killed.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close the Conn.
func (c *Conn) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	c.closed, c.closeReason = true, reason
	return nil
}

// CloseReason returns the reason passed to Close, if any.
func (c *Conn) CloseReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}

// Kill closes the Conn as if the broker side had gone away.
func (c *Conn) Kill() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// begin counts a call of |op|, and fails if the Conn is closed.
func (c *Conn) begin(op string) error {
	c.broker.mu.Lock()
	c.broker.calls[op]++
	c.broker.mu.Unlock()

	if c.IsClosed() {
		return ErrConnectionClosed
	}
	return nil
}

// end fails an operation which raced a Close of the Conn.
func (c *Conn) end(err error) error {
	if err == nil && c.IsClosed() {
		return ErrConnectionClosed
	}
	return err
}

// QueryMetadata implements pb.Connection.
func (c *Conn) QueryMetadata(ctx context.Context, streams ...string) (map[string]pb.StreamInfo, error) {
	if err := c.begin(OpQueryMetadata); err != nil {
		return nil, err
	}
	if fn := c.broker.QueryMetadataFunc; fn != nil {
		var out, err = fn(ctx, streams)
		return out, c.end(err)
	}

	var b = c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	var leader = c.leader()
	var out = make(map[string]pb.StreamInfo, len(streams))

	for _, name := range streams {
		if _, ok := b.streams[name]; ok {
			out[name] = pb.StreamInfo{Stream: name, Code: pb.CodeOK, Leader: leader}
		} else {
			out[name] = pb.StreamInfo{Stream: name, Code: pb.CodeStreamDoesNotExist}
		}
	}
	return out, nil
}

// CreateStream implements pb.Connection.
func (c *Conn) CreateStream(ctx context.Context, name string, args map[string]string) (pb.ResponseCode, error) {
	if err := c.begin(OpCreateStream); err != nil {
		return 0, err
	}
	if fn := c.broker.CreateStreamFunc; fn != nil {
		var code, err = fn(ctx, name, args)
		return code, c.end(err)
	}

	var b = c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.createLocked(name, args), nil
}

// DeleteStream implements pb.Connection.
func (c *Conn) DeleteStream(ctx context.Context, name string) (pb.ResponseCode, error) {
	if err := c.begin(OpDeleteStream); err != nil {
		return 0, err
	}
	if fn := c.broker.DeleteStreamFunc; fn != nil {
		var code, err = fn(ctx, name)
		return code, c.end(err)
	}

	var b = c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.streams[name]; !ok {
		return pb.CodeStreamDoesNotExist, nil
	}
	delete(b.streams, name)
	return pb.CodeOK, nil
}

// QueryOffset implements pb.Connection.
func (c *Conn) QueryOffset(ctx context.Context, reference, name string) (uint64, pb.ResponseCode, error) {
	if err := c.begin(OpQueryOffset); err != nil {
		return 0, 0, err
	}
	if fn := c.broker.QueryOffsetFunc; fn != nil {
		var offset, code, err = fn(ctx, reference, name)
		return offset, code, c.end(err)
	}

	var b = c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.streams[name]; !ok {
		return 0, pb.CodeStreamDoesNotExist, nil
	} else if offset, ok := s.offsets[reference]; !ok {
		return 0, pb.CodeOffsetNotFound, nil
	} else {
		return offset, pb.CodeOK, nil
	}
}

// QueryPublisherSequence implements pb.Connection.
func (c *Conn) QueryPublisherSequence(ctx context.Context, reference, name string) (uint64, pb.ResponseCode, error) {
	if err := c.begin(OpQuerySequence); err != nil {
		return 0, 0, err
	}
	if fn := c.broker.QuerySequenceFunc; fn != nil {
		var seq, code, err = fn(ctx, reference, name)
		return seq, code, c.end(err)
	}

	var b = c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.streams[name]; !ok {
		return 0, pb.CodeStreamDoesNotExist, nil
	} else {
		return s.sequences[reference], pb.CodeOK, nil // Zero if never published.
	}
}

// StreamStats implements pb.Connection.
func (c *Conn) StreamStats(_ context.Context, name string) (pb.StreamStats, pb.ResponseCode, error) {
	if err := c.begin(OpStreamStats); err != nil {
		return nil, 0, err
	}
	var b = c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.streams[name]; !ok {
		return nil, pb.CodeStreamDoesNotExist, nil
	} else {
		var out = make(pb.StreamStats, len(s.stats))
		for k, v := range s.stats {
			out[k] = v
		}
		return out, pb.CodeOK, nil
	}
}

// CreateSuperStream implements pb.Connection.
func (c *Conn) CreateSuperStream(_ context.Context, name string, partitions, keys []string, args map[string]string) (pb.ResponseCode, error) {
	if err := c.begin(OpCreateSuperStream); err != nil {
		return 0, err
	}
	var b = c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.supers[name]; ok {
		return pb.CodeStreamAlreadyExists, nil
	} else if len(partitions) == 0 || len(partitions) != len(keys) {
		return pb.CodePreconditionFailed, nil
	}
	for _, p := range partitions {
		if _, ok := b.streams[p]; ok {
			return pb.CodeStreamAlreadyExists, nil
		}
	}
	for _, p := range partitions {
		b.createLocked(p, args)
	}
	b.supers[name] = &superStream{
		partitions: append([]string(nil), partitions...),
		keys:       append([]string(nil), keys...),
	}
	return pb.CodeOK, nil
}

// DeleteSuperStream implements pb.Connection.
func (c *Conn) DeleteSuperStream(_ context.Context, name string) (pb.ResponseCode, error) {
	if err := c.begin(OpDeleteSuperStream); err != nil {
		return 0, err
	}
	var b = c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	var ss, ok = b.supers[name]
	if !ok {
		return pb.CodeStreamDoesNotExist, nil
	}
	for _, p := range ss.partitions {
		delete(b.streams, p)
	}
	delete(b.supers, name)
	return pb.CodeOK, nil
}

// QueryPartitions implements pb.Connection.
func (c *Conn) QueryPartitions(_ context.Context, name string) ([]string, pb.ResponseCode, error) {
	if err := c.begin(OpQueryPartitions); err != nil {
		return nil, 0, err
	}
	var b = c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ss, ok := b.supers[name]; !ok {
		return nil, pb.CodeStreamDoesNotExist, nil
	} else {
		return append([]string(nil), ss.partitions...), pb.CodeOK, nil
	}
}

// QueryRoute implements pb.Connection.
func (c *Conn) QueryRoute(_ context.Context, name, routingKey string) ([]string, pb.ResponseCode, error) {
	if err := c.begin(OpQueryRoute); err != nil {
		return nil, 0, err
	}
	var b = c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	var ss, ok = b.supers[name]
	if !ok {
		return nil, pb.CodeStreamDoesNotExist, nil
	}
	var out []string
	for i, k := range ss.keys {
		if k == routingKey {
			out = append(out, ss.partitions[i])
		}
	}
	return out, pb.CodeOK, nil
}

func (b *Broker) createLocked(name string, args map[string]string) pb.ResponseCode {
	if _, ok := b.streams[name]; ok {
		return pb.CodeStreamAlreadyExists
	}
	var cp = make(map[string]string, len(args))
	for k, v := range args {
		cp[k] = v
	}
	b.streams[name] = &stream{
		args:      cp,
		offsets:   make(map[string]uint64),
		sequences: make(map[string]uint64),
		stats:     pb.StreamStats{pb.StatFirstChunkID: -1, pb.StatCommittedChunkID: -1},
	}
	return pb.CodeOK
}

// leader is the Broker which the Conn's Endpoint advertises.
func (c *Conn) leader() pb.Broker {
	var u = c.params.Endpoint.URL()
	var port, _ = strconv.ParseUint(u.Port(), 10, 32)
	if port == 0 {
		port, _ = strconv.ParseUint(pb.DefaultPort, 10, 32)
	}
	return pb.Broker{Host: u.Hostname(), Port: uint32(port)}
}

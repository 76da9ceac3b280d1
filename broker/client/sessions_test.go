package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	pb "go.gazette.dev/streams/broker/protocol"
	"go.gazette.dev/streams/broker/teststub"
	"golang.org/x/sync/errgroup"
	gc "gopkg.in/check.v1"
)

type SessionsSuite struct{}

func (s *SessionsSuite) TestProducerConfigValidationCases(c *gc.C) {
	var cases = []struct {
		cfg    ProducerConfig
		expect string
	}{
		{ProducerConfig{Stream: "s1", MessagesBufferSize: 1}, ""}, // Success.
		{ProducerConfig{Stream: "s1", MessagesBufferSize: 100, Reference: "ref"}, ""},
		{ProducerConfig{MessagesBufferSize: 1}, `expected Stream`},
		{ProducerConfig{Stream: "s 1", MessagesBufferSize: 1}, `Stream: not a valid name \("s 1"\)`},
		{ProducerConfig{Stream: "s1", MessagesBufferSize: 0}, `invalid MessagesBufferSize \(0; expected > 0\)`},
		{ProducerConfig{Stream: "s1", MessagesBufferSize: -3}, `invalid MessagesBufferSize \(-3; expected > 0\)`},
		{ProducerConfig{Stream: "s1", MessagesBufferSize: 1, Reference: strings.Repeat("r", 257)},
			`Reference: invalid length \(257; expected 1 <= length <= 256\)`},
	}
	for _, tc := range cases {
		if tc.expect == "" {
			c.Check(tc.cfg.Validate(), gc.IsNil)
		} else {
			c.Check(tc.cfg.Validate(), gc.ErrorMatches, tc.expect)
		}
	}
}

func (s *SessionsSuite) TestConsumerConfigValidationCases(c *gc.C) {
	var cases = []struct {
		cfg    ConsumerConfig
		expect string
	}{
		{ConsumerConfig{Stream: "s1"}, ""}, // Success.
		{ConsumerConfig{Stream: "s1", Reference: "ref", SingleActiveConsumer: true}, ""},
		{ConsumerConfig{}, `expected Stream`},
		{ConsumerConfig{Stream: "s1", SingleActiveConsumer: true},
			`expected Reference \(required by SingleActiveConsumer\)`},
		{ConsumerConfig{Stream: "s1", Reference: "a\tb"}, `Reference: not a valid name \("a\\tb"\)`},
	}
	for _, tc := range cases {
		if tc.expect == "" {
			c.Check(tc.cfg.Validate(), gc.IsNil)
		} else {
			c.Check(tc.cfg.Validate(), gc.ErrorMatches, tc.expect)
		}
	}
}

func (s *SessionsSuite) TestValidationFailsBeforeAnyBrokerCall(c *gc.C) {
	var f = newSessionFactoriesFixture()
	var broker, env = buildSessionEnvironmentFixture(c, f)
	var ctx = context.Background()

	var _, err = env.CreateProducer(ctx, ProducerConfig{Stream: "s1"})
	var pe *ProducerError
	c.Assert(errors.As(err, &pe), gc.Equals, true)
	c.Check(pe.Stream, gc.Equals, "s1")
	c.Check(pe.Code, gc.Equals, pb.ResponseCode(0))
	c.Check(err, gc.ErrorMatches, `creating producer of stream "s1": invalid MessagesBufferSize \(0; expected > 0\)`)

	var ve *pb.ValidationError
	c.Check(errors.As(err, &ve), gc.Equals, true)

	_, err = env.CreateConsumer(ctx, ConsumerConfig{})
	c.Check(err, gc.ErrorMatches, `creating consumer of stream "": expected Stream`)
	c.Check(errors.As(err, &ve), gc.Equals, true)

	// Also true of a killed locator: it's not re-opened.
	env.Locator().(*teststub.Conn).Kill()
	_, err = env.CreateProducer(ctx, ProducerConfig{Stream: "", MessagesBufferSize: 10})
	c.Check(err, gc.ErrorMatches, `creating producer of stream "": expected Stream`)

	c.Check(broker.TotalCalls(), gc.Equals, 0)
	c.Check(broker.TotalOpens(), gc.Equals, 1)
	c.Check(f.calls(), gc.Equals, 0)
}

func (s *SessionsSuite) TestCreateProducer(c *gc.C) {
	var f = newSessionFactoriesFixture()
	var broker, env = buildSessionEnvironmentFixture(c, f)
	var ctx = context.Background()
	c.Assert(env.CreateStream(ctx, pb.StreamSpec{Name: "s1"}), gc.IsNil)

	var before = testutil.ToFloat64(sessionsCreatedTotal.WithLabelValues("producer", outcomeOK))

	// Case: the factory is passed the locator's Endpoint, the overridden
	// client name, the validated config, and the stream's StreamInfo.
	var cfg = ProducerConfig{Stream: "s1", ClientProvidedName: "my-producer", MessagesBufferSize: 10}
	var producer, err = env.CreateProducer(ctx, cfg)
	c.Assert(err, gc.IsNil)
	c.Check(producer, gc.Equals, Producer(f.producers[0]))

	var fp = f.producers[0]
	c.Check(fp.params.Endpoint, gc.Equals, epA)
	c.Check(fp.params.ClientName, gc.Equals, "my-producer")
	c.Check(fp.params.User, gc.Equals, "guest")
	c.Check(fp.cfg, gc.DeepEquals, cfg)
	c.Check(fp.info, gc.DeepEquals, pb.StreamInfo{
		Stream: "s1",
		Code:   pb.CodeOK,
		Leader: pb.Broker{Host: "a", Port: 5552},
	})
	c.Check(broker.Calls(teststub.OpQueryMetadata), gc.Equals, 1)

	// The override didn't mutate the Environment's own parameters.
	c.Check(env.Parameters().ClientName, gc.Equals, "env-name")

	// Case: an empty override keeps the Environment's client name.
	_, err = env.CreateProducer(ctx, ProducerConfig{Stream: "s1", MessagesBufferSize: 10})
	c.Assert(err, gc.IsNil)
	c.Check(f.producers[1].params.ClientName, gc.Equals, "env-name")

	// The observed StreamInfo was cached.
	var info, ok = env.CachedStreamInfo("s1")
	c.Check(ok, gc.Equals, true)
	c.Check(info.Leader.Host, gc.Equals, "a")

	c.Check(testutil.ToFloat64(sessionsCreatedTotal.WithLabelValues("producer", outcomeOK))-before, gc.Equals, 2.0)
}

func (s *SessionsSuite) TestCreateConsumer(c *gc.C) {
	var f = newSessionFactoriesFixture()
	var _, env = buildSessionEnvironmentFixture(c, f)
	var ctx = context.Background()
	c.Assert(env.CreateStream(ctx, pb.StreamSpec{Name: "s1"}), gc.IsNil)

	var cfg = ConsumerConfig{Stream: "s1", ClientProvidedName: "my-consumer", Reference: "r1", SingleActiveConsumer: true}
	var consumer, err = env.CreateConsumer(ctx, cfg)
	c.Assert(err, gc.IsNil)
	c.Check(consumer, gc.Equals, Consumer(f.consumers[0]))
	c.Check(f.consumers[0].params.ClientName, gc.Equals, "my-consumer")
	c.Check(f.consumers[0].cfg, gc.DeepEquals, cfg)
	c.Check(f.consumers[0].info.Code, gc.Equals, pb.CodeOK)
}

func (s *SessionsSuite) TestNonOKMetadataFailsCreation(c *gc.C) {
	var f = newSessionFactoriesFixture()
	var broker, env = buildSessionEnvironmentFixture(c, f)
	var ctx = context.Background()

	// Case: the stream doesn't exist.
	var _, err = env.CreateProducer(ctx, ProducerConfig{Stream: "missing", MessagesBufferSize: 10})
	var pe *ProducerError
	c.Assert(errors.As(err, &pe), gc.Equals, true)
	c.Check(pe.Code, gc.Equals, pb.CodeStreamDoesNotExist)
	c.Check(err, gc.ErrorMatches, `creating producer of stream "missing": STREAM_DOES_NOT_EXIST`)

	var code, ok = ResponseCodeOf(err)
	c.Check(code, gc.Equals, pb.CodeStreamDoesNotExist)
	c.Check(ok, gc.Equals, true)

	// Case: the stream isn't available.
	broker.QueryMetadataFunc = func(_ context.Context, streams []string) (map[string]pb.StreamInfo, error) {
		return map[string]pb.StreamInfo{
			streams[0]: {Stream: streams[0], Code: pb.CodeStreamNotAvailable},
		}, nil
	}
	_, err = env.CreateConsumer(ctx, ConsumerConfig{Stream: "s1"})
	c.Check(err, gc.ErrorMatches, `creating consumer of stream "s1": STREAM_NOT_AVAILABLE`)

	// Case: the broker omits the stream from its response.
	broker.QueryMetadataFunc = func(context.Context, []string) (map[string]pb.StreamInfo, error) {
		return map[string]pb.StreamInfo{}, nil
	}
	_, err = env.CreateConsumer(ctx, ConsumerConfig{Stream: "s1"})
	c.Check(err, gc.ErrorMatches, `creating consumer of stream "s1": STREAM_DOES_NOT_EXIST`)

	// Case: the metadata query itself fails.
	broker.QueryMetadataFunc = func(context.Context, []string) (map[string]pb.StreamInfo, error) {
		return nil, errors.New("whoops")
	}
	_, err = env.CreateProducer(ctx, ProducerConfig{Stream: "s1", MessagesBufferSize: 10})
	c.Check(err, gc.ErrorMatches, `creating producer of stream "s1": whoops`)
	_, ok = ResponseCodeOf(err)
	c.Check(ok, gc.Equals, false)

	c.Check(f.calls(), gc.Equals, 0)
}

func (s *SessionsSuite) TestFactoryFailuresAndAbsentFactories(c *gc.C) {
	var f = newSessionFactoriesFixture()
	var broker, env = buildSessionEnvironmentFixture(c, f)
	var ctx = context.Background()
	c.Assert(env.CreateStream(ctx, pb.StreamSpec{Name: "s1"}), gc.IsNil)

	// Case: a factory error is wrapped.
	f.err = errors.New("no route to leader")
	var _, err = env.CreateProducer(ctx, ProducerConfig{Stream: "s1", MessagesBufferSize: 10})
	c.Check(err, gc.ErrorMatches, `creating producer of stream "s1": no route to leader`)

	// The gate was released: a subsequent creation proceeds.
	f.err = nil
	_, err = env.CreateProducer(ctx, ProducerConfig{Stream: "s1", MessagesBufferSize: 10})
	c.Check(err, gc.IsNil)

	// Case: Environments without factories fail before any broker call.
	var calls = broker.TotalCalls()
	env.newProducer, env.newConsumer = nil, nil

	_, err = env.CreateProducer(ctx, ProducerConfig{Stream: "s1", MessagesBufferSize: 10})
	c.Check(errors.Is(err, ErrNoProducerFactory), gc.Equals, true)
	_, err = env.CreateConsumer(ctx, ConsumerConfig{Stream: "s1"})
	c.Check(errors.Is(err, ErrNoConsumerFactory), gc.Equals, true)
	c.Check(broker.TotalCalls(), gc.Equals, calls)
}

func (s *SessionsSuite) TestCreationReopensClosedLocator(c *gc.C) {
	var f = newSessionFactoriesFixture()
	var broker, env = buildSessionEnvironmentFixture(c, f)
	var ctx = context.Background()
	c.Assert(env.CreateStream(ctx, pb.StreamSpec{Name: "s1"}), gc.IsNil)

	env.Locator().(*teststub.Conn).Kill()

	var _, err = env.CreateConsumer(ctx, ConsumerConfig{Stream: "s1"})
	c.Check(err, gc.IsNil)
	c.Check(broker.Opens(epA), gc.Equals, 2)
	c.Check(f.consumers[0].params.Endpoint, gc.Equals, epA)
}

func (s *SessionsSuite) TestConcurrentCreationsAreSerialized(c *gc.C) {
	var f = newSessionFactoriesFixture()
	f.delay = time.Millisecond
	var broker, env = buildSessionEnvironmentFixture(c, f)
	var ctx = context.Background()
	c.Assert(env.CreateStream(ctx, pb.StreamSpec{Name: "s1"}), gc.IsNil)

	var first = env.Locator()
	first.(*teststub.Conn).Kill()

	var group errgroup.Group
	for i := 0; i != 16; i++ {
		var name = fmt.Sprintf("session-%d", i)

		group.Go(func() error {
			if i%2 == 0 {
				var _, err = env.CreateProducer(ctx, ProducerConfig{
					Stream: "s1", ClientProvidedName: name, MessagesBufferSize: DefaultMessagesBufferSize})
				return err
			}
			var _, err = env.CreateConsumer(ctx, ConsumerConfig{Stream: "s1", ClientProvidedName: name})
			return err
		})
	}
	c.Assert(group.Wait(), gc.IsNil)

	// The closed locator was re-opened just once, and factory invocations
	// never overlapped.
	c.Check(broker.Opens(epA), gc.Equals, 2)
	c.Check(env.Locator(), gc.Not(gc.Equals), first)
	c.Check(f.overlaps, gc.Equals, 0)
	c.Check(f.calls(), gc.Equals, 16)

	var sessions []fakeSession
	for _, p := range f.producers {
		c.Check(p.params.ClientName, gc.Equals, p.cfg.ClientProvidedName)
		sessions = append(sessions, p.fakeSession)
	}
	for _, p := range f.consumers {
		c.Check(p.params.ClientName, gc.Equals, p.cfg.ClientProvidedName)
		sessions = append(sessions, p.fakeSession)
	}
	for _, s := range sessions {
		c.Check(s.params.Endpoint, gc.Equals, env.Locator().Parameters().Endpoint)
	}
	c.Check(env.Parameters().ClientName, gc.Equals, "env-name")
}

type fakeSession struct {
	params pb.ConnectionParameters
	info   pb.StreamInfo
}

func (*fakeSession) Close() error { return nil }

type fakeProducer struct {
	fakeSession
	cfg ProducerConfig
}

type fakeConsumer struct {
	fakeSession
	cfg ConsumerConfig
}

// sessionFactoriesFixture records sessions built by its factories, and
// counts factory invocations which overlapped another.
type sessionFactoriesFixture struct {
	mu        sync.Mutex
	active    int
	overlaps  int
	delay     time.Duration
	err       error
	producers []*fakeProducer
	consumers []*fakeConsumer
}

func newSessionFactoriesFixture() *sessionFactoriesFixture { return new(sessionFactoriesFixture) }

func (f *sessionFactoriesFixture) enter() func() {
	f.mu.Lock()
	if f.active++; f.active != 1 {
		f.overlaps++
	}
	var delay = f.delay
	f.mu.Unlock()

	time.Sleep(delay)

	return func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}
}

func (f *sessionFactoriesFixture) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.producers) + len(f.consumers)
}

func (f *sessionFactoriesFixture) newProducer(_ context.Context, params pb.ConnectionParameters, cfg ProducerConfig, info pb.StreamInfo) (Producer, error) {
	defer f.enter()()

	if f.err != nil {
		return nil, f.err
	}
	var p = &fakeProducer{fakeSession{params, info}, cfg}
	f.mu.Lock()
	f.producers = append(f.producers, p)
	f.mu.Unlock()
	return p, nil
}

func (f *sessionFactoriesFixture) newConsumer(_ context.Context, params pb.ConnectionParameters, cfg ConsumerConfig, info pb.StreamInfo) (Consumer, error) {
	defer f.enter()()

	if f.err != nil {
		return nil, f.err
	}
	var p = &fakeConsumer{fakeSession{params, info}, cfg}
	f.mu.Lock()
	f.consumers = append(f.consumers, p)
	f.mu.Unlock()
	return p, nil
}

func buildSessionEnvironmentFixture(c *gc.C, f *sessionFactoriesFixture) (*teststub.Broker, *Environment) {
	var broker = teststub.NewBroker()
	var args = buildArgsFixture(broker, epA)
	args.Parameters.ClientName = "env-name"
	args.NewProducer = f.newProducer
	args.NewConsumer = f.newConsumer
	args.Cache = NewStreamInfoCache(16, time.Hour)

	var env, err = NewEnvironment(context.Background(), args)
	c.Assert(err, gc.IsNil)
	return broker, env
}

var _ = gc.Suite(&SessionsSuite{})

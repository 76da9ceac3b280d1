package client

import (
	"context"
	"errors"
	"fmt"

	pb "go.gazette.dev/streams/broker/protocol"
	"go.gazette.dev/streams/broker/teststub"
	gc "gopkg.in/check.v1"
)

type QueriesSuite struct{}

func (s *QueriesSuite) TestQueryOffset(c *gc.C) {
	var broker, env = buildEnvironmentFixture(c, epB)
	var ctx = context.Background()
	c.Assert(env.CreateStream(ctx, pb.StreamSpec{Name: "s1", LeaderLocator: pb.LeaderLocatorRandom}), gc.IsNil)

	// Case: no offset was stored.
	var _, err = env.QueryOffset(ctx, "r1", "s1")
	c.Check(err, gc.ErrorMatches, `querying offset of reference "r1" on stream "s1": OFFSET_NOT_FOUND`)

	var qe *QueryError
	c.Assert(errors.As(err, &qe), gc.Equals, true)
	c.Check(qe.Reference, gc.Equals, "r1")
	c.Check(qe.Stream, gc.Equals, "s1")
	c.Check(qe.Code, gc.Equals, pb.CodeOffsetNotFound)

	// Case: the stream doesn't exist.
	_, err = env.QueryOffset(ctx, "r1", "s2")
	c.Check(err, gc.ErrorMatches, `querying offset of reference "r1" on stream "s2": STREAM_DOES_NOT_EXIST`)

	// Case: success.
	broker.StoreOffset("r1", "s1", 1234)
	offset, err := env.QueryOffset(ctx, "r1", "s1")
	c.Check(err, gc.IsNil)
	c.Check(offset, gc.Equals, uint64(1234))
}

func (s *QueriesSuite) TestQuerySequence(c *gc.C) {
	var broker, env = buildEnvironmentFixture(c, epA)
	var ctx = context.Background()
	c.Assert(env.CreateStream(ctx, pb.StreamSpec{Name: "s1"}), gc.IsNil)

	// Case: a reference which never published has sequence zero.
	var seq, err = env.QuerySequence(ctx, "p1", "s1")
	c.Check(err, gc.IsNil)
	c.Check(seq, gc.Equals, uint64(0))

	broker.StoreSequence("p1", "s1", 99)
	seq, err = env.QuerySequence(ctx, "p1", "s1")
	c.Check(err, gc.IsNil)
	c.Check(seq, gc.Equals, uint64(99))

	// Case: non-OK codes fail.
	broker.QuerySequenceFunc = func(context.Context, string, string) (uint64, pb.ResponseCode, error) {
		return 0, pb.CodePublisherDoesNotExist, nil
	}
	_, err = env.QuerySequence(ctx, "p1", "s1")
	c.Check(err, gc.ErrorMatches, `querying sequence of reference "p1" on stream "s1": PUBLISHER_DOES_NOT_EXIST`)

	var code, _ = ResponseCodeOf(err)
	c.Check(code, gc.Equals, pb.CodePublisherDoesNotExist)
}

func (s *QueriesSuite) TestValidationFailsBeforeAnyBrokerCall(c *gc.C) {
	var broker, env = buildEnvironmentFixture(c, epA)
	var ctx = context.Background()

	for _, tc := range []struct {
		ref, stream string
		expect      string
	}{
		{"", "s1", `querying %s of reference "" on stream "s1": expected Reference`},
		{"r1", "", `querying %s of reference "r1" on stream "": expected Stream`},
	} {
		var _, err = env.QueryOffset(ctx, tc.ref, tc.stream)
		c.Check(err, gc.ErrorMatches, fmtExpect(tc.expect, "offset"))

		var ve *pb.ValidationError
		c.Check(errors.As(err, &ve), gc.Equals, true)

		_, err = env.QuerySequence(ctx, tc.ref, tc.stream)
		c.Check(err, gc.ErrorMatches, fmtExpect(tc.expect, "sequence"))
	}
	c.Check(broker.TotalCalls(), gc.Equals, 0)
}

// QueryOffset uses the locator without checking its liveness, while
// QuerySequence re-opens a closed locator.
func (s *QueriesSuite) TestOffsetAndSequenceLivenessAsymmetry(c *gc.C) {
	var broker, env = buildEnvironmentFixture(c, epA)
	var ctx = context.Background()
	c.Assert(env.CreateStream(ctx, pb.StreamSpec{Name: "s1"}), gc.IsNil)
	broker.StoreOffset("r1", "s1", 10)

	env.Locator().(*teststub.Conn).Kill()

	var _, err = env.QueryOffset(ctx, "r1", "s1")
	c.Check(errors.Is(err, teststub.ErrConnectionClosed), gc.Equals, true)
	c.Check(err, gc.ErrorMatches, `querying offset of reference "r1" on stream "s1": connection is closed`)
	c.Check(broker.TotalOpens(), gc.Equals, 1)

	_, err = env.QuerySequence(ctx, "r1", "s1")
	c.Check(err, gc.IsNil)
	c.Check(broker.TotalOpens(), gc.Equals, 2)

	// The re-opened locator now serves QueryOffset.
	offset, err := env.QueryOffset(ctx, "r1", "s1")
	c.Check(err, gc.IsNil)
	c.Check(offset, gc.Equals, uint64(10))
}

func fmtExpect(format, op string) string {
	return fmt.Sprintf(format, op)
}

var _ = gc.Suite(&QueriesSuite{})

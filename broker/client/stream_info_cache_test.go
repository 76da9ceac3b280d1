package client

import (
	"time"

	pb "go.gazette.dev/streams/broker/protocol"
	gc "gopkg.in/check.v1"
)

type StreamInfoCacheSuite struct{}

func (s *StreamInfoCacheSuite) TestCachingCases(c *gc.C) {
	defer func(f func() time.Time) { timeNow = f }(timeNow)

	var fixedtime int64 = 1000
	timeNow = func() time.Time { return time.Unix(fixedtime, 0) }

	var sc = NewStreamInfoCache(3, time.Minute)

	for _, s := range []string{"A", "B", "C", "D"} {
		sc.Update(buildStreamInfoFixture(s))
	}
	c.Check(sc.cache.Len(), gc.Equals, 3)

	// Case: Cached StreamInfo is returned.
	var info, ok = sc.Get("D")
	c.Check(ok, gc.Equals, true)
	c.Check(info, gc.DeepEquals, buildStreamInfoFixture("D"))

	// Case: StreamInfo which has fallen out of cache is not.
	_, ok = sc.Get("A")
	c.Check(ok, gc.Equals, false)

	// Case: Returned StreamInfo doesn't alias the cached instance.
	info, _ = sc.Get("D")
	info.Replicas[0].Host = "mutated"
	info, _ = sc.Get("D")
	c.Check(info.Replicas[0].Host, gc.Equals, "D-replica")

	// Case: Non-OK StreamInfo invalidates the cache.
	sc.Update(pb.StreamInfo{Stream: "C", Code: pb.CodeStreamNotAvailable})
	_, ok = sc.Get("C")
	c.Check(ok, gc.Equals, false)

	// Case: So does an explicit invalidation.
	sc.Update(buildStreamInfoFixture("C"))
	sc.Invalidate("C")
	_, ok = sc.Get("C")
	c.Check(ok, gc.Equals, false)

	// Case: TTLs are enforced.
	fixedtime += 31
	sc.Update(buildStreamInfoFixture("B"))

	// Precondition: both B and D are cached.
	_, ok = sc.Get("B")
	c.Check(ok, gc.Equals, true)
	_, ok = sc.Get("D")
	c.Check(ok, gc.Equals, true)

	fixedtime += 30

	// TTL for D has elapsed, but not for B.
	_, ok = sc.Get("B")
	c.Check(ok, gc.Equals, true)
	_, ok = sc.Get("D")
	c.Check(ok, gc.Equals, false)
}

func (s *StreamInfoCacheSuite) TestNilCacheIsANoop(c *gc.C) {
	var sc *StreamInfoCache

	sc.Update(buildStreamInfoFixture("A"))
	sc.Invalidate("A")
	var _, ok = sc.Get("A")
	c.Check(ok, gc.Equals, false)
}

func (s *StreamInfoCacheSuite) TestPanicsOnInvalidSize(c *gc.C) {
	c.Check(func() { NewStreamInfoCache(0, time.Minute) }, gc.PanicMatches, `must provide a positive size`)
}

func buildStreamInfoFixture(name string) pb.StreamInfo {
	return pb.StreamInfo{
		Stream:   name,
		Code:     pb.CodeOK,
		Leader:   pb.Broker{Host: name + "-leader", Port: 5552},
		Replicas: []pb.Broker{{Host: name + "-replica", Port: 5552}},
	}
}

var _ = gc.Suite(&StreamInfoCacheSuite{})

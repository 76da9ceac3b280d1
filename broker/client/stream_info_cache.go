package client

import (
	"time"

	"github.com/hashicorp/golang-lru"
	pb "go.gazette.dev/streams/broker/protocol"
)

// StreamInfoCache caches StreamInfo observed by metadata queries of an
// Environment. It's informational: an Environment always queries brokers
// for current metadata before creating a producer or consumer, and never
// consults the cache in its place. Applications may use it to inspect the
// last known leader and replicas of a stream without a broker round-trip.
//
// A nil *StreamInfoCache is valid, and caches nothing.
type StreamInfoCache struct {
	cache *lru.Cache
	ttl   time.Duration
}

// NewStreamInfoCache returns a StreamInfoCache of the given size (which must
// be > 0) and caching Duration.
func NewStreamInfoCache(size int, ttl time.Duration) *StreamInfoCache {
	var cache, err = lru.New(size)
	if err != nil {
		panic(err.Error()) // Only errors on size <= 0.
	}
	return &StreamInfoCache{
		cache: cache,
		ttl:   ttl,
	}
}

// Update caches the StreamInfo if its Code is OK, or otherwise invalidates
// any cached StreamInfo of its Stream.
func (sc *StreamInfoCache) Update(info pb.StreamInfo) {
	if sc == nil {
		return
	} else if info.Code != pb.CodeOK {
		sc.cache.Remove(info.Stream)
	} else {
		sc.cache.Add(info.Stream, cachedStreamInfo{
			info: info.Copy(),
			at:   timeNow(),
		})
	}
}

// Invalidate removes any cached StreamInfo of |stream|.
func (sc *StreamInfoCache) Invalidate(stream string) {
	if sc != nil {
		sc.cache.Remove(stream)
	}
}

// Get returns the cached StreamInfo of |stream|, if present and not expired.
func (sc *StreamInfoCache) Get(stream string) (pb.StreamInfo, bool) {
	if sc == nil {
		return pb.StreamInfo{}, false
	}
	if v, ok := sc.cache.Get(stream); ok {
		// If the TTL has elapsed, treat as a cache miss and remove.
		if ci := v.(cachedStreamInfo); ci.at.Add(sc.ttl).Before(timeNow()) {
			sc.cache.Remove(stream)
		} else {
			return ci.info.Copy(), true
		}
	}
	return pb.StreamInfo{}, false
}

type cachedStreamInfo struct {
	info pb.StreamInfo
	at   time.Time
}

var timeNow = time.Now

package resolver

import (
	"sync"
	"time"
)

// DefaultTTL is how long a resolved result is reused for the same
// (url, channelNameHint) pair before Resolve hits the source again.
// Grounded on internal/indexer/fetch/condget.go's cache-the-upstream-result
// idea (there: ETag/Last-Modified; here: the whole resolved tuple, since a
// resolver result isn't representable as a conditional-GET revalidation).
const DefaultTTL = 30 * time.Second

type cacheKey struct {
	url             string
	channelNameHint string
}

type cacheEntry struct {
	result  Result
	err     error
	expires time.Time
}

// resultCache is a process-wide TTL cache plus single-flight dedup so two
// concurrent Resolve calls for the same key only hit the upstream once.
// The single-flight shape mirrors internal/materializer/cache.go's
// inFlight-channel-per-key pattern.
type resultCache struct {
	ttl time.Duration

	mu       sync.Mutex
	entries  map[cacheKey]cacheEntry
	inFlight map[cacheKey]chan struct{}
}

func newResultCache(ttl time.Duration) *resultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &resultCache{
		ttl:      ttl,
		entries:  make(map[cacheKey]cacheEntry),
		inFlight: make(map[cacheKey]chan struct{}),
	}
}

// getOrResolve returns a cached (result, err) if fresh, else calls fn once
// per key even under concurrent callers, caching whatever it returns.
func (c *resultCache) getOrResolve(key cacheKey, fn func() (Result, error)) (Result, error) {
	for {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && time.Now().Before(e.expires) {
			c.mu.Unlock()
			return e.result, e.err
		}
		if wait, ok := c.inFlight[key]; ok {
			c.mu.Unlock()
			<-wait
			continue
		}
		done := make(chan struct{})
		c.inFlight[key] = done
		c.mu.Unlock()

		result, err := fn()

		c.mu.Lock()
		c.entries[key] = cacheEntry{result: result, err: err, expires: time.Now().Add(c.ttl)}
		delete(c.inFlight, key)
		close(done)
		c.mu.Unlock()
		return result, err
	}
}

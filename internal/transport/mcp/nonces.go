package mcp

import (
	"errors"
	"sync"
	"time"
)

var (
	errNonceReused = errors.New("nonce already used")
	errNonceFull   = errors.New("too many outstanding nonces")
)

type nonceKey struct {
	client string
	nonce  string
}

// nonceCache remembers every (client, nonce) pair until it can no longer pass
// the timestamp window. Expired pairs are swept at most once per sweepEvery.
type nonceCache struct {
	mu         sync.Mutex
	expires    map[nonceKey]time.Time
	ttl        time.Duration
	sweepEvery time.Duration
	nextSweep  time.Time
	limit      int
}

func newNonceCache(ttl time.Duration, limit int) *nonceCache {
	if ttl <= 0 {
		ttl = 2 * maxClockSkew
	}
	if limit <= 0 {
		limit = 1 << 16
	}
	return &nonceCache{
		expires:    make(map[nonceKey]time.Time),
		ttl:        ttl,
		sweepEvery: ttl / 4,
		limit:      limit,
	}
}

// claim records the pair, failing if it is still live. A full cache refuses
// new pairs rather than forgetting live ones.
func (c *nonceCache) claim(client, nonce string, now time.Time) error {
	k := nonceKey{client: client, nonce: nonce}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !now.Before(c.nextSweep) || len(c.expires) >= c.limit {
		c.sweepLocked(now)
	}
	if exp, ok := c.expires[k]; ok && now.Before(exp) {
		return errNonceReused
	}
	if len(c.expires) >= c.limit {
		return errNonceFull
	}
	c.expires[k] = now.Add(c.ttl)
	return nil
}

func (c *nonceCache) sweepLocked(now time.Time) {
	for k, exp := range c.expires {
		if !now.Before(exp) {
			delete(c.expires, k)
		}
	}
	c.nextSweep = now.Add(c.sweepEvery)
}

func (c *nonceCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.expires)
}

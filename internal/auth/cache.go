// Package auth implements the token cache: a bounded concurrent mapping
// from opaque bearer token to verified Principal, with TTL and LRU
// trimming, fronting an external identity provider on miss.
package auth

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/R3E-Network/worldserver/internal/apperr"
	"github.com/R3E-Network/worldserver/internal/logging"
	"github.com/R3E-Network/worldserver/internal/metrics"
)

// DefaultMaxCacheSize is MAX_CACHE_SIZE from the component design.
const DefaultMaxCacheSize = 10_000

// shardCount splits the token map across independent locks so no reader
// is blocked by a writer on a different key (see the core's concurrency
// model: "no global lock, shard-striped or lock-free").
const shardCount = 32

// TokenCache is the bounded concurrent token -> Principal mapping.
type TokenCache struct {
	shards   [shardCount]*shard
	maxSize  int
	verifier IdentityVerifier
	log      *logging.Logger
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*Principal
	order   *simplelru.LRU[string, struct{}]
}

func newShard(capacity int) *shard {
	if capacity < 1 {
		capacity = 1
	}
	s := &shard{entries: make(map[string]*Principal, capacity)}
	// The eviction callback keeps entries and order in lock-step; it only
	// ever fires while s.mu is already held by the caller of Add/Remove.
	lru, err := simplelru.NewLRU[string, struct{}](capacity, func(key string, _ struct{}) {
		delete(s.entries, key)
	})
	if err != nil {
		// capacity is always >= 1 here, so NewLRU cannot fail.
		panic(err)
	}
	s.order = lru
	return s
}

// NewTokenCache builds a token cache bounded at maxSize entries (spread
// evenly across shards) verifying misses against verifier.
func NewTokenCache(maxSize int, verifier IdentityVerifier, log *logging.Logger) *TokenCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxCacheSize
	}
	perShard := (maxSize + shardCount - 1) / shardCount

	c := &TokenCache{
		maxSize:  maxSize,
		verifier: verifier,
		log:      log,
	}
	for i := range c.shards {
		c.shards[i] = newShard(perShard)
	}
	return c
}

func (c *TokenCache) shardFor(token string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return c.shards[h.Sum32()%shardCount]
}

// Lookup returns the cached Principal iff present and unexpired. An
// expired hit is removed and Lookup returns false, per the component
// design.
func (c *TokenCache) Lookup(token string) (*Principal, bool) {
	s := c.shardFor(token)

	s.mu.RLock()
	p, ok := s.entries[token]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := time.Now()
	if !p.IsExpired(now) {
		return p, true
	}

	s.mu.Lock()
	s.order.Remove(token)
	delete(s.entries, token)
	s.mu.Unlock()
	return nil, false
}

// Verify looks up the cache first (fast path); on miss it calls the
// external identity endpoint (slow path) and caches a successful result.
func (c *TokenCache) Verify(ctx context.Context, token string) (*Principal, error) {
	if p, ok := c.Lookup(token); ok {
		return p, nil
	}

	p, err := c.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if p.IsExpired(time.Now()) {
		return nil, apperr.ErrAuthExpired
	}

	c.insert(token, p)
	return p, nil
}

func (c *TokenCache) insert(token string, p *Principal) {
	// At capacity, evict the oldest ceil(maxSize/10) entries first.
	if c.Size() >= c.maxSize {
		c.evictOldest((c.maxSize + 9) / 10)
	}

	s := c.shardFor(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = p
	s.order.Add(token, struct{}{})
}

// Size returns the current number of cached tokens across all shards.
func (c *TokenCache) Size() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// RunMaintenance performs one cooperative maintenance pass: remove
// expired entries, then evict the globally-oldest entries if the cache
// still exceeds maxSize. It is intended to be invoked on a 60s schedule
// (see the cron wiring in internal/gameserver's Application.Start).
func (c *TokenCache) RunMaintenance() {
	now := time.Now()
	for _, s := range c.shards {
		s.cleanupExpired(now)
	}

	excess := c.Size() - c.maxSize
	if excess > 0 {
		c.evictOldest(excess)
	}
	metrics.SetTokenCacheSize(c.Size())
}

func (s *shard) cleanupExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, p := range s.entries {
		if p.IsExpired(now) {
			s.order.Remove(token)
			delete(s.entries, token)
		}
	}
}

// evictOldest implements the component design's eviction algorithm:
// snapshot all (token, verified_at) pairs, sort ascending by verified_at,
// remove the first N. Concurrent inserts during eviction are tolerated;
// the invariant is eventual convergence to size <= maxSize.
func (c *TokenCache) evictOldest(count int) {
	type candidate struct {
		token      string
		verifiedAt time.Time
		shardIdx   int
	}
	var all []candidate
	for i, s := range c.shards {
		s.mu.RLock()
		for token, p := range s.entries {
			all = append(all, candidate{token: token, verifiedAt: p.VerifiedAt, shardIdx: i})
		}
		s.mu.RUnlock()
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].verifiedAt.Before(all[j].verifiedAt)
	})
	if count > len(all) {
		count = len(all)
	}

	for _, cand := range all[:count] {
		s := c.shards[cand.shardIdx]
		s.mu.Lock()
		s.order.Remove(cand.token)
		delete(s.entries, cand.token)
		s.mu.Unlock()
	}

	metrics.IncTokenCacheEvictions(count)
	if c.log != nil {
		c.log.WithField("evicted", count).Info("token cache evicted oldest entries")
	}
}

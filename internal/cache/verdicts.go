// Package cache provides a Redis-backed cache of moderation verdicts.
// Checks are deterministic in intent (temperature 0 against a fixed rule
// set), so an identical (rules, message) pair can reuse a recent verdict
// instead of spending another completion call.
//
// The cache is strictly best-effort: on any Redis error both Get and Set
// fail open so that a cache outage never blocks or fails a check.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flagwise/moderation/internal/moderation"
)

const (
	// VerdictPrefix is the Redis key prefix for cached verdicts.
	VerdictPrefix = "verdict:"

	// DefaultTTL bounds how long a verdict is reused. Rule edits change the
	// key, so the TTL only limits staleness of the model's judgment itself.
	DefaultTTL = 5 * time.Minute
)

// Cache stores verdicts in Redis with a fixed TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Cache using the given Redis client. A non-positive ttl
// falls back to DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Key derives the cache key for a (rules, message) pair. The rule set is
// hashed in order, so any rule edit — including reordering — produces a
// different key. Rules and message are separated by NUL bytes so that
// boundary-shifted inputs cannot collide.
func Key(rules []string, message string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(rules, "\x00")))
	h.Write([]byte{0})
	h.Write([]byte(message))
	return VerdictPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached verdict for key, if any. The second return value
// reports whether a usable entry was found; misses and Redis errors both
// report false.
func (c *Cache) Get(ctx context.Context, key string) (moderation.Verdict, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return moderation.Verdict{}, false
	}
	if err != nil {
		log.Printf("[cache] redis GET error key=%s: %v (treating as miss)", key, err)
		return moderation.Verdict{}, false
	}

	var v moderation.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		log.Printf("[cache] corrupt entry key=%s: %v (treating as miss)", key, err)
		return moderation.Verdict{}, false
	}
	return v, true
}

// Set stores a verdict under key with the configured TTL. Failures are
// logged and swallowed.
func (c *Cache) Set(ctx context.Context, key string, v moderation.Verdict) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[cache] marshal verdict: %v", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("[cache] redis SET error key=%s: %v", key, err)
	}
}

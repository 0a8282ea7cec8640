package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgecomet/ubx/internal/common/redis"
)

// removeparamGuardTTL bounds how long a sanitized (tab, frame, URL) triple
// is remembered. Longer than any plausible redirect chain's round trip,
// short enough that a legitimately re-visited URL isn't permanently
// exempted from removeparam.
const removeparamGuardTTL = 5 * time.Second

// localLoopGuard is an in-process RemoveparamGuard: a TTL map guarded by a
// mutex, with lazy expiry on access. Used when no shared Redis instance is
// configured, or as the single-process default.
type localLoopGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newLocalLoopGuard() *localLoopGuard {
	return &localLoopGuard{entries: make(map[string]time.Time)}
}

// CheckAndMark implements matcher.RemoveparamGuard.
func (g *localLoopGuard) CheckAndMark(tabID, frameID int64, url string) bool {
	key := loopGuardKey(tabID, frameID, url)
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if exp, ok := g.entries[key]; ok {
		if now.Before(exp) {
			return true
		}
		delete(g.entries, key)
	}

	g.gc(now)
	g.entries[key] = now.Add(removeparamGuardTTL)
	return false
}

// gc drops expired entries opportunistically; called under g.mu.
func (g *localLoopGuard) gc(now time.Time) {
	for k, exp := range g.entries {
		if now.After(exp) {
			delete(g.entries, k)
		}
	}
}

func loopGuardKey(tabID, frameID int64, url string) string {
	return fmt.Sprintf("%d:%d:%s", tabID, frameID, url)
}

// redisLoopGuard backs RemoveparamGuard with a shared Redis instance via
// SetNX, so the guard is coherent across every engine instance pointed at
// the same snapshot (multiple matcher processes behind the same host).
type redisLoopGuard struct {
	client *redis.Client
	keys   *redis.KeyGenerator
	local  *localLoopGuard // fallback when Redis is unreachable
}

func newRedisLoopGuard(client *redis.Client) *redisLoopGuard {
	return &redisLoopGuard{client: client, keys: redis.NewKeyGenerator(), local: newLocalLoopGuard()}
}

// CheckAndMark implements matcher.RemoveparamGuard. A Redis error fails
// open to the local guard rather than either crashing or silently
// disabling loop protection.
func (g *redisLoopGuard) CheckAndMark(tabID, frameID int64, url string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	key := g.keys.RemoveparamGuardKey(tabID, frameID, url)
	set, err := g.client.SetNX(ctx, key, "1", removeparamGuardTTL)
	if err != nil {
		return g.local.CheckAndMark(tabID, frameID, url)
	}
	return !set
}

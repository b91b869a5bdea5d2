package repository

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "github.com/redis/go-redis/v9"
)

// SnapshotCache keeps short-lived copies of course capacity snapshots in
// Redis so that the read-heavy diagnostics endpoints do not hammer the
// database. Cached values are never used to make admission decisions;
// the ledger's guarded writes remain the only decision point. A nil
// client disables the cache and every lookup misses.
type SnapshotCache struct {
    client *redis.Client
    prefix string
    ttl    time.Duration
}

// NewSnapshotCache returns a cache over the given Redis client. The
// client may be nil when Redis is unavailable; callers then fall through
// to the ledger on every read.
func NewSnapshotCache(client *redis.Client, prefix string, ttl time.Duration) *SnapshotCache {
    if prefix == "" {
        prefix = "course:snapshot"
    }
    if ttl <= 0 {
        ttl = 5 * time.Second
    }
    return &SnapshotCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *SnapshotCache) key(courseID uint64) string {
    return fmt.Sprintf("%s:%d", c.prefix, courseID)
}

// Get returns the cached snapshot and true on a hit. Redis errors are
// treated as misses so a flaky cache degrades to plain DB reads.
func (c *SnapshotCache) Get(ctx context.Context, courseID uint64) (CourseCount, bool) {
    if c == nil || c.client == nil {
        return CourseCount{}, false
    }
    raw, err := c.client.Get(ctx, c.key(courseID)).Bytes()
    if err != nil {
        return CourseCount{}, false
    }
    var cc CourseCount
    if err := json.Unmarshal(raw, &cc); err != nil {
        return CourseCount{}, false
    }
    return cc, true
}

// Put stores a snapshot under the cache TTL. Failures are ignored; the
// cache is best effort.
func (c *SnapshotCache) Put(ctx context.Context, courseID uint64, cc CourseCount) {
    if c == nil || c.client == nil {
        return
    }
    raw, err := json.Marshal(cc)
    if err != nil {
        return
    }
    _ = c.client.Set(ctx, c.key(courseID), raw, c.ttl).Err()
}

// Invalidate drops the cached snapshot, used after capacity updates so
// registrars immediately see the new bound.
func (c *SnapshotCache) Invalidate(ctx context.Context, courseID uint64) {
    if c == nil || c.client == nil {
        return
    }
    _ = c.client.Del(ctx, c.key(courseID)).Err()
}

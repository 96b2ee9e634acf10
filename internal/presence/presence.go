// Package presence keeps a best-effort record of which sessions recently
// touched a room. It is diagnostic only; participant rows stay the source
// of truth for membership.
package presence

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker records and counts recent connections per room.
type Tracker interface {
	Touch(ctx context.Context, roomID, sessionID string) error
	Forget(ctx context.Context, roomID, sessionID string) error
	Count(ctx context.Context, roomID string) (int, error)
}

// RedisTracker keeps one sorted set per room scored by last-seen millis.
type RedisTracker struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewRedisTracker(rdb *redis.Client, ttl time.Duration) *RedisTracker {
	return &RedisTracker{rdb: rdb, ttl: ttl, now: time.Now}
}

func keyFor(roomID string) string { return "battle:presence:" + roomID }

func (t *RedisTracker) cutoff() string {
	return "(" + strconv.FormatInt(t.now().Add(-t.ttl).UnixMilli(), 10)
}

func (t *RedisTracker) Touch(ctx context.Context, roomID, sessionID string) error {
	key := keyFor(roomID)
	pipe := t.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(t.now().UnixMilli()), Member: sessionID})
	pipe.ZRemRangeByScore(ctx, key, "-inf", t.cutoff())
	pipe.Expire(ctx, key, t.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (t *RedisTracker) Forget(ctx context.Context, roomID, sessionID string) error {
	return t.rdb.ZRem(ctx, keyFor(roomID), sessionID).Err()
}

func (t *RedisTracker) Count(ctx context.Context, roomID string) (int, error) {
	key := keyFor(roomID)
	if err := t.rdb.ZRemRangeByScore(ctx, key, "-inf", t.cutoff()).Err(); err != nil {
		return 0, err
	}
	n, err := t.rdb.ZCard(ctx, key).Result()
	return int(n), err
}

// MemoryTracker is the single-instance fallback when Redis is not
// configured.
type MemoryTracker struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	rooms map[string]map[string]time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{ttl: ttl, now: time.Now, rooms: make(map[string]map[string]time.Time)}
}

func (t *MemoryTracker) Touch(_ context.Context, roomID, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rooms[roomID] == nil {
		t.rooms[roomID] = make(map[string]time.Time)
	}
	t.rooms[roomID][sessionID] = t.now()
	t.evict(roomID)
	return nil
}

func (t *MemoryTracker) Forget(_ context.Context, roomID, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms[roomID], sessionID)
	if len(t.rooms[roomID]) == 0 {
		delete(t.rooms, roomID)
	}
	return nil
}

func (t *MemoryTracker) Count(_ context.Context, roomID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evict(roomID)
	return len(t.rooms[roomID]), nil
}

// evict drops stale entries. Callers hold mu.
func (t *MemoryTracker) evict(roomID string) {
	cutoff := t.now().Add(-t.ttl)
	for id, seen := range t.rooms[roomID] {
		if seen.Before(cutoff) {
			delete(t.rooms[roomID], id)
		}
	}
	if len(t.rooms[roomID]) == 0 {
		delete(t.rooms, roomID)
	}
}

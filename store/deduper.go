package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/BatmanBruc/any2any-bot/types"
)

// Telegram stops redelivering an update long before this.
const DefaultDedupeTTL = 24 * time.Hour

type RedisDeduper struct {
	redis *RedisClient
	ttl   time.Duration
}

var _ types.Deduper = (*RedisDeduper)(nil)

func NewRedisDeduper(redisClient *RedisClient, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{redis: redisClient, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, updateID int64) (bool, error) {
	stored, err := d.redis.SetIfAbsent(ctx, d.redis.generateKey("update", strconv.FormatInt(updateID, 10)), d.ttl)
	if err != nil {
		return false, err
	}
	return !stored, nil
}

// MemoryDeduper is the single-process fallback when Redis is not configured.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[int64]time.Time
	now  func() time.Time
	// next prune
	pruneAt time.Time
}

var _ types.Deduper = (*MemoryDeduper)(nil)

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryDeduper{ttl: ttl, seen: make(map[int64]time.Time), now: time.Now}
}

func (d *MemoryDeduper) Seen(_ context.Context, updateID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.After(d.pruneAt) {
		for id, expires := range d.seen {
			if now.After(expires) {
				delete(d.seen, id)
			}
		}
		d.pruneAt = now.Add(d.ttl)
	}

	if expires, ok := d.seen[updateID]; ok && !now.After(expires) {
		return true, nil
	}
	d.seen[updateID] = now.Add(d.ttl)
	return false, nil
}

func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

/**
 * @description
 * Webhook de-duplication. Providers deliver notifications at-least-once, so an
 * intermediate (non-terminal) event can legitimately arrive twice; the "already
 * terminal" guard alone is not enough. Events are keyed by
 * (transferId, leg, normalized status) and marked seen only after the resulting
 * state change has been persisted, so a failed apply stays retryable.
 *
 * Two implementations: a Redis-backed deduper with a TTL per key for deployments
 * with more than one orchestrator instance, and an in-memory fallback map with
 * periodic cleanup for single-instance and test use.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stablepath/remit-orchestrator/internal/domain"
)

// WebhookDeduper tracks which webhook events have already been applied.
type WebhookDeduper interface {
	IsDuplicate(ctx context.Context, key string) bool
	MarkSeen(ctx context.Context, key string)
}

func webhookDedupKey(transferID uuid.UUID, leg domain.Leg, status string) string {
	return fmt.Sprintf("%s:%s:%s", transferID, leg, status)
}

// memoryDeduper is the in-process fallback.
type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

func newMemoryDeduper(ttl time.Duration) *memoryDeduper {
	return &memoryDeduper{seen: make(map[string]time.Time), ttl: ttl}
}

func (d *memoryDeduper) IsDuplicate(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleanupLocked()
	seenAt, ok := d.seen[key]
	return ok && time.Since(seenAt) < d.ttl
}

func (d *memoryDeduper) MarkSeen(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[key] = time.Now()
}

// cleanupLocked drops expired entries so the map does not grow unbounded.
func (d *memoryDeduper) cleanupLocked() {
	cutoff := time.Now().Add(-d.ttl)
	for key, seenAt := range d.seen {
		if seenAt.Before(cutoff) {
			delete(d.seen, key)
		}
	}
}

// RedisWebhookDeduper keys seen events in Redis with a TTL. Redis errors fail
// open: an event is better applied twice than dropped.
type RedisWebhookDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisWebhookDeduper creates a deduper on the given client.
func NewRedisWebhookDeduper(client *redis.Client, prefix string, ttl time.Duration) *RedisWebhookDeduper {
	if prefix == "" {
		prefix = "remit:webhook_dedup"
	}
	return &RedisWebhookDeduper{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisWebhookDeduper) IsDuplicate(ctx context.Context, key string) bool {
	exists, err := d.client.Exists(ctx, d.prefix+":"+key).Result()
	if err != nil {
		log.Printf("level=warn component=webhook_dedup msg=\"redis exists failed; failing open\" key=%s err=%v", key, err)
		return false
	}
	return exists > 0
}

func (d *RedisWebhookDeduper) MarkSeen(ctx context.Context, key string) {
	if err := d.client.Set(ctx, d.prefix+":"+key, 1, d.ttl).Err(); err != nil {
		log.Printf("level=warn component=webhook_dedup msg=\"redis set failed\" key=%s err=%v", key, err)
	}
}

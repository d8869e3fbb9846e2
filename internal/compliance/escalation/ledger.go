package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"obligo/internal/compliance/ports"
	platformredis "obligo/internal/platform/redis"
	id "obligo/pkg/domain"
)

// Ledger deduplicates escalation events. MarkIfFirst records the key and
// reports whether this caller was first; a duplicate same-day run sees false
// and emits nothing.
type Ledger interface {
	MarkIfFirst(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unmark removes a key so a failed delivery can be retried by the next
	// scan. Best effort.
	Unmark(ctx context.Context, key string) error
}

// LedgerKey builds the dedup key for one instance/kind/day condition.
func LedgerKey(instanceID id.InstanceID, kind ports.NotificationKind, asOf time.Time) string {
	return fmt.Sprintf("obligo:escalation:%s:%s:%s", instanceID, kind, asOf.UTC().Format("2006-01-02"))
}

// MemoryLedger is the in-process fallback when redis is not configured. Marks
// expire lazily on the next lookup.
type MemoryLedger struct {
	mu    sync.Mutex
	marks map[string]time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{marks: make(map[string]time.Time)}
}

func (l *MemoryLedger) MarkIfFirst(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expiry, ok := l.marks[key]; ok && expiry.After(now) {
		return false, nil
	}
	l.marks[key] = now.Add(ttl)
	return true, nil
}

func (l *MemoryLedger) Unmark(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.marks, key)
	return nil
}

// RedisLedger shares dedup state across processes with SET NX + TTL.
type RedisLedger struct {
	client *platformredis.Client
}

func NewRedisLedger(client *platformredis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) MarkIfFirst(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark escalation key: %w", err)
	}
	return ok, nil
}

func (l *RedisLedger) Unmark(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("unmark escalation key: %w", err)
	}
	return nil
}

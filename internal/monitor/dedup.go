package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opsline/helpdesk-core/internal/domain"
)

// DedupStore remembers the last actioned trigger per ticket so repeated
// sweeps do not re-fire the same escalation. A ticket becomes actionable
// again when its trigger type or severity changes.
type DedupStore interface {
	LastActioned(ctx context.Context, ticketID string) (domain.TriggerType, domain.Severity, bool, error)
	MarkActioned(ctx context.Context, ticketID string, trigger domain.TriggerType, severity domain.Severity) error
}

// RedisDedup keeps last-actioned markers in redis with a TTL, so stale
// markers age out and long-forgotten tickets can escalate again.
type RedisDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDedup wraps a redis client. A nonpositive ttl defaults to 7 days.
func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisDedup{client: client, ttl: ttl}
}

func (d *RedisDedup) LastActioned(ctx context.Context, ticketID string) (domain.TriggerType, domain.Severity, bool, error) {
	val, err := d.client.Get(ctx, dedupKey(ticketID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", false, nil
		}
		return "", "", false, err
	}
	trigger, severity, ok := strings.Cut(val, "|")
	if !ok {
		return "", "", false, nil
	}
	return domain.TriggerType(trigger), domain.Severity(severity), true, nil
}

func (d *RedisDedup) MarkActioned(ctx context.Context, ticketID string, trigger domain.TriggerType, severity domain.Severity) error {
	return d.client.Set(ctx, dedupKey(ticketID), string(trigger)+"|"+string(severity), d.ttl).Err()
}

func dedupKey(ticketID string) string {
	return "monitor:last:" + ticketID
}

type actionedRecord struct {
	trigger  domain.TriggerType
	severity domain.Severity
}

// MemoryDedup keeps last-actioned markers in process memory for tests and
// DSN-less runs.
type MemoryDedup struct {
	mu   sync.RWMutex
	last map[string]actionedRecord
}

// NewMemoryDedup creates an empty in-memory store.
func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{last: make(map[string]actionedRecord)}
}

func (d *MemoryDedup) LastActioned(_ context.Context, ticketID string) (domain.TriggerType, domain.Severity, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.last[ticketID]
	if !ok {
		return "", "", false, nil
	}
	return rec.trigger, rec.severity, true, nil
}

func (d *MemoryDedup) MarkActioned(_ context.Context, ticketID string, trigger domain.TriggerType, severity domain.Severity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last[ticketID] = actionedRecord{trigger: trigger, severity: severity}
	return nil
}

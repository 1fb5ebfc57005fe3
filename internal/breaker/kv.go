package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryKV is the in-process KV used when no Redis is configured. TTLs are
// honored on read.
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	value   string
	expires time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]memEntry)}
}

func (m *MemoryKV) Get(ctx context.Context, k string) (string, error) {
	m.mu.RLock()
	e, ok := m.entries[k]
	m.mu.RUnlock()
	if !ok {
		return "", nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		m.mu.Lock()
		delete(m.entries, k)
		m.mu.Unlock()
		return "", nil
	}
	return e.value, nil
}

func (m *MemoryKV) Set(ctx context.Context, k, v string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{value: v}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.entries[k] = e
	return nil
}

// RedisKV stores breaker state in Redis so all webhook replicas share it.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(addr, password string) *RedisKV {
	return &RedisKV{client: redis.NewClient(&redis.Options{Addr: addr, Password: password})}
}

func (r *RedisKV) Get(ctx context.Context, k string) (string, error) {
	v, err := r.client.Get(ctx, k).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (r *RedisKV) Set(ctx context.Context, k, v string, ttl time.Duration) error {
	return r.client.Set(ctx, k, v, ttl).Err()
}

// Ping is used by readiness probes.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

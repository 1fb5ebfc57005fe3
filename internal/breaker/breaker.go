// Package breaker implements the per-provider circuit breaker used by the
// intent pipeline. State is a single key/value pair per provider holding the
// open-transition timestamp; the breaker is advisory and self-expiring, so
// writes are last-writer-wins and a read error is treated as closed.
package breaker

import (
	"context"
	"time"
)

// DefaultCooldown is how long an open breaker suppresses a provider before
// it is treated as closed again, without any explicit reset.
const DefaultCooldown = 30 * time.Minute

// KV is the minimal key/value surface the breaker needs. Implementations
// live in this package (memory) and on Redis.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type Breaker struct {
	kv       KV
	cooldown time.Duration
	now      func() time.Time
}

func New(kv KV) *Breaker {
	return &Breaker{kv: kv, cooldown: DefaultCooldown, now: time.Now}
}

// WithCooldown overrides the expiry window, for tests.
func (b *Breaker) WithCooldown(d time.Duration) *Breaker {
	b.cooldown = d
	return b
}

// WithClock injects a clock, for tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

func key(provider string) string { return "breaker:" + provider }

// Open records the open transition for a provider. The TTL doubles as a
// server-side expiry where the KV supports it.
func (b *Breaker) Open(ctx context.Context, provider string) error {
	return b.kv.Set(ctx, key(provider), b.now().UTC().Format(time.RFC3339), b.cooldown)
}

// IsOpen reports whether the provider should be skipped. Missing state,
// unparseable state and KV errors all read as closed: the breaker must
// never make the pipeline less available than it would be without it.
func (b *Breaker) IsOpen(ctx context.Context, provider string) bool {
	v, err := b.kv.Get(ctx, key(provider))
	if err != nil || v == "" {
		return false
	}
	openedAt, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return false
	}
	return b.now().Sub(openedAt) < b.cooldown
}

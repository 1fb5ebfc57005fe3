package breaker

import (
	"context"
	"testing"
	"time"
)

func TestBreakerOpenAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	b := New(NewMemoryKV()).WithClock(func() time.Time { return now })

	if b.IsOpen(ctx, "primary") {
		t.Fatal("breaker should start closed")
	}
	if err := b.Open(ctx, "primary"); err != nil {
		t.Fatal(err)
	}
	if !b.IsOpen(ctx, "primary") {
		t.Fatal("breaker should be open after Open")
	}
	if b.IsOpen(ctx, "secondary") {
		t.Fatal("breaker state is per provider")
	}

	// Past the cool-down window the breaker reads as closed with no reset.
	now = now.Add(DefaultCooldown + time.Second)
	if b.IsOpen(ctx, "primary") {
		t.Fatal("breaker should auto-expire after cooldown")
	}
}

func TestBreakerTreatsGarbageAsClosed(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	if err := kv.Set(ctx, "breaker:primary", "not-a-timestamp", 0); err != nil {
		t.Fatal(err)
	}
	b := New(kv)
	if b.IsOpen(ctx, "primary") {
		t.Fatal("unparseable state must read as closed")
	}
}

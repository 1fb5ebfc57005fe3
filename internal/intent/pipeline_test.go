package intent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/wa-concierge/internal/breaker"
	"github.com/example/wa-concierge/internal/llm"
)

type fakeProvider struct {
	name  string
	reply string
	err   error
	calls atomic.Int64
	delay time.Duration
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Classify(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func fastResolver(primary, secondary llm.Provider) *Resolver {
	return &Resolver{
		Primary:        primary,
		Secondary:      secondary,
		Breaker:        breaker.New(breaker.NewMemoryKV()),
		Stagger:        5 * time.Millisecond,
		Ceiling:        300 * time.Millisecond,
		AttemptTimeout: 100 * time.Millisecond,
		RetryBase:      time.Millisecond,
	}
}

const taxiReply = `[{"intent":"taxi","confidence":0.95,"extracted_data":{"destination":"Sandton"}}]`

func TestResolvePrefersPrimary(t *testing.T) {
	primary := &fakeProvider{name: "primary", reply: taxiReply}
	secondary := &fakeProvider{name: "secondary", reply: `[{"intent":"food","confidence":0.9}]`}
	r := fastResolver(primary, secondary)

	got := r.Resolve(context.Background(), "get me a ride please", ConversationContext{})
	if got[0].Intent != "taxi" {
		t.Fatalf("expected primary's taxi answer, got %+v", got[0])
	}
}

func TestResolveFastPathSkipsProviders(t *testing.T) {
	primary := &fakeProvider{name: "primary", reply: taxiReply}
	r := fastResolver(primary, nil)

	got := r.Resolve(context.Background(), "hi", ConversationContext{})
	if got[0].Intent != IntentGreeting {
		t.Fatalf("expected greeting from fast path, got %+v", got[0])
	}
	if primary.calls.Load() != 0 {
		t.Fatalf("fast path must not call the LLM, got %d calls", primary.calls.Load())
	}
}

func TestResolveAvailabilityFloor(t *testing.T) {
	boom := errors.New("backend down")
	primary := &fakeProvider{name: "primary", err: boom}
	secondary := &fakeProvider{name: "secondary", err: boom}
	r := fastResolver(primary, secondary)

	got := r.Resolve(context.Background(), "I need a taxi to Sandton", ConversationContext{})
	if len(got) == 0 {
		t.Fatal("pipeline must always return a non-empty result")
	}
	if got[0].Intent != IntentTaxi {
		t.Fatalf("expected fallback parser result, got %+v", got[0])
	}
}

func TestResolveSecondaryWinsWhenPrimaryFails(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("boom")}
	secondary := &fakeProvider{name: "secondary", reply: `[{"intent":"food","confidence":0.9}]`}
	r := fastResolver(primary, secondary)

	got := r.Resolve(context.Background(), "I want something nice this morning", ConversationContext{})
	if got[0].Intent != "food" {
		t.Fatalf("expected secondary's answer, got %+v", got[0])
	}
}

func TestResolveHelpSentinelDoesNotWin(t *testing.T) {
	primary := &fakeProvider{name: "primary", reply: `[{"intent":"help","confidence":0.99}]`}
	secondary := &fakeProvider{name: "secondary", reply: `[{"intent":"food","confidence":0.8}]`}
	r := fastResolver(primary, secondary)

	got := r.Resolve(context.Background(), "I want something nice this morning", ConversationContext{})
	if got[0].Intent != "food" {
		t.Fatalf("help sentinel must not short-circuit the race, got %+v", got[0])
	}
}

func TestResolveRateLimitOpensBreaker(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: fmt.Errorf("%w: quota", llm.ErrRateLimited)}
	r := fastResolver(primary, nil)

	got := r.Resolve(context.Background(), "I need a taxi to Sandton", ConversationContext{})
	if got[0].Intent != IntentTaxi {
		t.Fatalf("expected fallback after rate limit, got %+v", got[0])
	}
	if !r.Breaker.IsOpen(context.Background(), "primary") {
		t.Fatal("429 from primary must open the breaker")
	}
	callsAfterFirst := primary.calls.Load()

	// Within the cool-down window the primary is skipped entirely.
	_ = r.Resolve(context.Background(), "taxi to Soweto please", ConversationContext{})
	if primary.calls.Load() != callsAfterFirst {
		t.Fatalf("expected breaker to skip primary, calls went %d -> %d", callsAfterFirst, primary.calls.Load())
	}
}

func TestResolveCeilingTimeout(t *testing.T) {
	slow := &fakeProvider{name: "primary", reply: taxiReply, delay: 5 * time.Second}
	r := fastResolver(slow, nil)

	start := time.Now()
	got := r.Resolve(context.Background(), "I need a taxi to Sandton", ConversationContext{})
	if time.Since(start) > 2*time.Second {
		t.Fatalf("resolve exceeded race ceiling, took %s", time.Since(start))
	}
	if got[0].Intent != IntentTaxi {
		t.Fatalf("expected fallback on timeout, got %+v", got[0])
	}
}

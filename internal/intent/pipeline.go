package intent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/wa-concierge/internal/breaker"
	"github.com/example/wa-concierge/internal/llm"
	"github.com/example/wa-concierge/internal/models"
	"github.com/example/wa-concierge/internal/observability"
)

// fastPathConfidence is the fallback-parser confidence above which the LLM
// race is skipped entirely.
const fastPathConfidence = 0.9

const (
	defaultStagger        = 1500 * time.Millisecond
	defaultCeiling        = 8 * time.Second
	defaultAttemptTimeout = 10 * time.Second
	defaultRetryBase      = 500 * time.Millisecond
	defaultAttempts       = 2
)

var errNonAnswer = errors.New("intent: provider returned the help sentinel")

// Resolver races the primary and secondary LLM providers, gated by the
// circuit breaker, and falls back to the deterministic parser. Resolve
// always returns a non-empty ranked list and never returns an error: under
// total upstream failure the keyword parser is the answer.
type Resolver struct {
	Primary   llm.Provider // may be nil
	Secondary llm.Provider // may be nil
	Breaker   *breaker.Breaker
	Log       *slog.Logger

	// Zero values take the defaults above.
	Stagger        time.Duration
	Ceiling        time.Duration
	AttemptTimeout time.Duration
	RetryBase      time.Duration
	Attempts       int
}

func (r *Resolver) Resolve(ctx context.Context, text string, conv ConversationContext) []models.IntentResult {
	fb := Fallback(text)
	if fb[0].Confidence >= fastPathConfidence {
		observability.IntentsResolved.WithLabelValues("fallback_fast").Inc()
		return fb
	}

	raceCtx, cancel := context.WithTimeout(ctx, orDefault(r.Ceiling, defaultCeiling))
	defer cancel()

	prompt := buildPrompt(text, conv)
	results := make(chan raceResult, 2)
	var wg sync.WaitGroup

	launched := 0
	if r.Primary != nil && !r.Breaker.IsOpen(raceCtx, r.Primary.Name()) {
		launched++
		wg.Add(1)
		go r.race(raceCtx, &wg, results, r.Primary, 0, true, prompt)
	}
	if r.Secondary != nil {
		// The stagger favors the primary when both backends are healthy.
		launched++
		wg.Add(1)
		go r.race(raceCtx, &wg, results, r.Secondary, orDefault(r.Stagger, defaultStagger), false, prompt)
	}
	if launched == 0 {
		observability.IntentsResolved.WithLabelValues("fallback").Inc()
		return fb
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case res := <-results:
		observability.IntentsResolved.WithLabelValues(res.provider).Inc()
		return res.intents
	case <-done:
		// Every attempt finished; a late success may still be buffered.
		select {
		case res := <-results:
			observability.IntentsResolved.WithLabelValues(res.provider).Inc()
			return res.intents
		default:
		}
	case <-raceCtx.Done():
	}

	observability.IntentsResolved.WithLabelValues("fallback").Inc()
	return fb
}

type raceResult struct {
	provider string
	intents  []models.IntentResult
}

func (r *Resolver) race(ctx context.Context, wg *sync.WaitGroup, out chan<- raceResult, p llm.Provider, delay time.Duration, primary bool, prompt string) {
	defer wg.Done()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
	intents, err := r.classifyWithRetry(ctx, p, prompt, primary)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger().Warn("llm classification failed", "provider", p.Name(), "error", err)
			observability.LLMFailures.WithLabelValues(p.Name()).Inc()
		}
		return
	}
	out <- raceResult{provider: p.Name(), intents: intents}
}

func (r *Resolver) classifyWithRetry(ctx context.Context, p llm.Provider, prompt string, primary bool) ([]models.IntentResult, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	delay := orDefault(r.RetryBase, defaultRetryBase)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}
		attemptCtx, cancel := context.WithTimeout(ctx, orDefault(r.AttemptTimeout, defaultAttemptTimeout))
		raw, err := p.Classify(attemptCtx, prompt)
		cancel()
		if err != nil {
			if primary && errors.Is(err, llm.ErrRateLimited) {
				// Persist the breaker outside the race context: the open
				// transition must land even if the race is being torn down.
				if berr := r.Breaker.Open(context.WithoutCancel(ctx), p.Name()); berr != nil {
					r.logger().Error("failed to open circuit breaker", "provider", p.Name(), "error", berr)
				}
				observability.BreakerOpens.WithLabelValues(p.Name()).Inc()
				return nil, err
			}
			lastErr = err
			continue
		}
		intents, err := llm.ExtractIntents(raw)
		if err != nil {
			lastErr = err
			continue
		}
		if intents[0].Intent == IntentHelp {
			// Generic help from a model is a non-answer; it must not win
			// the race over the other provider or the fallback parser.
			lastErr = errNonAnswer
			continue
		}
		return intents, nil
	}
	return nil, lastErr
}

func (r *Resolver) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

func orDefault(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

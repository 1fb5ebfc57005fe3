// Package llm holds the text-completion providers the intent pipeline races
// against each other, plus the defensive JSON extraction applied to their
// raw output.
package llm

import (
	"context"
	"errors"
)

// ErrRateLimited marks a provider 429. The pipeline reacts by opening the
// circuit breaker for that provider.
var ErrRateLimited = errors.New("llm: rate limited")

// Provider is a single classification backend. Classify returns the raw
// model text, which is expected - but not guaranteed - to contain a JSON
// array of intent results.
type Provider interface {
	Name() string
	Classify(ctx context.Context, prompt string) (string, error)
}

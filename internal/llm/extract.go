package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/example/wa-concierge/internal/models"
)

var (
	fencedRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")
	bracketRe = regexp.MustCompile(`(?s)\[.*\]`)
)

type rawIntent struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Extracted  map[string]any `json:"extracted_data"`
}

// ExtractIntents pulls a JSON array of intent results out of raw model
// output. Models wrap answers in prose and markdown fences often enough
// that we try a fenced block first, then the widest bracketed span.
func ExtractIntents(raw string) ([]models.IntentResult, error) {
	var payload string
	if m := fencedRe.FindStringSubmatch(raw); m != nil {
		payload = m[1]
	} else if m := bracketRe.FindString(raw); m != "" {
		payload = m
	} else {
		return nil, fmt.Errorf("llm: no JSON array in response")
	}

	var parsed []rawIntent
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("llm: malformed intent JSON: %w", err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("llm: empty intent array")
	}

	out := make([]models.IntentResult, 0, len(parsed))
	for _, r := range parsed {
		intent := strings.ToLower(strings.TrimSpace(r.Intent))
		if intent == "" {
			continue
		}
		res := models.IntentResult{Intent: intent, Confidence: clamp01(r.Confidence)}
		if len(r.Extracted) > 0 {
			res.Extracted = make(map[string]string, len(r.Extracted))
			for k, v := range r.Extracted {
				res.Extracted[k] = fmt.Sprint(v)
			}
		}
		out = append(out, res)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("llm: no usable intents in response")
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

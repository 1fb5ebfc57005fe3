package intent

import (
	"regexp"
	"strings"

	"github.com/example/wa-concierge/internal/models"
)

// exactRules are high-confidence overrides for greetings and interactive
// button payloads, checked before any substring rule.
var exactRules = map[string]models.IntentResult{
	"hi":         {Intent: IntentGreeting, Confidence: 0.9},
	"hello":      {Intent: IntentGreeting, Confidence: 0.9},
	"hey":        {Intent: IntentGreeting, Confidence: 0.9},
	"start":      {Intent: IntentGreeting, Confidence: 0.9},
	"menu":       {Intent: IntentGreeting, Confidence: 0.9},
	"main_menu":  {Intent: IntentGreeting, Confidence: 1.0},
	"help":       {Intent: IntentHelp, Confidence: 0.9},
	"book_taxi":  {Intent: IntentTaxi, Confidence: 1.0},
	"track_ride": {Intent: IntentTaxiStatus, Confidence: 1.0},
	"view_cart":  {Intent: IntentCartView, Confidence: 1.0},
	"checkout":   {Intent: IntentCheckout, Confidence: 1.0},
}

type substringRule struct {
	intent     string
	confidence float64
	needles    []string
}

// substringRules run in a fixed priority order: more specific categories
// (ride tracking, cart actions) must win before the generic ones that share
// vocabulary with them.
var substringRules = []substringRule{
	{IntentTaxiStatus, 0.85, []string{"track my ride", "where is my ride", "where is my taxi", "track ride", "ride status"}},
	{IntentTaxi, 0.85, []string{"taxi", "ride to", "lift to", "cab", "take me to"}},
	{IntentCartRemove, 0.8, []string{"remove from cart", "remove from my cart", "take out of cart"}},
	{IntentCartAdd, 0.8, []string{"add to cart", "add to my cart"}},
	{IntentCartView, 0.8, []string{"my cart", "view cart", "show cart", "what's in my cart"}},
	{IntentCheckout, 0.8, []string{"check out", "pay now", "place order"}},
	{IntentFood, 0.8, []string{"food", "hungry", "something to eat", "meal", "lunch", "dinner"}},
	{IntentTravel, 0.8, []string{"flight", "bus ticket", "train ticket", "travel to"}},
	{IntentGroupBuy, 0.8, []string{"group buy", "bulk buy", "split with"}},
	{IntentSavings, 0.8, []string{"stokvel", "savings club", "save together"}},
	{IntentShopping, 0.8, []string{"buy", "shop", "price of", "order", "looking for"}},
	{IntentHelp, 0.8, []string{"help", "what can you do"}},
	{IntentTaxiStatus, 0.8, []string{"track"}},
}

// Bind to the last "to" so "i want to go to sandton" extracts "sandton".
var destinationRe = regexp.MustCompile(`.*\bto\s+(.+)$`)

// Fallback is the deterministic keyword parser. It is pure and total: any
// input, including the empty string, yields a non-empty result list and it
// never panics. It is both the fast path for unambiguous messages and the
// guaranteed floor when LLM inference is down.
func Fallback(text string) []models.IntentResult {
	normalized := strings.ToLower(strings.TrimSpace(text))

	if r, ok := exactRules[normalized]; ok {
		return []models.IntentResult{r}
	}

	for _, rule := range substringRules {
		for _, needle := range rule.needles {
			if strings.Contains(normalized, needle) {
				res := models.IntentResult{Intent: rule.intent, Confidence: rule.confidence}
				if rule.intent == IntentTaxi {
					if dest := extractDestination(normalized); dest != "" {
						res.Extracted = map[string]string{models.ExtractedDestination: dest}
					}
				}
				return []models.IntentResult{res}
			}
		}
	}

	if len(normalized) >= 4 {
		return []models.IntentResult{{Intent: IntentConversational, Confidence: 0.4}}
	}
	return []models.IntentResult{{Intent: IntentHelp, Confidence: 0.1}}
}

func extractDestination(normalized string) string {
	m := destinationRe.FindStringSubmatch(normalized)
	if m == nil {
		return ""
	}
	return strings.Trim(strings.TrimSpace(m[1]), ".!?")
}

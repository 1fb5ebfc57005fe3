package intent

import (
	"strings"
	"testing"

	"github.com/example/wa-concierge/internal/models"
)

func TestFallbackIsTotal(t *testing.T) {
	inputs := []string{
		"",
		" ",
		"x",
		"hi",
		"HELLO!!!",
		strings.Repeat("a", 10000),
		"ταξί στο κέντρο",
		"\x00\x01\x02",
	}
	for _, in := range inputs {
		got := Fallback(in)
		if len(got) == 0 {
			t.Fatalf("Fallback(%q) returned empty list", in)
		}
		for _, r := range got {
			if r.Intent == "" || r.Confidence < 0 || r.Confidence > 1 {
				t.Fatalf("Fallback(%q) returned invalid result %+v", in, r)
			}
		}
	}
}

func TestFallbackGreetingFastPath(t *testing.T) {
	got := Fallback("hi")
	if got[0].Intent != IntentGreeting || got[0].Confidence != 0.9 {
		t.Fatalf("expected greeting@0.9, got %+v", got[0])
	}
	// Case and surrounding whitespace do not matter for exact rules.
	got = Fallback("  Hello ")
	if got[0].Intent != IntentGreeting {
		t.Fatalf("expected greeting, got %+v", got[0])
	}
}

func TestFallbackButtonPayloads(t *testing.T) {
	cases := map[string]string{
		"track_ride": IntentTaxiStatus,
		"view_cart":  IntentCartView,
		"checkout":   IntentCheckout,
		"book_taxi":  IntentTaxi,
	}
	for payload, want := range cases {
		got := Fallback(payload)
		if got[0].Intent != want || got[0].Confidence < 0.9 {
			t.Fatalf("Fallback(%q) = %+v, want high-confidence %s", payload, got[0], want)
		}
	}
}

func TestFallbackTrackingBeforeGenericTaxi(t *testing.T) {
	got := Fallback("where is my taxi?")
	if got[0].Intent != IntentTaxiStatus {
		t.Fatalf("tracking phrasing must win over generic taxi, got %+v", got[0])
	}
}

func TestFallbackCartBeforeGenericShopping(t *testing.T) {
	got := Fallback("please add to cart the blue shoes I want to buy")
	if got[0].Intent != IntentCartAdd {
		t.Fatalf("cart action must win over generic shopping, got %+v", got[0])
	}
}

func TestFallbackTaxiDestinationExtraction(t *testing.T) {
	got := Fallback("I need a taxi to Sandton")
	if got[0].Intent != IntentTaxi {
		t.Fatalf("expected taxi, got %+v", got[0])
	}
	if got[0].Extracted[models.ExtractedDestination] != "sandton" {
		t.Fatalf("expected destination extraction, got %+v", got[0].Extracted)
	}
}

func TestFallbackDestinationBindsToLastTo(t *testing.T) {
	got := Fallback("I want to take a taxi to Soweto")
	if got[0].Intent != IntentTaxi {
		t.Fatalf("expected taxi, got %+v", got[0])
	}
	if got[0].Extracted[models.ExtractedDestination] != "soweto" {
		t.Fatalf("expected the last place name, got %+v", got[0].Extracted)
	}
}

func TestFallbackConversationalAndHelpFloors(t *testing.T) {
	got := Fallback("tell me about the weather in durban please")
	if got[0].Intent != IntentConversational {
		t.Fatalf("expected conversational for non-trivial unmatched text, got %+v", got[0])
	}
	got = Fallback("zz")
	if got[0].Intent != IntentHelp {
		t.Fatalf("expected help for trivial unmatched text, got %+v", got[0])
	}
}

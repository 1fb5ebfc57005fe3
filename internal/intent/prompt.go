package intent

import (
	"fmt"
	"strings"
)

// ConversationContext is the lightweight memory fed into the classification
// prompt: enough to bias ambiguous messages without replaying history.
type ConversationContext struct {
	CartItems         int
	LastIntent        string
	RecentTaxiBooking bool
}

var knownIntents = []string{
	IntentGreeting, IntentHelp, IntentTaxi, IntentTaxiStatus,
	IntentShopping, IntentCartAdd, IntentCartRemove, IntentCartView,
	IntentCheckout, IntentFood, IntentTravel, IntentGroupBuy,
	IntentSavings, IntentConversational,
}

func buildPrompt(text string, conv ConversationContext) string {
	var b strings.Builder
	b.WriteString("You classify WhatsApp messages for a commerce concierge.\n")
	b.WriteString("Respond with ONLY a JSON array, most likely intent first. Each element:\n")
	b.WriteString(`{"intent": "<name>", "confidence": <0..1>, "extracted_data": {"destination": "...", "item": "...", "quantity": "..."}}`)
	b.WriteString("\nValid intents: ")
	b.WriteString(strings.Join(knownIntents, ", "))
	b.WriteString(".\nOmit extracted_data keys that do not apply.\n")

	if conv.CartItems > 0 {
		fmt.Fprintf(&b, "Context: the user has %d item(s) in their cart.\n", conv.CartItems)
	}
	if conv.LastIntent != "" {
		fmt.Fprintf(&b, "Context: the previous message was classified as %q.\n", conv.LastIntent)
	}
	if conv.RecentTaxiBooking {
		b.WriteString("Context: the user booked a taxi recently.\n")
	}

	fmt.Fprintf(&b, "Message: %q\n", text)
	return b.String()
}

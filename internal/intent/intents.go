// Package intent turns free-form WhatsApp messages into ranked intent
// results, racing two LLM providers behind a circuit breaker with a
// deterministic keyword parser as the availability floor.
package intent

// Canonical intent names. The router's dispatch table is keyed by these and
// built once at startup, so additions here need a matching handler there.
const (
	IntentGreeting       = "greeting"
	IntentHelp           = "help"
	IntentTaxi           = "taxi"
	IntentTaxiStatus     = "taxi_status"
	IntentShopping       = "shopping"
	IntentCartAdd        = "cart_add"
	IntentCartRemove     = "cart_remove"
	IntentCartView       = "cart_view"
	IntentCheckout       = "checkout"
	IntentFood           = "food"
	IntentTravel         = "travel"
	IntentGroupBuy       = "groupbuy"
	IntentSavings        = "savings"
	IntentConversational = "conversational"
)

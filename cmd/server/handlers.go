package main

import (
	"context"
	"log/slog"

	"github.com/example/wa-concierge/internal/intent"
	"github.com/example/wa-concierge/internal/router"
	"github.com/example/wa-concierge/internal/shop"
	"github.com/example/wa-concierge/internal/taxi"
	"github.com/example/wa-concierge/internal/wa"
)

const (
	msgGreeting = "Hi! I'm your concierge. I can book you a shared taxi, manage your cart, or answer questions. What do you need?"
	msgHelp     = "Here's what I can do:\n- Book a shared taxi: send your location and say where you're headed\n- Track your ride: tap Track Ride\n- Shop: add items, view your cart, check out\nJust type what you need."
	msgFallback = "I didn't quite get that. Type 'help' to see what I can do, or 'taxi to <destination>' to book a ride."
)

var mainButtons = []wa.Button{
	{ID: "book_taxi", Title: "Book Taxi"},
	{ID: "view_cart", Title: "View Cart"},
	{ID: "help", Title: "Help"},
}

// buildRouter wires the closed intent table. Taxi and shopping intents get
// their mirages; the remaining verticals get guided replies until they
// land.
func buildRouter(log *slog.Logger, sender wa.Sender, mirage *taxi.Mirage, cart *shop.Mirage) *router.Router {
	text := func(body string) router.HandlerFunc {
		return func(ctx context.Context, req router.Request) error {
			_, err := sender.SendText(ctx, req.UserID, body)
			return err
		}
	}
	menu := func(body string) router.HandlerFunc {
		return func(ctx context.Context, req router.Request) error {
			_, err := sender.SendInteractive(ctx, req.UserID, body, mainButtons)
			return err
		}
	}

	rt := router.New(log, text(msgFallback))
	rt.Register(intent.IntentGreeting, menu(msgGreeting))
	rt.Register(intent.IntentHelp, text(msgHelp))
	rt.Register(intent.IntentConversational, text(msgFallback))

	rt.Register(intent.IntentTaxi, mirage.HandleBooking)
	rt.Register(intent.IntentTaxiStatus, mirage.HandleStatus)

	rt.Register(intent.IntentShopping, cart.HandleBrowse)
	rt.Register(intent.IntentCartAdd, cart.HandleAdd)
	rt.Register(intent.IntentCartView, cart.HandleView)
	rt.Register(intent.IntentCartRemove, cart.HandleRemove)
	rt.Register(intent.IntentCheckout, cart.HandleCheckout)
	rt.Register(intent.IntentFood, text("Food orders are coming soon. I can book you a taxi in the meantime!"))
	rt.Register(intent.IntentTravel, text("Long-distance travel bookings are coming soon."))
	rt.Register(intent.IntentGroupBuy, text("Group buying is coming soon. Watch this space!"))
	rt.Register(intent.IntentSavings, text("Savings clubs are coming soon. Watch this space!"))

	return rt
}

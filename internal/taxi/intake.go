package taxi

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/wa-concierge/internal/corridor"
	"github.com/example/wa-concierge/internal/events"
	"github.com/example/wa-concierge/internal/geocode"
	"github.com/example/wa-concierge/internal/models"
	"github.com/example/wa-concierge/internal/observability"
	"github.com/example/wa-concierge/internal/payments"
	"github.com/example/wa-concierge/internal/router"
	"github.com/example/wa-concierge/internal/storage"
	"github.com/example/wa-concierge/internal/tasks"
	"github.com/example/wa-concierge/internal/wa"
)

const (
	msgNeedLocation = "Please share your pickup location (attach > Location) so I can find a ride for you."
	msgNeedDest     = "Where are you headed? Reply like: to Sandton"
	msgGeneric      = "Sorry, something went wrong on our side. Please try again in a moment."
)

// The greedy prefix binds to the last "to", so "I want to go to Sandton"
// yields "Sandton" rather than "go to Sandton".
var destRe = regexp.MustCompile(`(?i).*\bto\s+(.+)$`)

// Mirage is the taxi booking handler: it turns a location share plus a
// destination into a pending corridor booking and pokes the dispatcher.
type Mirage struct {
	Store      storage.Store
	Geo        geocode.Geocoder
	Sender     wa.Sender
	Dispatcher *Dispatcher
	Log        *slog.Logger
	Tasks      *tasks.Runner       // optional; nil runs triggers inline
	Payments   payments.FareHolder // optional
	Events     *events.Producer    // optional
}

// HandleBooking processes a taxi intent. Input problems get a specific
// guiding reply; anything unexpected collapses to the generic apology.
// The user always hears back.
func (m *Mirage) HandleBooking(ctx context.Context, req router.Request) error {
	if err := m.book(ctx, req); err != nil {
		m.Log.Error("booking failed", "user", req.UserID, "error", err)
		if _, serr := m.Sender.SendText(ctx, req.UserID, msgGeneric); serr != nil {
			m.Log.Error("failed to send error reply", "user", req.UserID, "error", serr)
		}
	}
	return nil
}

func (m *Mirage) book(ctx context.Context, req router.Request) error {
	if req.Location == nil {
		return m.reply(ctx, req.UserID, msgNeedLocation)
	}
	pickup := *req.Location

	dest := destinationFrom(req)
	if dest == "" {
		return m.reply(ctx, req.UserID, msgNeedDest)
	}

	dropoff, err := m.Geo.Geocode(ctx, dest)
	if err != nil {
		m.Log.Warn("geocoding failed", "destination", dest, "error", err)
		return m.reply(ctx, req.UserID, fmt.Sprintf("I couldn't find %q. Try a nearby landmark or suburb name.", dest))
	}
	if dropoff == nil {
		return m.reply(ctx, req.UserID, fmt.Sprintf("I couldn't find %q. Try a nearby landmark or suburb name.", dest))
	}

	corridors, err := m.Store.ActiveCorridors(ctx)
	if err != nil {
		return fmt.Errorf("load corridors: %w", err)
	}
	c, ok := corridor.Assign(pickup, *dropoff, corridors)
	if !ok {
		return m.reply(ctx, req.UserID, unsupportedRouteMessage(corridors))
	}

	fare := corridor.Fare(pickup, *dropoff)
	booking := &models.Booking{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Pickup:      pickup,
		PickupAddr:  fmt.Sprintf("%.5f,%.5f", pickup.Lat, pickup.Lon),
		Dropoff:     *dropoff,
		DropoffAddr: dest,
		CorridorID:  c.ID,
		Fare:        fare,
		Status:      models.BookingPending,
		CreatedAt:   time.Now().UTC(),
	}

	// Fare hold is best-effort: a payment hiccup must not lose the booking.
	if m.Payments != nil {
		if ref, err := m.Payments.HoldFare(ctx, fare*100, req.UserID); err != nil {
			m.Log.Warn("fare hold failed", "user", req.UserID, "error", err)
		} else {
			booking.PaymentRef = ref
		}
	}

	// The insert is the last failure point before confirmation: if it
	// fails, no confirmation goes out and nothing half-booked remains.
	if err := m.Store.SaveBooking(ctx, booking); err != nil {
		if m.Payments != nil && booking.PaymentRef != "" {
			if rerr := m.Payments.ReleaseFare(ctx, booking.PaymentRef); rerr != nil {
				m.Log.Warn("fare release failed", "ref", booking.PaymentRef, "error", rerr)
			}
		}
		return fmt.Errorf("persist booking: %w", err)
	}
	observability.BookingsCreated.Inc()

	waiting, err := m.Store.CountPending(ctx, c.ID)
	if err != nil {
		m.Log.Warn("pending count failed", "corridor", c.ID, "error", err)
		waiting = 1
	}

	// Confirm before triggering dispatch: when the triggers run inline,
	// the rider who completes the group must still see their own
	// confirmation ahead of the trip notification.
	if err := m.reply(ctx, req.UserID, fmt.Sprintf(
		"Booking confirmed on %s! Fare: R%d. Waiting for passengers: %d/%d. I'll message you when your group is full.",
		c.Name, fare, waiting, c.MinGroupSize)); err != nil {
		return err
	}

	m.background("booking.event", func(bctx context.Context) error {
		if m.Events == nil {
			return nil
		}
		return m.Events.PublishBookingCreated(*booking)
	})
	m.background("dispatch.trigger", func(bctx context.Context) error {
		_, err := m.Dispatcher.DispatchCorridor(bctx, c)
		return err
	})
	return nil
}

// HandleStatus answers a ride-tracking intent.
func (m *Mirage) HandleStatus(ctx context.Context, req router.Request) error {
	return m.reply(ctx, req.UserID,
		"I'll send live updates here the moment your group is full and your trip is scheduled.")
}

func (m *Mirage) reply(ctx context.Context, to, body string) error {
	if _, err := m.Sender.SendText(ctx, to, body); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// background schedules a fire-and-forget step; with no runner configured
// (tests, dispatcher binary) it runs inline on a detached context.
func (m *Mirage) background(name string, fn func(ctx context.Context) error) {
	if m.Tasks != nil {
		m.Tasks.Go(name, fn)
		return
	}
	if err := fn(context.Background()); err != nil {
		m.Log.Warn("background step failed", "task", name, "error", err)
	}
}

func destinationFrom(req router.Request) string {
	if d := strings.TrimSpace(req.Intent.Extracted[models.ExtractedDestination]); d != "" {
		return d
	}
	m := destRe.FindStringSubmatch(req.Text)
	if m == nil {
		return ""
	}
	return strings.Trim(strings.TrimSpace(m[1]), ".!?")
}

func unsupportedRouteMessage(corridors []models.Corridor) string {
	if len(corridors) == 0 {
		return "We don't serve that route yet."
	}
	names := make([]string, 0, len(corridors))
	for _, c := range corridors {
		names = append(names, c.Name)
	}
	return "We don't serve that route yet. Current routes: " + strings.Join(names, ", ") + "."
}

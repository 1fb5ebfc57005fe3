package taxi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/wa-concierge/internal/alert"
	"github.com/example/wa-concierge/internal/events"
	"github.com/example/wa-concierge/internal/models"
	"github.com/example/wa-concierge/internal/observability"
	"github.com/example/wa-concierge/internal/payments"
	"github.com/example/wa-concierge/internal/sentry"
	"github.com/example/wa-concierge/internal/storage"
	"github.com/example/wa-concierge/internal/track"
	"github.com/example/wa-concierge/internal/wa"
)

// platformCommission is the flat platform cut of a trip's revenue.
const platformCommission = 0.15

// notifyConcurrency bounds the passenger-notification fan-out per trip.
const notifyConcurrency = 4

// Dispatcher groups pending bookings into trips, corridor by corridor. It
// runs on a schedule and is also triggered after each new booking; the
// per-booking claim step in the store serializes overlapping cycles so a
// booking can never land in two trips.
type Dispatcher struct {
	Store    storage.Store
	Sender   wa.Sender
	Advisor  sentry.Advisor
	Log      *slog.Logger
	Track    *track.Hub          // optional
	Payments payments.FareHolder // optional
	Events   *events.Producer    // optional
	Alerts   *alert.Notifier     // optional
}

// RunCycle scans every active corridor. Corridors are independent: one
// corridor failing does not stop the rest of the scan.
func (d *Dispatcher) RunCycle(ctx context.Context) error {
	observability.DispatchCycles.Inc()
	corridors, err := d.Store.ActiveCorridors(ctx)
	if err != nil {
		return fmt.Errorf("load corridors: %w", err)
	}
	var errs []error
	for _, c := range corridors {
		if _, err := d.DispatchCorridor(ctx, c); err != nil {
			d.Log.Error("corridor dispatch failed", "corridor", c.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DispatchCorridor runs one dispatch attempt for a corridor. It returns
// (nil, nil) when there is nothing to do: quorum not met, or a concurrent
// cycle claimed the queue first.
func (d *Dispatcher) DispatchCorridor(ctx context.Context, c models.Corridor) (*models.Trip, error) {
	pending, err := d.Store.PendingByCorridor(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load pending bookings: %w", err)
	}
	if len(pending) < c.MinGroupSize {
		return nil, nil
	}
	if d.Advisor != nil && !d.Advisor.Consult(ctx, "taxi.dispatch") {
		d.Log.Warn("dispatch vetoed by advisor", "corridor", c.ID)
		return nil, nil
	}

	// Claim oldest-first up to capacity. Bookings beyond max_group_size
	// stay pending for the next cycle.
	limit := c.MaxGroupSize
	if limit > len(pending) {
		limit = len(pending)
	}
	var claimed []models.Booking
	for _, b := range pending {
		if len(claimed) == limit {
			break
		}
		ok, err := d.Store.ClaimBooking(ctx, b.ID)
		if err != nil {
			d.release(ctx, claimed)
			return nil, fmt.Errorf("claim booking %s: %w", b.ID, err)
		}
		if ok {
			claimed = append(claimed, b)
		}
	}
	if len(claimed) < c.MinGroupSize {
		// A concurrent cycle got here first; hand the stragglers back.
		d.release(ctx, claimed)
		return nil, nil
	}

	revenue := c.BaseFare * int64(len(claimed))
	trip := &models.Trip{
		ID:               uuid.NewString(),
		CorridorID:       c.ID,
		Status:           models.TripScheduled,
		Revenue:          revenue,
		PlatformEarnings: int64(math.Round(float64(revenue) * platformCommission)),
		CreatedAt:        time.Now().UTC(),
	}
	stops := BuildStops(trip.ID, c, claimed)

	if err := d.Store.SaveTrip(ctx, trip, stops); err != nil {
		d.release(ctx, claimed)
		return nil, fmt.Errorf("persist trip: %w", err)
	}

	ids := make([]string, len(claimed))
	for i, b := range claimed {
		ids[i] = b.ID
	}
	if err := d.Store.MarkGrouped(ctx, ids); err != nil {
		// Trip exists but bookings are stuck in claiming. This needs a
		// human: grouped state and financials no longer agree.
		if d.Alerts != nil {
			d.Alerts.Critical(ctx, "DISPATCH_STATE", fmt.Sprintf("trip %s saved but bookings not grouped: %v", trip.ID, err))
		}
		return trip, fmt.Errorf("mark bookings grouped: %w", err)
	}

	observability.TripsDispatched.Inc()
	observability.TripGroupSize.Observe(float64(len(claimed)))
	d.Log.Info("trip dispatched",
		"trip", trip.ID, "corridor", c.Name, "passengers", len(claimed), "revenue", revenue)

	d.afterDispatch(ctx, trip, c, claimed)
	return trip, nil
}

func (d *Dispatcher) release(ctx context.Context, claimed []models.Booking) {
	for _, b := range claimed {
		if err := d.Store.ReleaseBooking(ctx, b.ID); err != nil {
			d.Log.Error("failed to release claimed booking", "booking", b.ID, "error", err)
		}
	}
}

// afterDispatch runs the non-critical side effects: passenger
// notifications, fare captures, the event stream and the tracking feed.
// Failures here are logged and never roll back the dispatch.
func (d *Dispatcher) afterDispatch(ctx context.Context, trip *models.Trip, c models.Corridor, claimed []models.Booking) {
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(notifyConcurrency)
	for _, b := range claimed {
		g.Go(func() error {
			body := fmt.Sprintf("Your shared ride on %s is confirmed! %d passengers, departing shortly. Trip ref %s.",
				c.Name, len(claimed), trip.ID)
			if _, err := d.Sender.SendInteractive(gctx, b.UserID, body, []wa.Button{
				{ID: "track_ride", Title: "Track ride"},
				{ID: "help", Title: "Help"},
			}); err != nil {
				d.Log.Warn("passenger notification failed", "booking", b.ID, "error", err)
			}
			if d.Payments != nil && b.PaymentRef != "" {
				if err := d.Payments.CaptureFare(gctx, b.PaymentRef); err != nil {
					d.Log.Warn("fare capture failed", "booking", b.ID, "error", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if d.Events != nil {
		if err := d.Events.PublishTripDispatched(*trip); err != nil {
			d.Log.Warn("trip event publish failed", "trip", trip.ID, "error", err)
		}
	}
	if d.Track != nil {
		d.Track.Broadcast(track.TripUpdate{
			TripID:  trip.ID,
			Status:  string(trip.Status),
			Message: fmt.Sprintf("Trip scheduled on %s with %d passengers", c.Name, len(claimed)),
			SentAt:  time.Now().UTC(),
		})
	}
}

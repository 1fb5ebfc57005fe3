// Package events publishes booking lifecycle events to Kafka. The
// dispatcher process consumes the stream as its opportunistic dispatch
// trigger; the same stream feeds analytics downstream.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/wa-concierge/internal/models"
)

const (
	TypeBookingCreated = "booking.created"
	TypeTripDispatched = "trip.dispatched"
)

// BookingEvent is the wire shape for both event types. CorridorID is the
// partition key so per-corridor ordering is preserved.
type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  string    `json:"booking_id,omitempty"`
	TripID     string    `json:"trip_id,omitempty"`
	CorridorID string    `json:"corridor_id"`
	UserID     string    `json:"user_id,omitempty"`
	Fare       int64     `json:"fare,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Producer{writer: w}
}

func (p *Producer) PublishBookingCreated(b models.Booking) error {
	return p.publish(BookingEvent{
		Type:       TypeBookingCreated,
		BookingID:  b.ID,
		CorridorID: b.CorridorID,
		UserID:     b.UserID,
		Fare:       b.Fare,
		OccurredAt: b.CreatedAt,
	})
}

func (p *Producer) PublishTripDispatched(t models.Trip) error {
	return p.publish(BookingEvent{
		Type:       TypeTripDispatched,
		TripID:     t.ID,
		CorridorID: t.CorridorID,
		OccurredAt: t.CreatedAt,
	})
}

func (p *Producer) publish(ev BookingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.CorridorID), Value: b})
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

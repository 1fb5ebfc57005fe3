package storage

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/example/wa-concierge/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying handle for migrations and readiness probes.
func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) ActiveCorridors(ctx context.Context) ([]models.Corridor, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, start_lat, start_lon, end_lat, end_lon, radius_km, active, min_group_size, max_group_size, base_fare
		 FROM corridors WHERE active = true ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Corridor
	for rows.Next() {
		var c models.Corridor
		if err := rows.Scan(&c.ID, &c.Name, &c.Start.Lat, &c.Start.Lon, &c.End.Lat, &c.End.Lon,
			&c.RadiusKm, &c.Active, &c.MinGroupSize, &c.MaxGroupSize, &c.BaseFare); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CorridorByID(ctx context.Context, id string) (models.Corridor, error) {
	var c models.Corridor
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, start_lat, start_lon, end_lat, end_lon, radius_km, active, min_group_size, max_group_size, base_fare
		 FROM corridors WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Start.Lat, &c.Start.Lon, &c.End.Lat, &c.End.Lon,
			&c.RadiusKm, &c.Active, &c.MinGroupSize, &c.MaxGroupSize, &c.BaseFare)
	if err == sql.ErrNoRows {
		return models.Corridor{}, ErrNotFound
	}
	return c, err
}

func (p *PostgresStore) SaveBooking(ctx context.Context, b *models.Booking) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO taxi_bookings(id, user_id, pickup_lat, pickup_lon, pickup_addr, dropoff_lat, dropoff_lon, dropoff_addr, corridor_id, fare, status, payment_ref, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		b.ID, b.UserID, b.Pickup.Lat, b.Pickup.Lon, b.PickupAddr,
		b.Dropoff.Lat, b.Dropoff.Lon, b.DropoffAddr,
		nullable(b.CorridorID), b.Fare, string(b.Status), nullable(b.PaymentRef), b.CreatedAt)
	return err
}

func (p *PostgresStore) PendingByCorridor(ctx context.Context, corridorID string) ([]models.Booking, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, pickup_lat, pickup_lon, pickup_addr, dropoff_lat, dropoff_lon, dropoff_addr, corridor_id, fare, status, COALESCE(payment_ref, ''), created_at
		 FROM taxi_bookings WHERE corridor_id = $1 AND status = 'pending' ORDER BY created_at ASC`, corridorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		var status string
		if err := rows.Scan(&b.ID, &b.UserID, &b.Pickup.Lat, &b.Pickup.Lon, &b.PickupAddr,
			&b.Dropoff.Lat, &b.Dropoff.Lon, &b.DropoffAddr, &b.CorridorID,
			&b.Fare, &status, &b.PaymentRef, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Status = models.BookingStatus(status)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CountPending(ctx context.Context, corridorID string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM taxi_bookings WHERE corridor_id = $1 AND status = 'pending'`, corridorID).Scan(&n)
	return n, err
}

// ClaimBooking performs the conditional status flip that serializes
// concurrent dispatch cycles: only one cycle can move a booking from
// pending to claiming.
func (p *PostgresStore) ClaimBooking(ctx context.Context, id string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE taxi_bookings SET status = 'claiming' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (p *PostgresStore) ReleaseBooking(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE taxi_bookings SET status = 'pending' WHERE id = $1 AND status = 'claiming'`, id)
	return err
}

func (p *PostgresStore) MarkGrouped(ctx context.Context, ids []string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE taxi_bookings SET status = 'grouped' WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

// SaveTrip writes the trip and its stops in one transaction so a failed
// stop insert never leaves a stopless trip behind.
func (p *PostgresStore) SaveTrip(ctx context.Context, t *models.Trip, stops []models.Stop) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO taxi_trips(id, corridor_id, status, revenue, platform_earnings, created_at)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		t.ID, t.CorridorID, string(t.Status), t.Revenue, t.PlatformEarnings, t.CreatedAt); err != nil {
		return err
	}
	for _, s := range stops {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO taxi_stops(id, trip_id, booking_id, stop_type, seq, lat, lon, address)
			 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
			s.ID, s.TripID, s.BookingID, string(s.Type), s.Seq, s.Loc.Lat, s.Loc.Lon, s.Address); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) StopsByTrip(ctx context.Context, tripID string) ([]models.Stop, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, trip_id, booking_id, stop_type, seq, lat, lon, address
		 FROM taxi_stops WHERE trip_id = $1 ORDER BY seq ASC`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Stop
	for rows.Next() {
		var s models.Stop
		var typ string
		if err := rows.Scan(&s.ID, &s.TripID, &s.BookingID, &typ, &s.Seq, &s.Loc.Lat, &s.Loc.Lon, &s.Address); err != nil {
			return nil, err
		}
		s.Type = models.StopType(typ)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveMessage(ctx context.Context, m *models.ChatMessage) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO chat_messages(id, user_id, direction, body, created_at) VALUES($1,$2,$3,$4,$5)`,
		m.ID, m.UserID, m.Direction, m.Body, m.CreatedAt)
	return err
}

func (p *PostgresStore) SaveAlert(ctx context.Context, a *models.Alert) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO alerts(id, code, message, created_at) VALUES($1,$2,$3,$4)`,
		a.ID, a.Code, a.Message, a.CreatedAt)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*MemoryStore)(nil)

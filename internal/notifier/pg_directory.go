package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGDirectory resolves entities from the platform's own tables. The notifier
// only reads them; ownership and migrations stay with the platform.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewPGDirectory creates the Postgres-backed directory.
func NewPGDirectory(pool *pgxpool.Pool) (*PGDirectory, error) {
	if pool == nil {
		return nil, ErrNilDependency
	}
	return &PGDirectory{pool: pool}, nil
}

// Directory returns the lookup bundle backed by this directory.
func (d *PGDirectory) Directory() Directory {
	return Directory{Users: d, Bookings: d, Locations: d, Messages: d}
}

// UserByID implements UserDirectory.
func (d *PGDirectory) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := d.pool.QueryRow(ctx,
		`SELECT id, email, name FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name)
	if err != nil {
		return nil, wrapLookupErr("user", err)
	}
	return &u, nil
}

// UserByEmail implements UserDirectory.
func (d *PGDirectory) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := d.pool.QueryRow(ctx,
		`SELECT id, email, name FROM users WHERE lower(email) = lower($1)`, email,
	).Scan(&u.ID, &u.Email, &u.Name)
	if err != nil {
		return nil, wrapLookupErr("user", err)
	}
	return &u, nil
}

// BookingByID implements BookingDirectory.
func (d *PGDirectory) BookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var b Booking
	err := d.pool.QueryRow(ctx,
		`SELECT id, guest_id, host_id, location_id, check_in, check_out, guest_count
		 FROM bookings WHERE id = $1`, id,
	).Scan(&b.ID, &b.GuestID, &b.HostID, &b.LocationID, &b.CheckIn, &b.CheckOut, &b.GuestCount)
	if err != nil {
		return nil, wrapLookupErr("booking", err)
	}
	return &b, nil
}

// LocationByID implements LocationDirectory.
func (d *PGDirectory) LocationByID(ctx context.Context, id uuid.UUID) (*Location, error) {
	var l Location
	err := d.pool.QueryRow(ctx,
		`SELECT id, name, city FROM locations WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name, &l.City)
	if err != nil {
		return nil, wrapLookupErr("location", err)
	}
	return &l, nil
}

// MessageByID implements MessageDirectory.
func (d *PGDirectory) MessageByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	var m Message
	err := d.pool.QueryRow(ctx,
		`SELECT id, sender_id, recipient_id, left(body, 200), created_at
		 FROM messages WHERE id = $1`, id,
	).Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Preview, &m.SentAt)
	if err != nil {
		return nil, wrapLookupErr("message", err)
	}
	return &m, nil
}

func wrapLookupErr(entity string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return fmt.Errorf("lookup %s: %w", entity, err)
}

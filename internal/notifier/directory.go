package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is the slice of the platform's user record the notifier needs.
type User struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// Booking is the slice of a booking record the notifier needs.
type Booking struct {
	ID         uuid.UUID
	GuestID    uuid.UUID
	HostID     uuid.UUID
	LocationID uuid.UUID
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
}

// Location is the slice of a location record the notifier needs.
type Location struct {
	ID   uuid.UUID
	Name string
	City string
}

// Message is the slice of a direct message record the notifier needs.
type Message struct {
	ID          uuid.UUID
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Preview     string
	SentAt      time.Time
}

// Directories resolve entity IDs to the data templates need. They are owned
// by the host application; the notifier only reads. A missing entity is
// reported with ErrNotFound and handled as a silent skip, since a notification
// about a deleted entity is not worth failing a business flow over.
type (
	UserDirectory interface {
		UserByID(ctx context.Context, id uuid.UUID) (*User, error)
		UserByEmail(ctx context.Context, email string) (*User, error)
	}

	BookingDirectory interface {
		BookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	}

	LocationDirectory interface {
		LocationByID(ctx context.Context, id uuid.UUID) (*Location, error)
	}

	MessageDirectory interface {
		MessageByID(ctx context.Context, id uuid.UUID) (*Message, error)
	}
)

// Directory bundles all entity lookups the orchestrator depends on.
type Directory struct {
	Users     UserDirectory
	Bookings  BookingDirectory
	Locations LocationDirectory
	Messages  MessageDirectory
}

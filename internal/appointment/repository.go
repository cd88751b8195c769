package appointment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("appointment not found")
	ErrDuplicateID = errors.New("appointment id already exists")
)

// Stats are the dashboard counters. Today counts records dated on the
// current calendar day regardless of status; Upcoming counts Scheduled
// records starting strictly after now.
type Stats struct {
	Total     int `json:"total"`
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	NoShow    int `json:"no_show"`
	Today     int `json:"today"`
	Upcoming  int `json:"upcoming"`
}

// Repository is the durable store of appointment records. Every write
// is durable before the call returns; every read observes the latest
// committed state. Implementations enforce id uniqueness on Create
// and return ErrDuplicateID on collision.
//
// Methods that depend on the current moment take it explicitly; the
// Service owns the clock.
type Repository interface {
	GetAll(ctx context.Context) ([]Appointment, error)

	// GetByID returns ErrNotFound when the id does not resolve.
	GetByID(ctx context.Context, id string) (*Appointment, error)

	Create(ctx context.Context, appt *Appointment) error

	// Update replaces the stored record matched by appt.ID, stamps
	// UpdatedAt, and returns the stored result, or ErrNotFound.
	Update(ctx context.Context, appt *Appointment) (*Appointment, error)

	// Delete removes the record, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	GetByStatus(ctx context.Context, status Status) ([]Appointment, error)
	GetByDate(ctx context.Context, day time.Time) ([]Appointment, error)

	// GetByDateRange is inclusive at both ends.
	GetByDateRange(ctx context.Context, start, end time.Time) ([]Appointment, error)

	// GetUpcoming returns Scheduled records starting strictly after
	// now, ascending by start.
	GetUpcoming(ctx context.Context, now time.Time) ([]Appointment, error)

	// Search matches the query case-insensitively as a substring of
	// title, client name, client email or notes.
	Search(ctx context.Context, query string) ([]Appointment, error)

	Stats(ctx context.Context, now time.Time) (Stats, error)
}

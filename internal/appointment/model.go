package appointment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
	StatusNoShow    Status = "No Show"
)

// AllStatuses is the closed set of lifecycle labels.
var AllStatuses = []Status{StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// TimeOfDay is a clock time with minute precision, the resolution the
// "HH:MM" wire format carries. Stored as minutes since midnight so
// values compare with plain < and >.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (24-hour clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On anchors the clock time to a calendar day in that day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DateOnly truncates a timestamp to midnight of its calendar day,
// keeping the location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// Appointment is a single appointment record. Once persisted the
// record is owned by the Repository; ID never changes.
type Appointment struct {
	ID          string
	Title       string
	ClientName  string
	ClientEmail string
	ClientPhone string
	Date        time.Time // calendar date, midnight local
	StartTime   TimeOfDay
	EndTime     TimeOfDay
	Status      Status
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a *Appointment) StartDateTime() time.Time { return a.StartTime.On(a.Date) }
func (a *Appointment) EndDateTime() time.Time   { return a.EndTime.On(a.Date) }

// DurationMinutes is well-defined only when EndTime is after StartTime.
func (a *Appointment) DurationMinutes() int {
	return int(a.EndTime - a.StartTime)
}

func (a *Appointment) IsUpcoming(now time.Time) bool {
	return a.Status == StatusScheduled && a.StartDateTime().After(now)
}

func (a *Appointment) IsPast(now time.Time) bool {
	return a.StartDateTime().Before(now)
}

// NewID returns the id policy used for persisted records: the first
// eight hex characters of a random UUID, uppercased.
func NewID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// record is the serialization shape every storage backend round-trips.
type record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ClientPhone string `json:"client_phone"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func (a Appointment) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{
		ID:          a.ID,
		Title:       a.Title,
		ClientName:  a.ClientName,
		ClientEmail: a.ClientEmail,
		ClientPhone: a.ClientPhone,
		Date:        a.Date.Format(dateLayout),
		StartTime:   a.StartTime.String(),
		EndTime:     a.EndTime.String(),
		Status:      string(a.Status),
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt.Format(timestampLayout),
		UpdatedAt:   a.UpdatedAt.Format(timestampLayout),
	})
}

func (a *Appointment) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}

	day, err := time.ParseInLocation(dateLayout, r.Date, time.Local)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", r.Date, err)
	}
	start, err := ParseTimeOfDay(r.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseTimeOfDay(r.EndTime)
	if err != nil {
		return err
	}
	createdAt, err := time.Parse(timestampLayout, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("parse created_at %q: %w", r.CreatedAt, err)
	}
	updatedAt, err := time.Parse(timestampLayout, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("parse updated_at %q: %w", r.UpdatedAt, err)
	}

	a.ID = r.ID
	a.Title = r.Title
	a.ClientName = r.ClientName
	a.ClientEmail = r.ClientEmail
	a.ClientPhone = r.ClientPhone
	a.Date = day
	a.StartTime = start
	a.EndTime = end
	a.Status = Status(r.Status)
	a.Notes = r.Notes
	a.CreatedAt = createdAt
	a.UpdatedAt = updatedAt
	return nil
}

package appointment

import (
	"fmt"
	"strings"
	"time"
)

// MinDurationMinutes is the duration floor enforced at write time.
const MinDurationMinutes = 15

// Params carries the writable fields of an appointment, the unit of
// input for Create and Update.
type Params struct {
	Title       string
	ClientName  string
	ClientEmail string
	ClientPhone string
	Date        time.Time
	StartTime   TimeOfDay
	EndTime     TimeOfDay
	Status      Status
	Notes       string
}

// Validate checks field-level and cross-field rules and returns all
// applicable error messages together. It never short-circuits: an
// empty title does not hide a bad time window. An empty slice means
// the input is valid.
//
// The email rule is intentionally weak (an "@" with a dot somewhere
// after the last "@") and must stay that way for behavioral
// compatibility with existing records.
func Validate(p Params) []string {
	var errs []string

	if strings.TrimSpace(p.Title) == "" {
		errs = append(errs, "Title is required.")
	}
	if strings.TrimSpace(p.ClientName) == "" {
		errs = append(errs, "Client name is required.")
	}
	if strings.TrimSpace(p.ClientEmail) == "" {
		errs = append(errs, "Client email is required.")
	} else if !weakEmailOK(p.ClientEmail) {
		errs = append(errs, "Please enter a valid email address.")
	}
	if strings.TrimSpace(p.ClientPhone) == "" {
		errs = append(errs, "Client phone is required.")
	}
	if !p.Status.Valid() {
		errs = append(errs, fmt.Sprintf("Invalid status: %s", p.Status))
	}

	if p.EndTime <= p.StartTime {
		errs = append(errs, "End time must be after start time.")
	}
	if int(p.EndTime-p.StartTime) < MinDurationMinutes {
		errs = append(errs, fmt.Sprintf("Appointment must be at least %d minutes long.", MinDurationMinutes))
	}

	return errs
}

func weakEmailOK(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	return strings.Contains(email[at+1:], ".")
}

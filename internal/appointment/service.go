package appointment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	redisclient "github.com/apptbook/apptbook/internal/redis"
)

// ValidationError carries every rule violation found in one pass, so
// the caller can surface them together.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// ConflictError reports a scheduling overlap with an existing
// non-cancelled appointment on the same day.
type ConflictError struct {
	With *Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Time conflict with appointment '%s' (%s - %s).",
		e.With.Title, e.With.StartTime, e.With.EndTime)
}

// SortKey selects the ordering ListAll applies.
type SortKey int

const (
	SortByDate SortKey = iota
	SortByClientName
	SortByStatus
	SortByTitle
)

// ParseSortKey maps the wire string to a SortKey; anything
// unrecognized falls back to date ordering.
func ParseSortKey(s string) SortKey {
	switch s {
	case "client_name":
		return SortByClientName
	case "status":
		return SortByStatus
	case "title":
		return SortByTitle
	default:
		return SortByDate
	}
}

// Service is the single authority for appointment writes: it runs
// validation and conflict detection before touching the Repository.
// Reads pass through.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		now:    time.Now,
	}
}

// Create validates the fields, checks the requested window against all
// non-cancelled appointments on the same day, then persists. The
// conflict check and the write run inside the day lock so two writers
// cannot both pass the check before either persists.
func (s *Service) Create(ctx context.Context, p Params) (*Appointment, error) {
	if p.Status == "" {
		p.Status = StatusScheduled
	}
	if errs := Validate(p); len(errs) > 0 {
		return nil, &ValidationError{Messages: errs}
	}

	day := DateOnly(p.Date)
	var created *Appointment

	err := s.locker.WithDayLock(ctx, day, func(lockCtx context.Context) error {
		conflict, err := s.findConflict(lockCtx, day, p.StartTime, p.EndTime, "")
		if err != nil {
			return fmt.Errorf("check conflicts: %w", err)
		}
		if conflict != nil {
			return &ConflictError{With: conflict}
		}

		now := s.now()
		appt := &Appointment{
			ID:          NewID(),
			Title:       p.Title,
			ClientName:  p.ClientName,
			ClientEmail: p.ClientEmail,
			ClientPhone: p.ClientPhone,
			Date:        day,
			StartTime:   p.StartTime,
			EndTime:     p.EndTime,
			Status:      p.Status,
			Notes:       p.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := s.repo.Create(lockCtx, appt); err != nil {
			// Eight hex characters leave a tiny collision window;
			// one fresh id settles it.
			if errors.Is(err, ErrDuplicateID) {
				appt.ID = NewID()
				err = s.repo.Create(lockCtx, appt)
			}
			if err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}
		}

		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces every mutable field of an existing appointment after
// the same validation and conflict sequence as Create, with the record
// itself excluded from the conflict scan.
func (s *Service) Update(ctx context.Context, id string, p Params) (*Appointment, error) {
	if errs := Validate(p); len(errs) > 0 {
		return nil, &ValidationError{Messages: errs}
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	day := DateOnly(p.Date)
	var updated *Appointment

	err = s.locker.WithDayLock(ctx, day, func(lockCtx context.Context) error {
		conflict, err := s.findConflict(lockCtx, day, p.StartTime, p.EndTime, id)
		if err != nil {
			return fmt.Errorf("check conflicts: %w", err)
		}
		if conflict != nil {
			return &ConflictError{With: conflict}
		}

		existing.Title = p.Title
		existing.ClientName = p.ClientName
		existing.ClientEmail = p.ClientEmail
		existing.ClientPhone = p.ClientPhone
		existing.Date = day
		existing.StartTime = p.StartTime
		existing.EndTime = p.EndTime
		existing.Status = p.Status
		existing.Notes = p.Notes

		updated, err = s.repo.Update(lockCtx, existing)
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// UpdateStatus changes only the lifecycle label. Status-only changes
// skip time and conflict re-validation.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, &ValidationError{Messages: []string{fmt.Sprintf("Invalid status: %s", status)}}
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	appt.Status = status
	updated, err := s.repo.Update(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	return updated, nil
}

// ListAll returns every appointment ordered by the given key.
func (s *Service) ListAll(ctx context.Context, key SortKey) ([]Appointment, error) {
	appts, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	less := func(i, j int) bool {
		a, b := &appts[i], &appts[j]
		if !sameDay(a.Date, b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.StartTime < b.StartTime
	}
	switch key {
	case SortByClientName:
		less = func(i, j int) bool {
			return strings.ToLower(appts[i].ClientName) < strings.ToLower(appts[j].ClientName)
		}
	case SortByStatus:
		less = func(i, j int) bool { return appts[i].Status < appts[j].Status }
	case SortByTitle:
		less = func(i, j int) bool {
			return strings.ToLower(appts[i].Title) < strings.ToLower(appts[j].Title)
		}
	}
	sort.SliceStable(appts, less)
	return appts, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Upcoming(ctx context.Context) ([]Appointment, error) {
	return s.repo.GetUpcoming(ctx, s.now())
}

func (s *Service) Today(ctx context.Context) ([]Appointment, error) {
	return s.repo.GetByDate(ctx, DateOnly(s.now()))
}

// Search routes a blank query to the unfiltered date-ordered listing.
func (s *Service) Search(ctx context.Context, query string) ([]Appointment, error) {
	if strings.TrimSpace(query) == "" {
		return s.ListAll(ctx, SortByDate)
	}
	return s.repo.Search(ctx, query)
}

func (s *Service) FilterByStatus(ctx context.Context, status Status) ([]Appointment, error) {
	return s.repo.GetByStatus(ctx, status)
}

func (s *Service) FilterByDateRange(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	return s.repo.GetByDateRange(ctx, start, end)
}

func (s *Service) DashboardStats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx, s.now())
}

// MarkOverdueNoShows flips Scheduled appointments whose end passed
// more than grace ago to No Show. Called periodically by the worker;
// individual failures are logged and skipped so one bad record does
// not stall the sweep.
func (s *Service) MarkOverdueNoShows(ctx context.Context, grace time.Duration) (int, error) {
	scheduled, err := s.repo.GetByStatus(ctx, StatusScheduled)
	if err != nil {
		return 0, fmt.Errorf("load scheduled appointments: %w", err)
	}

	cutoff := s.now().Add(-grace)
	marked := 0
	for i := range scheduled {
		a := &scheduled[i]
		if !a.EndDateTime().Before(cutoff) {
			continue
		}
		a.Status = StatusNoShow
		if _, err := s.repo.Update(ctx, a); err != nil {
			log.Printf("failed to mark appointment %s as no-show: %v", a.ID, err)
			continue
		}
		marked++
	}
	return marked, nil
}

// findConflict returns a non-cancelled appointment on the same day
// whose half-open interval overlaps the candidate window, or nil.
// Back-to-back windows, where one end equals the other start, do not
// overlap.
func (s *Service) findConflict(ctx context.Context, day time.Time, start, end TimeOfDay, excludeID string) (*Appointment, error) {
	sameDayAppts, err := s.repo.GetByDate(ctx, day)
	if err != nil {
		return nil, err
	}
	for i := range sameDayAppts {
		existing := &sameDayAppts[i]
		if excludeID != "" && existing.ID == excludeID {
			continue
		}
		if existing.Status == StatusCancelled {
			continue
		}
		if start < existing.EndTime && end > existing.StartTime {
			return existing, nil
		}
	}
	return nil, nil
}

package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// JSONFileRepository keeps the whole collection in a single JSON file
// and rereads/rewrites it on every operation. O(n) per call, which is
// fine at single-user scale; writes are atomic (temp file + rename) so
// readers never observe a partial file.
type JSONFileRepository struct {
	path string
}

func NewJSONFileRepository(path string) (*JSONFileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	r := &JSONFileRepository{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := r.write([]Appointment{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat data file: %w", err)
	}
	return r, nil
}

func (r *JSONFileRepository) read() ([]Appointment, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	var appts []Appointment
	if err := json.Unmarshal(data, &appts); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}
	return appts, nil
}

func (r *JSONFileRepository) write(appts []Appointment) error {
	data, err := json.MarshalIndent(appts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".appointments-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

func (r *JSONFileRepository) GetAll(ctx context.Context) ([]Appointment, error) {
	return r.read()
}

func (r *JSONFileRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	appts, err := r.read()
	if err != nil {
		return nil, err
	}
	for i := range appts {
		if appts[i].ID == id {
			return &appts[i], nil
		}
	}
	return nil, ErrNotFound
}

func (r *JSONFileRepository) Create(ctx context.Context, appt *Appointment) error {
	appts, err := r.read()
	if err != nil {
		return err
	}
	for i := range appts {
		if appts[i].ID == appt.ID {
			return ErrDuplicateID
		}
	}
	appts = append(appts, *appt)
	return r.write(appts)
}

func (r *JSONFileRepository) Update(ctx context.Context, appt *Appointment) (*Appointment, error) {
	appts, err := r.read()
	if err != nil {
		return nil, err
	}
	for i := range appts {
		if appts[i].ID == appt.ID {
			updated := *appt
			updated.UpdatedAt = time.Now()
			appts[i] = updated
			if err := r.write(appts); err != nil {
				return nil, err
			}
			return &updated, nil
		}
	}
	return nil, ErrNotFound
}

func (r *JSONFileRepository) Delete(ctx context.Context, id string) error {
	appts, err := r.read()
	if err != nil {
		return err
	}
	kept := appts[:0]
	for _, a := range appts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(appts) {
		return ErrNotFound
	}
	return r.write(kept)
}

func (r *JSONFileRepository) GetByStatus(ctx context.Context, status Status) ([]Appointment, error) {
	return r.filter(func(a *Appointment) bool { return a.Status == status })
}

func (r *JSONFileRepository) GetByDate(ctx context.Context, day time.Time) ([]Appointment, error) {
	return r.filter(func(a *Appointment) bool { return sameDay(a.Date, day) })
}

func (r *JSONFileRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	lo, hi := DateOnly(start), DateOnly(end)
	return r.filter(func(a *Appointment) bool {
		d := DateOnly(a.Date)
		return !d.Before(lo) && !d.After(hi)
	})
}

func (r *JSONFileRepository) GetUpcoming(ctx context.Context, now time.Time) ([]Appointment, error) {
	upcoming, err := r.filter(func(a *Appointment) bool { return a.IsUpcoming(now) })
	if err != nil {
		return nil, err
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].StartDateTime().Before(upcoming[j].StartDateTime())
	})
	return upcoming, nil
}

func (r *JSONFileRepository) Search(ctx context.Context, query string) ([]Appointment, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return r.filter(func(a *Appointment) bool {
		return strings.Contains(strings.ToLower(a.Title), q) ||
			strings.Contains(strings.ToLower(a.ClientName), q) ||
			strings.Contains(strings.ToLower(a.ClientEmail), q) ||
			strings.Contains(strings.ToLower(a.Notes), q)
	})
}

func (r *JSONFileRepository) Stats(ctx context.Context, now time.Time) (Stats, error) {
	appts, err := r.read()
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	s.Total = len(appts)
	for i := range appts {
		a := &appts[i]
		switch a.Status {
		case StatusScheduled:
			s.Scheduled++
		case StatusCompleted:
			s.Completed++
		case StatusCancelled:
			s.Cancelled++
		case StatusNoShow:
			s.NoShow++
		}
		if sameDay(a.Date, now) {
			s.Today++
		}
		if a.IsUpcoming(now) {
			s.Upcoming++
		}
	}
	return s, nil
}

func (r *JSONFileRepository) filter(keep func(*Appointment) bool) ([]Appointment, error) {
	appts, err := r.read()
	if err != nil {
		return nil, err
	}
	var out []Appointment
	for i := range appts {
		if keep(&appts[i]) {
			out = append(out, appts[i])
		}
	}
	return out, nil
}

package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository stores appointments in Postgres. Times of day are kept
// as zero-padded "HH:MM" text, which sorts correctly and casts to the
// time type when combined with the date column.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const apptColumns = `id, title, client_name, client_email, client_phone,
	date, start_time, end_time, status, notes, created_at, updated_at`

// EnsureSchema creates the appointments table when it does not exist.
func (r *PgRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS appointments (
			id           text PRIMARY KEY,
			title        text NOT NULL,
			client_name  text NOT NULL,
			client_email text NOT NULL,
			client_phone text NOT NULL,
			date         date NOT NULL,
			start_time   text NOT NULL,
			end_time     text NOT NULL,
			status       text NOT NULL,
			notes        text NOT NULL DEFAULT '',
			created_at   timestamptz NOT NULL,
			updated_at   timestamptz NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure appointments schema: %w", err)
	}
	return nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var day time.Time
	var start, end, status string

	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.ClientName,
		&a.ClientEmail,
		&a.ClientPhone,
		&day,
		&start,
		&end,
		&status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.Date = DateOnly(day.In(time.Local))
	if a.StartTime, err = ParseTimeOfDay(start); err != nil {
		return nil, err
	}
	if a.EndTime, err = ParseTimeOfDay(end); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func (r *PgRepository) queryMany(ctx context.Context, sql string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetAll(ctx context.Context) ([]Appointment, error) {
	return r.queryMany(ctx, `SELECT `+apptColumns+` FROM appointments`)
}

func (r *PgRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Create(ctx context.Context, appt *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (`+apptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		appt.ID, appt.Title, appt.ClientName, appt.ClientEmail, appt.ClientPhone,
		appt.Date, appt.StartTime.String(), appt.EndTime.String(),
		string(appt.Status), appt.Notes, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) Update(ctx context.Context, appt *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET title = $2,
		    client_name = $3,
		    client_email = $4,
		    client_phone = $5,
		    date = $6,
		    start_time = $7,
		    end_time = $8,
		    status = $9,
		    notes = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+apptColumns,
		appt.ID, appt.Title, appt.ClientName, appt.ClientEmail, appt.ClientPhone,
		appt.Date, appt.StartTime.String(), appt.EndTime.String(),
		string(appt.Status), appt.Notes,
	)
	return scanAppointment(row)
}

func (r *PgRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) GetByStatus(ctx context.Context, status Status) ([]Appointment, error) {
	return r.queryMany(ctx, `
		SELECT `+apptColumns+` FROM appointments WHERE status = $1
	`, string(status))
}

func (r *PgRepository) GetByDate(ctx context.Context, day time.Time) ([]Appointment, error) {
	return r.queryMany(ctx, `
		SELECT `+apptColumns+` FROM appointments WHERE date = $1
	`, DateOnly(day))
}

func (r *PgRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	return r.queryMany(ctx, `
		SELECT `+apptColumns+` FROM appointments WHERE date BETWEEN $1 AND $2
	`, DateOnly(start), DateOnly(end))
}

func (r *PgRepository) GetUpcoming(ctx context.Context, now time.Time) ([]Appointment, error) {
	return r.queryMany(ctx, `
		SELECT `+apptColumns+` FROM appointments
		WHERE status = $1
		  AND date + start_time::time > $2::timestamp
		ORDER BY date, start_time
	`, string(StatusScheduled), now)
}

func (r *PgRepository) Search(ctx context.Context, query string) ([]Appointment, error) {
	return r.queryMany(ctx, `
		SELECT `+apptColumns+` FROM appointments
		WHERE title ILIKE '%' || $1 || '%'
		   OR client_name ILIKE '%' || $1 || '%'
		   OR client_email ILIKE '%' || $1 || '%'
		   OR notes ILIKE '%' || $1 || '%'
	`, query)
}

func (r *PgRepository) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = $1),
			count(*) FILTER (WHERE status = $2),
			count(*) FILTER (WHERE status = $3),
			count(*) FILTER (WHERE status = $4),
			count(*) FILTER (WHERE date = $5),
			count(*) FILTER (WHERE status = $1 AND date + start_time::time > $6::timestamp)
		FROM appointments
	`,
		string(StatusScheduled), string(StatusCompleted), string(StatusCancelled), string(StatusNoShow),
		DateOnly(now), now,
	).Scan(&s.Total, &s.Scheduled, &s.Completed, &s.Cancelled, &s.NoShow, &s.Today, &s.Upcoming)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate stats: %w", err)
	}
	return s, nil
}

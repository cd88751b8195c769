package appointment

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	redisclient "github.com/apptbook/apptbook/internal/redis"
)

var testNow = time.Date(2025, 5, 15, 12, 0, 0, 0, time.Local)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := NewJSONFileRepository(filepath.Join(t.TempDir(), "appointments.json"))
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	svc := NewService(repo, redisclient.NewLocalLocker())
	svc.now = func() time.Time { return testNow }
	return svc
}

func serviceParams() Params {
	return Params{
		Title:       "Annual Physical Exam",
		ClientName:  "Alice Johnson",
		ClientEmail: "alice@example.com",
		ClientPhone: "+1 555 100 2001",
		Date:        day(2025, 6, 1),
		StartTime:   NewTimeOfDay(9, 0),
		EndTime:     NewTimeOfDay(10, 0),
		Status:      StatusScheduled,
	}
}

func TestService_Create(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, serviceParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(appt.ID) != 8 {
		t.Fatalf("expected generated 8-char id, got %q", appt.ID)
	}
	if !appt.CreatedAt.Equal(testNow) || !appt.UpdatedAt.Equal(testNow) {
		t.Fatalf("expected timestamps stamped to now, got %s / %s", appt.CreatedAt, appt.UpdatedAt)
	}

	stored, err := svc.GetByID(ctx, appt.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if stored.Title != "Annual Physical Exam" {
		t.Fatalf("unexpected stored record: %+v", stored)
	}
}

func TestService_Create_DefaultsToScheduled(t *testing.T) {
	svc := newTestService(t)

	p := serviceParams()
	p.Status = ""
	appt, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if appt.Status != StatusScheduled {
		t.Fatalf("expected Scheduled default, got %s", appt.Status)
	}
}

func TestService_Create_ValidationErrors(t *testing.T) {
	svc := newTestService(t)

	p := serviceParams()
	p.Title = ""
	p.ClientEmail = "not-an-email"

	_, err := svc.Create(context.Background(), p)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	assertHasError(t, vErr.Messages, "Title is required.")
	assertHasError(t, vErr.Messages, "Please enter a valid email address.")
}

func TestService_Create_Conflict(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, serviceParams()); err != nil {
		t.Fatalf("first create: %v", err)
	}

	second := serviceParams()
	second.Title = "Overlapping"
	second.StartTime = NewTimeOfDay(9, 30)
	second.EndTime = NewTimeOfDay(9, 45)

	_, err := svc.Create(ctx, second)
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if cErr.With.Title != "Annual Physical Exam" {
		t.Fatalf("conflict should name the existing appointment, got %q", cErr.With.Title)
	}
	if !strings.Contains(cErr.Error(), "Annual Physical Exam") ||
		!strings.Contains(cErr.Error(), "09:00") {
		t.Fatalf("conflict message should carry title and window: %q", cErr.Error())
	}
}

func TestService_Create_BackToBackNeverConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, serviceParams()); err != nil {
		t.Fatalf("first create: %v", err)
	}

	next := serviceParams()
	next.Title = "Right after"
	next.StartTime = NewTimeOfDay(10, 0)
	next.EndTime = NewTimeOfDay(11, 0)
	if _, err := svc.Create(ctx, next); err != nil {
		t.Fatalf("back-to-back create should succeed: %v", err)
	}

	prev := serviceParams()
	prev.Title = "Right before"
	prev.StartTime = NewTimeOfDay(8, 0)
	prev.EndTime = NewTimeOfDay(9, 0)
	if _, err := svc.Create(ctx, prev); err != nil {
		t.Fatalf("adjacent earlier create should succeed: %v", err)
	}
}

func TestService_Create_IgnoresCancelledAndOtherDays(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, serviceParams())
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, first.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Same window, same day, but the existing record is cancelled.
	again := serviceParams()
	again.Title = "Replacement"
	if _, err := svc.Create(ctx, again); err != nil {
		t.Fatalf("create over cancelled slot should succeed: %v", err)
	}

	// Same window on another day never conflicts.
	otherDay := serviceParams()
	otherDay.Title = "Next day"
	otherDay.Date = day(2025, 6, 2)
	if _, err := svc.Create(ctx, otherDay); err != nil {
		t.Fatalf("create on another day should succeed: %v", err)
	}
}

func TestService_Update(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, serviceParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Shifting within a window that overlaps itself must not
	// self-conflict.
	p := serviceParams()
	p.Title = "Moved earlier"
	p.StartTime = NewTimeOfDay(9, 15)
	p.EndTime = NewTimeOfDay(10, 15)

	updated, err := svc.Update(ctx, appt.ID, p)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != appt.ID {
		t.Fatalf("id must be immutable, got %q", updated.ID)
	}
	if updated.Title != "Moved earlier" || updated.StartTime != NewTimeOfDay(9, 15) {
		t.Fatalf("unexpected updated record: %+v", updated)
	}
}

func TestService_Update_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Update(context.Background(), "MISSING1", serviceParams())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Update_ConflictWithOther(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, serviceParams()); err != nil {
		t.Fatalf("first create: %v", err)
	}

	other := serviceParams()
	other.Title = "Afternoon"
	other.StartTime = NewTimeOfDay(14, 0)
	other.EndTime = NewTimeOfDay(15, 0)
	created, err := svc.Create(ctx, other)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	// Move the afternoon appointment onto the morning one.
	moved := other
	moved.StartTime = NewTimeOfDay(9, 30)
	moved.EndTime = NewTimeOfDay(10, 30)
	_, err = svc.Update(ctx, created.ID, moved)
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, serviceParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, appt.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetByID(ctx, appt.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
	if err := svc.Delete(ctx, appt.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestService_UpdateStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, serviceParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, appt.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Fatalf("expected Completed, got %s", updated.Status)
	}
	if !updated.UpdatedAt.After(appt.UpdatedAt) {
		t.Fatal("expected UpdatedAt to advance")
	}

	stored, err := svc.GetByID(ctx, appt.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if stored.Status != StatusCompleted {
		t.Fatalf("expected persisted status change, got %s", stored.Status)
	}
	if stored.Title != appt.Title || stored.StartTime != appt.StartTime {
		t.Fatal("status change must leave other fields untouched")
	}
}

func TestService_UpdateStatus_Invalid(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, serviceParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.UpdateStatus(ctx, appt.ID, Status("Archived"))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, "MISSING1", StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ListAll_SortKeys(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	add := func(title, client string, d time.Time, start TimeOfDay) {
		t.Helper()
		p := serviceParams()
		p.Title = title
		p.ClientName = client
		p.Date = d
		p.StartTime = start
		p.EndTime = start + 30
		if _, err := svc.Create(ctx, p); err != nil {
			t.Fatalf("create %q: %v", title, err)
		}
	}

	add("banana", "Zoe", day(2025, 6, 2), NewTimeOfDay(9, 0))
	add("Apple", "carol", day(2025, 6, 1), NewTimeOfDay(14, 0))
	add("cherry", "Bob", day(2025, 6, 1), NewTimeOfDay(9, 0))

	byDate, err := svc.ListAll(ctx, SortByDate)
	if err != nil {
		t.Fatalf("list by date: %v", err)
	}
	if byDate[0].Title != "cherry" || byDate[1].Title != "Apple" || byDate[2].Title != "banana" {
		t.Fatalf("unexpected date order: %v", titles(byDate))
	}

	byName, err := svc.ListAll(ctx, SortByClientName)
	if err != nil {
		t.Fatalf("list by client: %v", err)
	}
	if byName[0].ClientName != "Bob" || byName[1].ClientName != "carol" || byName[2].ClientName != "Zoe" {
		t.Fatalf("client sort should be case-insensitive: %+v", byName)
	}

	byTitle, err := svc.ListAll(ctx, SortByTitle)
	if err != nil {
		t.Fatalf("list by title: %v", err)
	}
	if byTitle[0].Title != "Apple" || byTitle[1].Title != "banana" || byTitle[2].Title != "cherry" {
		t.Fatalf("title sort should be case-insensitive: %v", titles(byTitle))
	}

	// Unrecognized sort key falls back to date ordering.
	fallback, err := svc.ListAll(ctx, ParseSortKey("nonsense"))
	if err != nil {
		t.Fatalf("list fallback: %v", err)
	}
	if fallback[0].Title != "cherry" {
		t.Fatalf("expected date fallback, got %v", titles(fallback))
	}
}

func TestService_Search_BlankQueryListsAll(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, serviceParams()); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := svc.Search(ctx, "   ")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("blank query should list everything, got %d", len(all))
	}
}

func TestService_StatsTotalTracksCollection(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, serviceParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second := serviceParams()
	second.Date = day(2025, 6, 2)
	if _, err := svc.Create(ctx, second); err != nil {
		t.Fatalf("second create: %v", err)
	}

	stats, err := svc.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	all, err := svc.ListAll(ctx, SortByDate)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if stats.Total != len(all) {
		t.Fatalf("total %d should equal collection size %d", stats.Total, len(all))
	}

	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	stats, err = svc.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("stats after delete: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("expected total 1 after delete, got %d", stats.Total)
	}
}

func TestService_UpcomingAndToday(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// testNow is 2025-05-15 12:00.
	todayLater := serviceParams()
	todayLater.Title = "Today later"
	todayLater.Date = day(2025, 5, 15)
	todayLater.StartTime = NewTimeOfDay(15, 0)
	todayLater.EndTime = NewTimeOfDay(16, 0)
	if _, err := svc.Create(ctx, todayLater); err != nil {
		t.Fatalf("create: %v", err)
	}

	future := serviceParams()
	future.Title = "Future"
	if _, err := svc.Create(ctx, future); err != nil {
		t.Fatalf("create: %v", err)
	}

	today, err := svc.Today(ctx)
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if len(today) != 1 || today[0].Title != "Today later" {
		t.Fatalf("unexpected today listing: %v", titles(today))
	}

	upcoming, err := svc.Upcoming(ctx)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(upcoming) != 2 || upcoming[0].Title != "Today later" {
		t.Fatalf("unexpected upcoming listing: %v", titles(upcoming))
	}
}

func TestService_MarkOverdueNoShows(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	overdue := serviceParams()
	overdue.Title = "Missed"
	overdue.Date = day(2025, 5, 14) // ended well before testNow
	if _, err := svc.Create(ctx, overdue); err != nil {
		t.Fatalf("create: %v", err)
	}

	future := serviceParams()
	future.Title = "Still coming"
	if _, err := svc.Create(ctx, future); err != nil {
		t.Fatalf("create: %v", err)
	}

	marked, err := svc.MarkOverdueNoShows(ctx, time.Hour)
	if err != nil {
		t.Fatalf("mark overdue: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected 1 marked, got %d", marked)
	}

	noShows, err := svc.FilterByStatus(ctx, StatusNoShow)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(noShows) != 1 || noShows[0].Title != "Missed" {
		t.Fatalf("unexpected no-shows: %v", titles(noShows))
	}

	scheduled, err := svc.FilterByStatus(ctx, StatusScheduled)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(scheduled) != 1 || scheduled[0].Title != "Still coming" {
		t.Fatalf("future appointment must stay scheduled: %v", titles(scheduled))
	}
}

func titles(appts []Appointment) []string {
	out := make([]string, len(appts))
	for i, a := range appts {
		out[i] = a.Title
	}
	return out
}

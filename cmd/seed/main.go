package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/apptbook/apptbook/internal/appointment"
	"github.com/apptbook/apptbook/internal/config"
	"github.com/apptbook/apptbook/internal/db"
	redisclient "github.com/apptbook/apptbook/internal/redis"
)

const seedCount = 25

var seedTitles = []string{
	"Annual Physical Exam",
	"Product Strategy Review",
	"Tax Consultation",
	"Dental Cleaning",
	"Portfolio Review",
	"Career Coaching Session",
	"Legal Consultation",
	"Follow-up Checkup",
	"Kickoff Meeting",
	"Design Walkthrough",
}

// The seeder creates demo records through the Service so everything it
// writes obeys the same validation and conflict rules as user input.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo appointment.Repository
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()

		pgRepo := appointment.NewPgRepository(pool)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			log.Fatalf("schema error: %v", err)
		}
		repo = pgRepo
	default:
		fileRepo, err := appointment.NewJSONFileRepository(cfg.DataFile)
		if err != nil {
			log.Fatalf("data file error: %v", err)
		}
		repo = fileRepo
	}

	svc := appointment.NewService(repo, redisclient.NewLocalLocker())

	gofakeit.Seed(time.Now().UnixNano())

	created := 0
	skipped := 0
	for i := 0; i < seedCount; i++ {
		params := randomParams()

		if _, err := svc.Create(ctx, params); err != nil {
			var cErr *appointment.ConflictError
			if errors.As(err, &cErr) {
				// Random windows collide now and then; just move on.
				skipped++
				continue
			}
			log.Fatalf("seed create: %v", err)
		}
		created++
	}

	log.Printf("seed complete created=%d skipped_conflicts=%d", created, skipped)
}

func randomParams() appointment.Params {
	// Days spread around today: a week back through two weeks out.
	dayOffset := gofakeit.Number(-7, 14)
	day := appointment.DateOnly(time.Now().AddDate(0, 0, dayOffset))

	// Start on a 15-minute grid between 08:00 and 16:45, 15 to 120
	// minutes long.
	start := appointment.NewTimeOfDay(gofakeit.Number(8, 16), 15*gofakeit.Number(0, 3))
	end := start + appointment.TimeOfDay(15*gofakeit.Number(1, 8))

	status := appointment.StatusScheduled
	if dayOffset < 0 {
		past := []appointment.Status{
			appointment.StatusCompleted,
			appointment.StatusCompleted,
			appointment.StatusCancelled,
			appointment.StatusNoShow,
		}
		status = past[gofakeit.Number(0, len(past)-1)]
	}

	return appointment.Params{
		Title:       seedTitles[gofakeit.Number(0, len(seedTitles)-1)],
		ClientName:  gofakeit.Name(),
		ClientEmail: gofakeit.Email(),
		ClientPhone: gofakeit.Phone(),
		Date:        day,
		StartTime:   start,
		EndTime:     end,
		Status:      status,
		Notes:       gofakeit.Sentence(8),
	}
}

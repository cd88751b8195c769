package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/apptbook/apptbook/internal/appointment"
	"github.com/apptbook/apptbook/internal/config"
	"github.com/apptbook/apptbook/internal/db"
	redisclient "github.com/apptbook/apptbook/internal/redis"
)

// The no-show worker sweeps Scheduled appointments whose end time
// passed more than the grace period ago and marks them No Show, the
// bookkeeping a receptionist would otherwise do by hand.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("noshow-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running no-show worker in env=%s interval=%s grace=%s", cfg.Env, cfg.WorkerInterval, cfg.NoShowGrace)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo appointment.Repository
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatalf("postgres connection error: %v", err)
		}
		defer pgPool.Close()
		log.Println("connected to Postgres")
		repo = appointment.NewPgRepository(pgPool)
	default:
		fileRepo, err := appointment.NewJSONFileRepository(cfg.DataFile)
		if err != nil {
			log.Fatalf("data file error: %v", err)
		}
		repo = fileRepo
	}

	svc := appointment.NewService(repo, redisclient.NewLocalLocker())

	// Run once at startup
	runOnce(rootCtx, svc, cfg.NoShowGrace)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping no-show worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.NoShowGrace)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, grace time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	marked, err := svc.MarkOverdueNoShows(runCtx, grace)
	if err != nil {
		log.Printf("no-show sweep error: %v", err)
		return
	}
	log.Printf("no-show sweep complete marked=%d in %s", marked, time.Since(start))
}

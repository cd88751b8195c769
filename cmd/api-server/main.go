package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/apptbook/apptbook/internal/api"
	"github.com/apptbook/apptbook/internal/appointment"
	"github.com/apptbook/apptbook/internal/config"
	"github.com/apptbook/apptbook/internal/db"
	redisclient "github.com/apptbook/apptbook/internal/redis"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s backend=%s", cfg.Env, cfg.HTTPPort, cfg.StorageBackend)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo   appointment.Repository
		pgPool *pgxpool.Pool
	)
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatalf("postgres connection error: %v", err)
		}
		defer pgPool.Close()
		log.Println("connected to Postgres")

		pgRepo := appointment.NewPgRepository(pgPool)
		if err := pgRepo.EnsureSchema(rootCtx); err != nil {
			log.Fatalf("schema error: %v", err)
		}
		repo = pgRepo
	default:
		fileRepo, err := appointment.NewJSONFileRepository(cfg.DataFile)
		if err != nil {
			log.Fatalf("data file error: %v", err)
		}
		log.Printf("using flat-file store at %s", cfg.DataFile)
		repo = fileRepo
	}

	// Without a configured Redis the day lock is an in-process mutex,
	// which is all a single-process deployment needs.
	var rdb *redis.Client
	locker := redisclient.NewLocalLocker()
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("redis connection error: %v", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Printf("error closing redis: %v", err)
			}
		}()
		locker = redisclient.NewRedisDayLocker(rdb, cfg.LockTTL)
		log.Println("connected to Redis, day locks are distributed")
	}

	svc := appointment.NewService(repo, locker)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Backend: cfg.StorageBackend,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	case <-rootCtx.Done():
		log.Println("shutting down api-server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}

	log.Println("api-server stopped")
}

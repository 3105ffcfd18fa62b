package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/batchpix/batchpix/internal/api/handlers/task"
	"github.com/batchpix/batchpix/internal/api/router"
	"github.com/batchpix/batchpix/internal/api/server"
	"github.com/batchpix/batchpix/internal/config"
	"github.com/batchpix/batchpix/internal/coordinator"
	"github.com/batchpix/batchpix/internal/effect"
	"github.com/batchpix/batchpix/internal/event"
	"github.com/batchpix/batchpix/internal/imagepool"
	"github.com/batchpix/batchpix/internal/infra/kafka/consumer"
	"github.com/batchpix/batchpix/internal/infra/kafka/producer"
	"github.com/batchpix/batchpix/internal/kafka/handlers/control"
	"github.com/batchpix/batchpix/internal/repository/history"
	"github.com/batchpix/batchpix/internal/source"
	"github.com/batchpix/batchpix/internal/storage/file"
	"github.com/batchpix/batchpix/internal/worker"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	// Connect to PostgreSQL (master and slaves) for the run history.
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Retry strategy for Kafka and source-image loads.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Initialize file storage (MinIO) backing the image pool.
	storage, err := file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
	}

	// Seed the image pool from the bucket's source prefix.
	pool := imagepool.New()
	refs, err := storage.List(ctx, cfg.Storage.SourceSubdir)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to list source images")
	}
	for _, ref := range refs {
		pool.Add(ref)
	}
	zlog.Logger.Info().Int("images", pool.Len()).Msg("image pool seeded")

	// Worker stack: storage-backed provider/sink, effect registry.
	src := source.NewStorage(storage, cfg.Storage.OutputSubdir)
	registry := effect.NewRegistry()
	w := worker.New(src, src, registry, strategy)

	// Coordinator with bounded concurrency and event listeners.
	coord := coordinator.New(w, coordinator.Config{MaxWorkers: cfg.Coordinator.MaxWorkers})
	coord.Subscribe(event.NewLogListener())

	repo := history.NewRepository(db)
	coord.Subscribe(event.NewHistoryRecorder(repo, coord.Lookup))

	p := producer.New(&cfg.Kafka, strategy)
	coord.Subscribe(event.NewKafkaNotifier(p))

	// Kafka consumer for remote cancel commands.
	c := consumer.New(&cfg.Kafka, strategy, control.NewHandler(coord))

	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	// Start HTTP server in a separate goroutine.
	h := task.NewHandler(coord, pool, repo)
	r := router.Setup(h)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Stop accepting work and drain in-flight tasks.
	coord.Shutdown()

	// Wait for Kafka consumer goroutine to finish.
	wg.Wait()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close master and slave databases.
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}
	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	// Close Kafka producer and consumer clients.
	if err = p.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
	}
	if err = c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}
}

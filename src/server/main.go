package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reco-batch/src/api"
	"reco-batch/src/config"
	"reco-batch/src/lock"
	"reco-batch/src/scheduler"
	"reco-batch/src/store"
	"reco-batch/src/trigger"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logrus.Fatalf("Failed to load .env: %v", err)
	}

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "serve", "init", "status":
	default:
		logrus.Fatal("Unknown command. Use: serve, init, or status")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	log := cfg.NewLogger()

	db, err := store.Open(cfg.DatabaseDSN, cfg.GormLogLevel())
	if err != nil {
		log.Fatal(err)
	}
	batchStore := store.New(db, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// status only reads the database.
	if command == "status" {
		progress, err := batchStore.Progress(ctx)
		if err != nil {
			log.Fatalf("Failed to get batch status: %v", err)
		}
		fmt.Printf("total=%d pending=%d processing=%d completed=%d failed=%d\n",
			progress.Total, progress.Pending, progress.Processing, progress.Completed, progress.Failed)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	cancel()

	if cfg.VectorDBAPIKey == "" || cfg.SupabaseURL == "" {
		log.Debug("Downstream collaborator credentials not set; they are not used by this service")
	}

	var trig trigger.Trigger
	switch cfg.TriggerMode {
	case config.TriggerModeQueue:
		trig = trigger.NewQueueTrigger(rdb, cfg.TriggerQueue)
	default:
		trig = trigger.NewHTTPTrigger(&http.Client{Timeout: cfg.TriggerTimeout}, cfg.BaseURL, cfg.CronSecret)
	}
	dispatcher := trigger.NewDispatcher(trig, cfg.TriggerTimeout, log)

	initializer := scheduler.NewInitializer(
		batchStore,
		lock.NewRedisLock(rdb, cfg.LockKey, cfg.LockTTL),
		dispatcher,
		cfg.BatchSize,
		log,
	)

	switch command {
	case "serve":
		handler := api.NewHandler(initializer, batchStore, cfg.CronSecret, log)
		if err := serve(ctx, cfg.Port, api.NewRouter(handler), log); err != nil {
			log.Fatalf("Server failed: %v", err)
		}

	case "init":
		result, err := initializer.Run(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize batches: %v", err)
		}
		fmt.Printf("%d\n", result.TotalBatches)
	}

	log.Info("Waiting for in-flight triggers")
	dispatcher.Wait()
}

func serve(ctx context.Context, port string, handler http.Handler, log *logrus.Logger) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Batch initializer listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Received shutdown signal, stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

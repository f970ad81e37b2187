package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/space-reservation/internal/config"
	"github.com/iliyamo/space-reservation/internal/database"
	"github.com/iliyamo/space-reservation/internal/engine"
	"github.com/iliyamo/space-reservation/internal/localtime"
	"github.com/iliyamo/space-reservation/internal/queue"
	"github.com/iliyamo/space-reservation/internal/reminder"
	"github.com/iliyamo/space-reservation/internal/repository"
)

// The worker consumes reservation events for delivery and runs the
// reminder sweep.  Both need the shared MySQL store; the in-memory store
// lives inside the API process and cannot be reached from here.
func main() {
	cfg := config.Load()
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if cfg.Storage != config.StorageMySQL {
		logger.Fatal("worker requires STORAGE=mysql", zap.String("storage", cfg.Storage))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tz, err := localtime.Load(cfg.Timezone)
	if err != nil {
		logger.Fatal("load facility timezone", zap.String("tz", cfg.Timezone), zap.Error(err))
	}
	db, err := database.Open(database.Config{
		User: cfg.DBUser, Password: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	store := repository.NewStore(db)
	eng := engine.New(store, tz, cfg.Engine(), engine.WithLogger(logger))

	pub := queue.NewPublisher(cfg.AMQPURL, cfg.NotifyQueue, logger)
	defer pub.Close()

	var claimer reminder.Claimer
	if rdb := config.NewRedisClient(logger); rdb != nil {
		defer rdb.Close()
		claimer = reminder.NewRedisClaimer(rdb, "claim:")
	} else {
		logger.Warn("redis unavailable; overlapping reminder sweeps may repeat reminders")
	}
	sweeper := reminder.NewSweeper(eng, pub, claimer, cfg.ReminderWindowMin, cfg.ReminderInterval, logger)

	sink := queue.NewLogSink(store, logger)
	consumer := queue.NewConsumer(cfg.AMQPURL, cfg.NotifyQueue, sink.Handle, logger)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(name+" stopped", zap.Error(err))
				stop()
			}
		}()
	}
	run("consumer", consumer.Run)
	run("reminder sweep", sweeper.Run)

	logger.Info("worker started",
		zap.String("queue", cfg.NotifyQueue),
		zap.Int("reminder_window_min", cfg.ReminderWindowMin),
		zap.Duration("reminder_interval", cfg.ReminderInterval),
	)
	wg.Wait()
	logger.Info("worker stopped")
}

package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/space-reservation/internal/config"
	"github.com/iliyamo/space-reservation/internal/database"
	"github.com/iliyamo/space-reservation/internal/engine"
	"github.com/iliyamo/space-reservation/internal/handler"
	"github.com/iliyamo/space-reservation/internal/localtime"
	"github.com/iliyamo/space-reservation/internal/memstore"
	"github.com/iliyamo/space-reservation/internal/middleware"
	"github.com/iliyamo/space-reservation/internal/model"
	"github.com/iliyamo/space-reservation/internal/notify"
	"github.com/iliyamo/space-reservation/internal/queue"
	"github.com/iliyamo/space-reservation/internal/repository"
	"github.com/iliyamo/space-reservation/internal/router"
)

func main() {
	cfg := config.Load()
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tz, err := localtime.Load(cfg.Timezone)
	if err != nil {
		logger.Fatal("load facility timezone", zap.String("tz", cfg.Timezone), zap.Error(err))
	}

	checks := map[string]handler.Pinger{}
	var store engine.Store
	switch cfg.Storage {
	case config.StorageMySQL:
		db, err := database.Open(database.Config{
			User: cfg.DBUser, Password: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		})
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
		defer db.Close()
		if err := repository.Migrate(ctx, db); err != nil {
			logger.Fatal("migrate schema", zap.Error(err))
		}
		checks["mysql"] = db.PingContext
		store = repository.NewStore(db)
	case config.StorageMemory:
		mem := memstore.New()
		seedDemoSpace(mem)
		logger.Warn("using in-memory storage; data is lost on restart")
		store = mem
	}

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	opts := []engine.Option{engine.WithLogger(logger)}
	var dispatcher *notify.Dispatcher
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, cfg.NotifyQueue, logger)
		defer pub.Close()
		dispatcher = notify.NewDispatcher(pub, notify.Options{
			Workers:    cfg.NotifyWorkers,
			Buffer:     cfg.NotifyBuffer,
			MaxRetries: cfg.NotifyMaxRetries,
			RetryDelay: cfg.NotifyRetryDelay,
		}, logger)
		opts = append(opts, engine.WithNotifier(dispatcher))
	} else {
		logger.Warn("RABBITMQ_URL not set; reservation events are not published")
	}
	eng := engine.New(store, tz, cfg.Engine(), opts...)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(middleware.RequestLogger(logger))

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
	spaces := handler.NewSpaceHandler(eng)
	router.RegisterRoutes(e, checks)
	router.RegisterSpaces(e, spaces, limiter)
	router.RegisterReservations(e, handler.NewReservationHandler(eng), cfg.JWTSecret, limiter)
	router.RegisterAdmin(e, spaces, cfg.JWTSecret)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("storage", cfg.Storage))
	go serve(e, addr, logger, stop)

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if dispatcher != nil {
		if err := dispatcher.Close(shutdownCtx); err != nil {
			logger.Error("notification drain", zap.Error(err))
		}
		dropped, failed := dispatcher.Stats()
		logger.Info("notifications flushed", zap.Int64("dropped", dropped), zap.Int64("failed", failed))
	}
}

// serve runs the HTTP server until it is shut down.  A listen failure
// cancels the process context so the deferred cleanup still runs.
func serve(e *echo.Echo, addr string, log *zap.Logger, stop context.CancelFunc) {
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", zap.Error(err))
		stop()
	}
}

// seedDemoSpace gives the in-memory store one bookable room so the API is
// usable without a database.
func seedDemoSpace(s *memstore.Store) {
	s.PutSpace(model.Space{
		ID:       1,
		Name:     "Demo Room",
		Capacity: 8,
		Status:   model.SpaceAvailable,
		Hours: model.OperatingHours{
			Weekday: &model.ClockRange{StartMinute: 9 * 60, EndMinute: 22 * 60},
			Weekend: &model.ClockRange{StartMinute: 10 * 60, EndMinute: 18 * 60},
		},
	})
}

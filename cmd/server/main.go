package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/auth"
	"github.com/cx-tal-miterani/flight-booking-system/internal/booking"
	"github.com/cx-tal-miterani/flight-booking-system/internal/cache"
	"github.com/cx-tal-miterani/flight-booking-system/internal/config"
	"github.com/cx-tal-miterani/flight-booking-system/internal/database"
	"github.com/cx-tal-miterani/flight-booking-system/internal/events"
	"github.com/cx-tal-miterani/flight-booking-system/internal/handlers"
	"github.com/cx-tal-miterani/flight-booking-system/internal/logger"
	"github.com/cx-tal-miterani/flight-booking-system/internal/pricing"
	"github.com/cx-tal-miterani/flight-booking-system/internal/router"
	"github.com/cx-tal-miterani/flight-booking-system/internal/service"
	"github.com/cx-tal-miterani/flight-booking-system/internal/websocket"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Must("info", true).Fatal("Failed to load config", zap.Error(err))
	}

	log := logger.Must(cfg.App.LogLevel, cfg.App.IsDevelopment())
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeStore()

	if cfg.App.SeedData {
		if err := service.SeedSampleData(ctx, store, log); err != nil {
			log.Fatal("Failed to seed sample data", zap.Error(err))
		}
	}

	orch := booking.NewOrchestrator(store, pricing.NewEngine(cfg.Pricing.DefaultExtraLegroomCost), log)
	hub := websocket.NewHub(log)

	deps := service.Deps{
		Store:        store,
		Orchestrator: orch,
		Notifier:     hub,
		Logger:       log,
	}

	if cfg.Redis.Addr != "" {
		flightCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer flightCache.Close()
		deps.Cache = flightCache
		log.Info("Flight cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(ctx, events.PublisherConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.App.Name,
		})
		if err != nil {
			log.Fatal("Failed to connect to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.Error(err))
		}
		defer publisher.Close()
		deps.Publisher = publisher
		log.Info("Purchase events enabled", zap.String("topic", cfg.Kafka.Topic))
	}

	if cfg.Purchase.Mode == config.PurchaseTemporal {
		temporalClient, err := client.Dial(client.Options{
			HostPort: cfg.Temporal.Host,
		})
		if err != nil {
			log.Fatal("Failed to create Temporal client", zap.String("host", cfg.Temporal.Host), zap.Error(err))
		}
		defer temporalClient.Close()
		deps.Purchaser = service.NewTemporalPurchaser(temporalClient, cfg.Temporal.TaskQueue, cfg.Purchase.Timeout, log)
		log.Info("Connected to Temporal server", zap.String("host", cfg.Temporal.Host))
	}

	bookingService := service.NewBookingService(deps)
	h := handlers.NewHandler(bookingService, hub, log)
	r := router.NewRouter(h, auth.NewAuthenticator(cfg.JWT.Secret, log), log)

	go hub.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("API server starting",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("purchase_mode", cfg.Purchase.Mode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Server stopped")
}

// openStore returns the configured store and a function releasing it
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (database.Store, func(), error) {
	if cfg.Storage.Driver != config.StoragePostgres {
		log.Info("Using in-memory store")
		return database.NewMemoryStore(), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg.Storage.DatabaseURL, cfg.Storage.MaxConns)
	if err != nil {
		return nil, nil, err
	}

	repo := database.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	log.Info("Connected to database")
	return repo, pool.Close, nil
}

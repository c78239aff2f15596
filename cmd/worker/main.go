package main

import (
	"context"

	"github.com/cx-tal-miterani/flight-booking-system/internal/activities"
	"github.com/cx-tal-miterani/flight-booking-system/internal/booking"
	"github.com/cx-tal-miterani/flight-booking-system/internal/config"
	"github.com/cx-tal-miterani/flight-booking-system/internal/database"
	"github.com/cx-tal-miterani/flight-booking-system/internal/logger"
	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/cx-tal-miterani/flight-booking-system/internal/pricing"
	"github.com/cx-tal-miterani/flight-booking-system/internal/workflows"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Must("info", true).Fatal("Failed to load config", zap.Error(err))
	}

	log := logger.Must(cfg.App.LogLevel, cfg.App.IsDevelopment())
	defer log.Sync()

	// The worker shares the API server's database; an in-memory store would
	// be invisible to it
	if cfg.Storage.Driver != config.StoragePostgres {
		log.Fatal("Worker requires STORAGE_DRIVER=postgres", zap.String("driver", cfg.Storage.Driver))
	}

	log.Info("Connecting to database...")
	pool, err := database.Connect(ctx, cfg.Storage.DatabaseURL, cfg.Storage.MaxConns)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	repo := database.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Connected to database")

	orch := booking.NewOrchestrator(repo, pricing.NewEngine(cfg.Pricing.DefaultExtraLegroomCost), log)

	log.Info("Connecting to Temporal...", zap.String("host", cfg.Temporal.Host))
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.Host,
	})
	if err != nil {
		log.Fatal("Failed to connect to Temporal", zap.Error(err))
	}
	defer c.Close()
	log.Info("Connected to Temporal")

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(workflows.PurchaseWorkflow, workflow.RegisterOptions{Name: models.WorkflowPurchase})

	acts := activities.NewActivities(orch)
	w.RegisterActivityWithOptions(acts.PurchaseTickets, activity.RegisterOptions{Name: models.ActivityPurchaseTickets})

	log.Info("Starting Temporal worker...", zap.String("task_queue", cfg.Temporal.TaskQueue))
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("Worker failed", zap.Error(err))
	}
}

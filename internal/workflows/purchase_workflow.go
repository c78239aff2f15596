package workflows

import (
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// PurchaseActivityTimeout bounds one purchase transaction
const PurchaseActivityTimeout = 30 * time.Second

// PurchaseWorkflow executes one purchase on the worker. The activity is
// attempted once; the caller decides whether to resubmit.
func PurchaseWorkflow(ctx workflow.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Purchase workflow started", "passengerID", req.PassengerID, "items", len(req.Items))

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: PurchaseActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var result models.PurchaseResult
	if err := workflow.ExecuteActivity(ctx, models.ActivityPurchaseTickets, req).Get(ctx, &result); err != nil {
		logger.Info("Purchase workflow failed", "passengerID", req.PassengerID, "error", err)
		return nil, err
	}

	logger.Info("Purchase workflow completed", "passengerID", req.PassengerID, "tickets", len(result.Tickets))
	return &result, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/booking"
	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// TemporalPurchaser runs each purchase as a PurchaseWorkflow on the worker
// and waits for its result
type TemporalPurchaser struct {
	client    client.Client
	taskQueue string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewTemporalPurchaser creates a purchaser bound to taskQueue
func NewTemporalPurchaser(c client.Client, taskQueue string, timeout time.Duration, logger *zap.Logger) *TemporalPurchaser {
	return &TemporalPurchaser{client: c, taskQueue: taskQueue, timeout: timeout, logger: logger}
}

// WorkflowID derives the purchase workflow ID. Resubmitting with the same
// request ID lands on the same workflow.
func WorkflowID(passengerID, requestID string) string {
	return models.PurchaseWorkflowIDPrefix + passengerID + "-" + requestID
}

func (p *TemporalPurchaser) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	workflowID := WorkflowID(req.PassengerID, req.RequestID)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                p.taskQueue,
		WorkflowExecutionTimeout: p.timeout,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	run, err := p.client.ExecuteWorkflow(ctx, options, models.WorkflowPurchase, req)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if !errors.As(err, &started) {
			return nil, &booking.Error{Kind: booking.KindInternal, Message: "failed to start purchase", Err: err}
		}
		// Same request ID already finished: return its outcome instead of buying again
		p.logger.Info("Attaching to existing purchase workflow", zap.String("workflow_id", workflowID))
		run = p.client.GetWorkflow(ctx, workflowID, "")
	}

	var result models.PurchaseResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fromWorkflowError(err)
	}
	return &result, nil
}

// fromWorkflowError rebuilds the booking error carried in the application
// error details
func fromWorkflowError(err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.HasDetails() {
		var failure models.PurchaseFailure
		if derr := appErr.Details(&failure); derr == nil && failure.Kind != "" {
			return booking.NewError(booking.Kind(failure.Kind), failure.Message)
		}
	}
	return &booking.Error{Kind: booking.KindInternal, Message: "purchase failed", Err: fmt.Errorf("workflow: %w", err)}
}

package activities

import (
	"context"
	"errors"

	"github.com/cx-tal-miterani/flight-booking-system/internal/booking"
	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// Purchaser is the in-process purchase path the activity delegates to
type Purchaser interface {
	Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error)
}

// Activities holds dependencies for activities
type Activities struct {
	purchaser Purchaser
}

// NewActivities creates a new Activities instance
func NewActivities(purchaser Purchaser) *Activities {
	return &Activities{purchaser: purchaser}
}

// PurchaseTickets runs the whole purchase as one unit against the shared
// database. Classified failures are returned as non-retryable application
// errors carrying the failure kind in their details.
func (a *Activities) PurchaseTickets(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Purchasing tickets", "passengerID", req.PassengerID, "items", len(req.Items))

	result, err := a.purchaser.Purchase(ctx, req)
	if err == nil {
		logger.Info("Tickets purchased", "passengerID", req.PassengerID, "tickets", len(result.Tickets))
		return result, nil
	}

	var be *booking.Error
	if !errors.As(err, &be) || be.Kind == booking.KindInternal {
		logger.Error("Purchase failed", "passengerID", req.PassengerID, "error", err)
		return nil, err
	}

	logger.Info("Purchase rejected", "passengerID", req.PassengerID, "kind", string(be.Kind), "message", be.Message)
	return nil, temporal.NewNonRetryableApplicationError(be.Message, string(be.Kind), nil,
		models.PurchaseFailure{Kind: string(be.Kind), Message: be.Message})
}

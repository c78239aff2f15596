package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/booking"
	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

func purchaseRequest() models.PurchaseRequest {
	return models.PurchaseRequest{
		PassengerID: "p-1",
		Items:       []models.LineItem{{FlightID: "F", SeatNumber: 12}},
		RequestID:   "key-1",
	}
}

func TestTemporalPurchaser_Success(t *testing.T) {
	c := new(mocks.Client)
	run := new(mocks.WorkflowRun)

	c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
		return o.ID == "purchase-p-1-key-1" && o.TaskQueue == "flight-booking-queue"
	}), models.WorkflowPurchase, purchaseRequest()).Return(run, nil)

	run.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		*args.Get(1).(*models.PurchaseResult) = models.PurchaseResult{
			Tickets: []models.Ticket{{ID: "t-1", FlightID: "F", SeatNumber: 12}},
			Balance: decimal.NewFromInt(50),
		}
	}).Return(nil)

	p := NewTemporalPurchaser(c, "flight-booking-queue", 5*time.Second, zap.NewNop())
	result, err := p.Purchase(context.Background(), purchaseRequest())
	require.NoError(t, err)
	assert.Len(t, result.Tickets, 1)
	assert.True(t, decimal.NewFromInt(50).Equal(result.Balance))

	c.AssertExpectations(t)
	run.AssertExpectations(t)
}

func TestTemporalPurchaser_ResubmissionAttachesToExistingRun(t *testing.T) {
	c := new(mocks.Client)
	run := new(mocks.WorkflowRun)

	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, models.WorkflowPurchase, mock.Anything).
		Return(nil, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "", "")).Once()
	c.On("GetWorkflow", mock.Anything, "purchase-p-1-key-1", "").Return(run).Once()
	run.On("Get", mock.Anything, mock.Anything).Return(nil)

	p := NewTemporalPurchaser(c, "q", 5*time.Second, zap.NewNop())
	_, err := p.Purchase(context.Background(), purchaseRequest())
	require.NoError(t, err)

	c.AssertExpectations(t)
}

func TestTemporalPurchaser_RebuildsBookingError(t *testing.T) {
	c := new(mocks.Client)
	run := new(mocks.WorkflowRun)

	failure := models.PurchaseFailure{Kind: string(booking.KindConflict), Message: "seat 12 on flight F is no longer available"}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, models.WorkflowPurchase, mock.Anything).Return(run, nil)
	run.On("Get", mock.Anything, mock.Anything).
		Return(temporal.NewNonRetryableApplicationError(failure.Message, failure.Kind, nil, failure))

	p := NewTemporalPurchaser(c, "q", 5*time.Second, zap.NewNop())
	_, err := p.Purchase(context.Background(), purchaseRequest())
	require.Error(t, err)
	assert.Equal(t, booking.KindConflict, booking.KindOf(err))
	assert.Equal(t, failure.Message, booking.MessageOf(err))
}

func TestTemporalPurchaser_StartFailureIsInternal(t *testing.T) {
	c := new(mocks.Client)
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, models.WorkflowPurchase, mock.Anything).
		Return(nil, errors.New("frontend unavailable"))

	p := NewTemporalPurchaser(c, "q", 5*time.Second, zap.NewNop())
	_, err := p.Purchase(context.Background(), purchaseRequest())
	assert.Equal(t, booking.KindInternal, booking.KindOf(err))
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "purchase-p-9-abc", WorkflowID("p-9", "abc"))
}

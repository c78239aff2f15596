package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

type PurchaseWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *PurchaseWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterActivityWithOptions(
		func(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
			return nil, errors.New("not mocked")
		},
		activity.RegisterOptions{Name: models.ActivityPurchaseTickets},
	)
}

func (s *PurchaseWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func TestPurchaseWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(PurchaseWorkflowTestSuite))
}

func testRequest() models.PurchaseRequest {
	return models.PurchaseRequest{
		PassengerID: "p-1",
		Items:       []models.LineItem{{FlightID: "F", SeatNumber: 12}},
		RequestID:   "req-1",
	}
}

func (s *PurchaseWorkflowTestSuite) TestWorkflow_Success() {
	s.env.OnActivity(models.ActivityPurchaseTickets, mock.Anything, testRequest()).Return(&models.PurchaseResult{
		Tickets: []models.Ticket{{ID: "t-1", FlightID: "F", SeatNumber: 12, Price: decimal.NewFromInt(150)}},
		Balance: decimal.NewFromInt(50),
	}, nil).Once()

	s.env.ExecuteWorkflow(PurchaseWorkflow, testRequest())

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result models.PurchaseResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Len(result.Tickets, 1)
	s.True(decimal.NewFromInt(50).Equal(result.Balance))
}

func (s *PurchaseWorkflowTestSuite) TestWorkflow_RejectionCarriesKind() {
	failure := models.PurchaseFailure{Kind: "conflict", Message: "seat 12 on flight F is no longer available"}
	s.env.OnActivity(models.ActivityPurchaseTickets, mock.Anything, mock.Anything).Return(
		nil, temporal.NewNonRetryableApplicationError(failure.Message, failure.Kind, nil, failure),
	).Once()

	s.env.ExecuteWorkflow(PurchaseWorkflow, testRequest())

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)

	var appErr *temporal.ApplicationError
	s.True(errors.As(err, &appErr))
	s.Equal("conflict", appErr.Type())

	var got models.PurchaseFailure
	s.NoError(appErr.Details(&got))
	s.Equal(failure, got)
}

func (s *PurchaseWorkflowTestSuite) TestWorkflow_StorageFailureIsNotRetried() {
	s.env.OnActivity(models.ActivityPurchaseTickets, mock.Anything, mock.Anything).Return(
		nil, errors.New("connection reset"),
	).Once()

	s.env.ExecuteWorkflow(PurchaseWorkflow, testRequest())

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

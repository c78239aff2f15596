package models

// Names under which the worker registers the purchase workflow and activity
const (
	WorkflowPurchase        = "PurchaseWorkflow"
	ActivityPurchaseTickets = "PurchaseTickets"
)

// PurchaseWorkflowIDPrefix prefixes every purchase workflow ID
const PurchaseWorkflowIDPrefix = "purchase-"

// PurchaseFailure travels as application error details so the API server can
// rebuild the failure kind after the workflow returns
type PurchaseFailure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

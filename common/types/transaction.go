package types

import "time"

// StepAction identifies the unit of work a step performs.
type StepAction string

const (
	// ActionDirectTransfer moves value on a single network without bridging.
	ActionDirectTransfer StepAction = "direct_transfer"
	// ActionInitiateBridge requests a bridge execution from the provider.
	ActionInitiateBridge StepAction = "initiate_bridge"
	// ActionMonitorBridge polls the provider until the execution settles.
	ActionMonitorBridge StepAction = "monitor_bridge"
	// ActionConfirmReceipt acknowledges settled funds on the target network.
	ActionConfirmReceipt StepAction = "confirm_receipt"
)

// Step is one atomic unit of work inside a cross-chain transaction.
// Steps execute strictly in index order (1-based); a step may only start
// once every lower-indexed step has completed.
type Step struct {
	Index            int        `json:"index"`
	Action           StepAction `json:"action"`
	Status           StepStatus `json:"status"`
	ExecutionID      string     `json:"executionId,omitempty"`
	TxHash           string     `json:"txHash,omitempty"`
	Error            string     `json:"error,omitempty"`
	ConditionMapping string     `json:"conditionMapping,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// BridgeInfo describes the route the provider quoted at preparation time.
// Available false means the provider was unreachable and the transaction
// was prepared with degraded confidence.
type BridgeInfo struct {
	Provider      string        `json:"provider"`
	Available     bool          `json:"available"`
	EstimatedTime time.Duration `json:"estimatedTime"`
	Confidence    float64       `json:"confidence"`
	Note          string        `json:"note,omitempty"`
}

// FeeEstimate is the projected cost of moving the funds. FallbackMode true
// marks a synthetic estimate produced while the provider was unreachable.
type FeeEstimate struct {
	BridgeFee         string `json:"bridgeFee"`
	GasFee            string `json:"gasFee"`
	TotalEstimatedFee string `json:"totalEstimatedFee"`
	Currency          string `json:"currency"`
	FallbackMode      bool   `json:"fallbackMode"`
}

// CrossChainTransaction is the orchestrator's record of one bridge-mediated
// (or direct, same-network) fund movement. The linked deal holds only a weak
// reference back; the record itself is owned by the orchestrator and is
// never deleted, so failed or stuck transactions remain for audit.
type CrossChainTransaction struct {
	ID            string
	DealID        string
	Status        TransactionStatus
	SourceNetwork Network
	TargetNetwork Network
	FromAddress   string
	ToAddress     string
	Amount        string
	TokenAddress  string
	NeedsBridge   bool
	Steps         []Step
	BridgeInfo    *BridgeInfo
	FeeEstimate   *FeeEstimate
	UserID        string
	LastUpdated   time.Time
	CreatedAt     time.Time
}

// FindStep returns the step with the given 1-based index, nil if absent.
func (t *CrossChainTransaction) FindStep(index int) *Step {
	for i := range t.Steps {
		if t.Steps[i].Index == index {
			return &t.Steps[i]
		}
	}
	return nil
}

// CompletedSteps counts the steps in completed state.
func (t *CrossChainTransaction) CompletedSteps() int {
	count := 0
	for _, s := range t.Steps {
		if s.Status == StepCompleted {
			count++
		}
	}
	return count
}

// PriorStepsCompleted reports whether every step below the given index has
// completed, enforcing the in-order execution invariant.
func (t *CrossChainTransaction) PriorStepsCompleted(index int) bool {
	for _, s := range t.Steps {
		if s.Index < index && s.Status != StepCompleted {
			return false
		}
	}
	return true
}

// StepResult is the structured outcome of one step execution. Expected
// operational failures are reported here instead of being thrown, so batch
// callers can branch without exception-style control flow.
type StepResult struct {
	Success     bool
	Status      StepStatus
	TxStatus    TransactionStatus
	TxHash      string
	ExecutionID string
	Error       string
}

// TransactionProgress is the aggregate view returned by status checks.
type TransactionProgress struct {
	TransactionID      string
	Status             TransactionStatus
	ProgressPercentage int
	NextAction         string
}

// AutoCompleteOutcome reports how many pending steps a sweep completed and
// how many failed; a step failure never aborts the sweep.
type AutoCompleteOutcome struct {
	CompletedSteps int
	FailedSteps    int
}

// Readiness is the result of the pre-release gate. Ready false always
// carries the blocking reason.
type Readiness struct {
	Ready  bool
	Reason string
}

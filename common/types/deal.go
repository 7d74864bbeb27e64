package types

import "time"

// Condition represents a buyer-attested requirement on a deal that must be
// fulfilled before funds may release.
type Condition struct {
	ID     string          `json:"id"`
	Type   ConditionType   `json:"type"`
	Status ConditionStatus `json:"status"`
}

// TimelineEvent is one immutable entry of a deal's append-only audit log.
//
// Fields:
// - Event: human-readable description of what happened.
// - Timestamp: when the entry was appended.
// - SystemTriggered: true when the automation core appended the entry.
// - TransactionHash: optional on-chain transaction hash tied to the event.
type TimelineEvent struct {
	Event           string    `json:"event"`
	Timestamp       time.Time `json:"timestamp"`
	SystemTriggered bool      `json:"systemTriggered"`
	TransactionHash string    `json:"transactionHash,omitempty"`
}

// Deal represents an escrow agreement between a buyer and a seller,
// possibly spanning two blockchain networks.
//
// A deal with IsCrossChain false never carries cross-chain status values or
// a CrossChainTransactionID. The timeline is append-only; entries are never
// mutated or removed. A nil SmartContractAddress means the deal is
// database-only (mock deployment) and on-chain calls are skipped.
type Deal struct {
	ID                        string
	Status                    DealStatus
	IsCrossChain              bool
	BuyerID                   string
	SellerID                  string
	BuyerWalletAddress        string
	SellerWalletAddress       string
	BuyerNetwork              Network
	SellerNetwork             Network
	SmartContractAddress      *string
	FinalApprovalDeadline     *time.Time
	DisputeResolutionDeadline *time.Time
	Conditions                []Condition
	Timeline                  []TimelineEvent
	CrossChainTransactionID   *string
	LastActivityAt            time.Time
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// HasContract reports whether the deal has a real on-chain escrow contract.
func (d *Deal) HasContract() bool {
	return d.SmartContractAddress != nil && *d.SmartContractAddress != ""
}

// ContractAddress returns the escrow contract address, empty for
// database-only deals.
func (d *Deal) ContractAddress() string {
	if d.SmartContractAddress == nil {
		return ""
	}
	return *d.SmartContractAddress
}

// CrossChainConditionsFulfilled reports whether every CROSS_CHAIN condition
// has been attested as fulfilled by the buyer.
func (d *Deal) CrossChainConditionsFulfilled() bool {
	for _, c := range d.Conditions {
		if c.Type == ConditionCrossChain && c.Status != ConditionFulfilledByBuyer {
			return false
		}
	}
	return true
}

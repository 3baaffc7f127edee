package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RepaymentKind distinguishes ledger records.
type RepaymentKind string

const (
	RepaymentKindPayment  RepaymentKind = "PAYMENT"
	RepaymentKindReversal RepaymentKind = "REVERSAL"
	RepaymentKindRecovery RepaymentKind = "RECOVERY"
)

// Repayment is one append-only ledger record. A reversal never edits the
// original; it is a separate REVERSAL record pointing at it.
type Repayment struct {
	PaidAt     time.Time       `json:"paid_at"`
	RecordedAt time.Time       `json:"recorded_at"`
	Amount     decimal.Decimal `json:"amount"`
	Allocation Allocation      `json:"allocation"`
	ID         string          `json:"id"`
	Reference  string          `json:"reference"`
	Kind       RepaymentKind   `json:"kind"`
	ReversalOf string          `json:"reversal_of,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Generation int             `json:"generation"`
}

// IsReversal reports whether the record compensates an earlier payment.
func (r Repayment) IsReversal() bool { return r.Kind == RepaymentKindReversal }

package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/valueobject"
)

// Tranche is one stage of a staged disbursement.
type Tranche struct {
	VerifiedAt      time.Time                      `json:"verified_at"`
	DisbursedAt     time.Time                      `json:"disbursed_at"`
	PlannedAmount   decimal.Decimal                `json:"planned_amount"`
	DisbursedAmount decimal.Decimal                `json:"disbursed_amount"`
	ID              string                         `json:"id"`
	Milestone       string                         `json:"milestone"`
	Verification    valueobject.VerificationStatus `json:"verification"`
	VerifiedBy      string                         `json:"verified_by"`
	Sequence        int                            `json:"sequence"`
}

// IsDisbursed reports whether funds have moved for the tranche.
func (t Tranche) IsDisbursed() bool { return !t.DisbursedAt.IsZero() }

// TrancheDisbursement is an authorised tranche draw produced by the tranche
// manager and committed by Loan.DisburseTranche.
type TrancheDisbursement struct {
	Amount   decimal.Decimal
	Sequence int
	// Final marks the draw that completes disbursement and starts the
	// schedule clock, even when less than the principal was drawn.
	Final bool
}

// TranchePlanItem describes one tranche when the plan is recorded.
type TranchePlanItem struct {
	Amount    decimal.Decimal
	Milestone string
}

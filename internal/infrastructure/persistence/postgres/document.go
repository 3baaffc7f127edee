package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
)

// loanDocument is the JSONB form of a loan. Scalar columns on the loans row
// duplicate a few of these fields for indexing; the document is authoritative.
type loanDocument struct {
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	ApprovedAt      time.Time              `json:"approved_at"`
	ActivatedAt     time.Time              `json:"activated_at"`
	ExpectedEndDate time.Time              `json:"expected_end_date"`
	RequestedAmount decimal.Decimal        `json:"requested_amount"`
	Principal       decimal.Decimal        `json:"principal"`
	TotalDisbursed  decimal.Decimal        `json:"total_disbursed"`
	ApprovalLimit   decimal.Decimal        `json:"approval_limit"`
	Outstanding     model.Balances         `json:"outstanding"`
	Terms           model.ProductTerms     `json:"terms"`
	Status          valueobject.LoanStatus `json:"status"`
	ID              string                 `json:"id"`
	TenantID        string                 `json:"tenant_id"`
	MemberID        string                 `json:"member_id"`
	ProductID       string                 `json:"product_id"`
	Purpose         string                 `json:"purpose"`
	ApprovedBy      string                 `json:"approved_by"`
	DecisionReason  string                 `json:"decision_reason"`
	Schedule        []model.ScheduleEntry  `json:"schedule"`
	Archived        []model.ScheduleEntry  `json:"archived_schedule"`
	Repayments      []model.Repayment      `json:"repayments"`
	Tranches        []model.Tranche        `json:"tranches"`
	Restructures    []model.Restructure    `json:"restructures"`
	WriteOffs       []model.WriteOff       `json:"write_offs"`
	CollateralIDs   []string               `json:"collateral_ids"`
	GuarantorIDs    []string               `json:"guarantor_ids"`
	ProductVersion  int                    `json:"product_version"`
	Installments    int                    `json:"installments"`
	Generation      int                    `json:"generation"`
}

func newLoanDocument(s model.LoanState) loanDocument {
	return loanDocument{
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		ApprovedAt:      s.ApprovedAt,
		ActivatedAt:     s.ActivatedAt,
		ExpectedEndDate: s.ExpectedEndDate,
		RequestedAmount: s.RequestedAmount,
		Principal:       s.Principal,
		TotalDisbursed:  s.TotalDisbursed,
		ApprovalLimit:   s.ApprovalLimit,
		Outstanding:     s.Outstanding,
		Terms:           s.Terms,
		Status:          s.Status,
		ID:              s.ID,
		TenantID:        s.TenantID,
		MemberID:        s.MemberID,
		ProductID:       s.ProductID,
		Purpose:         s.Purpose,
		ApprovedBy:      s.ApprovedBy,
		DecisionReason:  s.DecisionReason,
		Schedule:        s.Schedule,
		Archived:        s.Archived,
		Repayments:      s.Repayments,
		Tranches:        s.Tranches,
		Restructures:    s.Restructures,
		WriteOffs:       s.WriteOffs,
		CollateralIDs:   s.CollateralIDs,
		GuarantorIDs:    s.GuarantorIDs,
		ProductVersion:  s.ProductVersion,
		Installments:    s.Installments,
		Generation:      s.Generation,
	}
}

// state converts the document back, stamping the row version.
func (d loanDocument) state(version int) model.LoanState {
	return model.LoanState{
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		ApprovedAt:      d.ApprovedAt,
		ActivatedAt:     d.ActivatedAt,
		ExpectedEndDate: d.ExpectedEndDate,
		RequestedAmount: d.RequestedAmount,
		Principal:       d.Principal,
		TotalDisbursed:  d.TotalDisbursed,
		ApprovalLimit:   d.ApprovalLimit,
		Outstanding:     d.Outstanding,
		Terms:           d.Terms,
		Status:          d.Status,
		ID:              d.ID,
		TenantID:        d.TenantID,
		MemberID:        d.MemberID,
		ProductID:       d.ProductID,
		Purpose:         d.Purpose,
		ApprovedBy:      d.ApprovedBy,
		DecisionReason:  d.DecisionReason,
		Schedule:        d.Schedule,
		Archived:        d.Archived,
		Repayments:      d.Repayments,
		Tranches:        d.Tranches,
		Restructures:    d.Restructures,
		WriteOffs:       d.WriteOffs,
		CollateralIDs:   d.CollateralIDs,
		GuarantorIDs:    d.GuarantorIDs,
		ProductVersion:  d.ProductVersion,
		Installments:    d.Installments,
		Generation:      d.Generation,
		Version:         version,
	}
}

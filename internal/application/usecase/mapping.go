package usecase

import (
	"time"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
	"github.com/bibbank/microfinance/pkg/money"
)

// ---------------------------------------------------------------------------
// Request -> domain
// ---------------------------------------------------------------------------

func termsFromDTO(d dto.ProductTermsDTO) (model.ProductTerms, error) {
	currency, err := money.NewCurrency(d.Currency)
	if err != nil {
		return model.ProductTerms{}, model.NewValidationError("currency", "%v", err)
	}
	method, err := valueobject.NewInterestMethod(d.InterestMethod)
	if err != nil {
		return model.ProductTerms{}, model.NewValidationError("interest_method", "%v", err)
	}
	freq, err := valueobject.NewRepaymentFrequency(d.Frequency)
	if err != nil {
		return model.ProductTerms{}, model.NewValidationError("frequency", "%v", err)
	}
	policy, err := valueobject.NewAllocationPolicy(d.AllocationPolicy)
	if err != nil {
		return model.ProductTerms{}, model.NewValidationError("allocation_policy", "%v", err)
	}
	order, err := parseComponents("allocation_order", d.AllocationOrder)
	if err != nil {
		return model.ProductTerms{}, err
	}

	fees := make([]model.FeeDefinition, 0, len(d.Fees))
	for _, f := range d.Fees {
		kind, err := valueobject.NewFeeKind(f.Kind)
		if err != nil {
			return model.ProductTerms{}, model.NewValidationError("fees.kind", "%v", err)
		}
		trigger, err := valueobject.NewFeeTrigger(f.Trigger)
		if err != nil {
			return model.ProductTerms{}, model.NewValidationError("fees.trigger", "%v", err)
		}
		fees = append(fees, model.FeeDefinition{Name: f.Name, Kind: kind, Amount: f.Amount, Trigger: trigger})
	}

	return model.ProductTerms{
		Currency:               currency,
		InterestMethod:         method,
		AnnualRate:             d.AnnualRate,
		Frequency:              freq,
		MinInstallments:        d.MinInstallments,
		MaxInstallments:        d.MaxInstallments,
		MinPrincipal:           d.MinPrincipal,
		MaxPrincipal:           d.MaxPrincipal,
		GracePeriods:           d.GracePeriods,
		InterestDuringGrace:    d.InterestDuringGrace,
		Fees:                   fees,
		PenaltyRate:            d.PenaltyRate,
		AllocationOrder:        order,
		AllocationPolicy:       policy,
		AllowUnderDisbursement: d.AllowUnderDisbursement,
	}, nil
}

func restructureTermsFromDTO(d dto.RestructureTermsDTO) (model.RestructureTerms, error) {
	method, err := valueobject.NewInterestMethod(d.InterestMethod)
	if err != nil {
		return model.RestructureTerms{}, model.NewValidationError("interest_method", "%v", err)
	}
	freq, err := valueobject.NewRepaymentFrequency(d.Frequency)
	if err != nil {
		return model.RestructureTerms{}, model.NewValidationError("frequency", "%v", err)
	}
	return model.RestructureTerms{
		AnnualRate:      d.AnnualRate,
		WaivedPrincipal: d.WaivedPrincipal,
		WaivedInterest:  d.WaivedInterest,
		Frequency:       freq,
		Method:          method,
		Installments:    d.Installments,
		GracePeriods:    d.GracePeriods,
	}, nil
}

func parseComponents(field string, raw []string) ([]valueobject.Component, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]valueobject.Component, 0, len(raw))
	for _, s := range raw {
		c, err := valueobject.NewComponent(s)
		if err != nil {
			return nil, model.NewValidationError(field, "%v", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// paymentTime defaults a missing payment timestamp to now.
func paymentTime(at, now time.Time) time.Time {
	if at.IsZero() {
		return now
	}
	return at.UTC()
}

// ---------------------------------------------------------------------------
// Domain -> response
// ---------------------------------------------------------------------------

func toTermsDTO(t model.ProductTerms) dto.ProductTermsDTO {
	fees := make([]dto.FeeDTO, 0, len(t.Fees))
	for _, f := range t.Fees {
		fees = append(fees, dto.FeeDTO{Name: f.Name, Kind: string(f.Kind), Amount: f.Amount, Trigger: string(f.Trigger)})
	}
	order := make([]string, 0, len(t.AllocationOrder))
	for _, c := range t.AllocationOrder {
		order = append(order, string(c))
	}
	return dto.ProductTermsDTO{
		Currency:               t.Currency.Code(),
		InterestMethod:         t.InterestMethod.String(),
		AnnualRate:             t.AnnualRate,
		Frequency:              t.Frequency.String(),
		MinInstallments:        t.MinInstallments,
		MaxInstallments:        t.MaxInstallments,
		MinPrincipal:           t.MinPrincipal,
		MaxPrincipal:           t.MaxPrincipal,
		GracePeriods:           t.GracePeriods,
		InterestDuringGrace:    t.InterestDuringGrace,
		Fees:                   fees,
		PenaltyRate:            t.PenaltyRate,
		AllocationOrder:        order,
		AllocationPolicy:       string(t.AllocationPolicy),
		AllowUnderDisbursement: t.AllowUnderDisbursement,
	}
}

func toProductResponse(p model.LoanProduct) dto.ProductResponse {
	return dto.ProductResponse{
		ID:        p.ID(),
		TenantID:  p.TenantID(),
		Code:      p.Code(),
		Name:      p.Name(),
		Version:   p.Version(),
		Terms:     toTermsDTO(p.Terms()),
		CreatedAt: p.CreatedAt(),
	}
}

func toBalancesResponse(b model.Balances) dto.BalancesResponse {
	return dto.BalancesResponse{
		Principal: b.Principal,
		Interest:  b.Interest,
		Fees:      b.Fees,
		Penalties: b.Penalties,
		Total:     b.Total(),
	}
}

func toScheduleResponse(entries []model.ScheduleEntry, asOf time.Time) []dto.ScheduleEntryResponse {
	out := make([]dto.ScheduleEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = dto.ScheduleEntryResponse{
			Sequence:       e.Sequence,
			Generation:     e.Generation,
			DueDate:        e.DueDate,
			Status:         string(e.Status(asOf)),
			PrincipalDue:   e.PrincipalDue,
			InterestDue:    e.InterestDue,
			FeeDue:         e.FeeDue,
			PenaltyDue:     e.PenaltyDue,
			PrincipalPaid:  e.PrincipalPaid,
			InterestPaid:   e.InterestPaid,
			FeePaid:        e.FeePaid,
			PenaltyPaid:    e.PenaltyPaid,
			InterestWaived: e.InterestWaived,
			FeeWaived:      e.FeeWaived,
			PenaltyWaived:  e.PenaltyWaived,
			Remaining:      e.RemainingTotal(),
		}
	}
	return out
}

func toRepaymentResponse(loan model.Loan, r model.Repayment, duplicate bool) dto.RepaymentResponse {
	lines := make([]dto.AllocationLineResponse, 0, len(r.Allocation.Installments))
	for _, ia := range r.Allocation.Installments {
		lines = append(lines, dto.AllocationLineResponse{
			Sequence:           ia.Sequence,
			Penalty:            ia.Penalty,
			Fee:                ia.Fee,
			Interest:           ia.Interest,
			Principal:          ia.Principal,
			InterestAdjustment: ia.InterestAdjustment,
		})
	}
	return dto.RepaymentResponse{
		ID:         r.ID,
		LoanID:     loan.ID(),
		Reference:  r.Reference,
		Kind:       string(r.Kind),
		Amount:     r.Amount,
		PaidAt:     r.PaidAt,
		RecordedAt: r.RecordedAt,
		ReversalOf: r.ReversalOf,
		Reason:     r.Reason,
		Allocation: lines,
		LoanStatus: loan.Status().String(),
		Duplicate:  duplicate,
	}
}

func toRestructureResponse(loanID string, r model.Restructure) dto.WorkflowResponse {
	return dto.WorkflowResponse{
		ID:          r.ID,
		LoanID:      loanID,
		Kind:        "RESTRUCTURE",
		Status:      string(r.Status),
		Reason:      r.Reason,
		SubmittedBy: r.SubmittedBy,
		DecidedBy:   r.DecidedBy,
		Note:        r.DecisionNote,
		Before:      toBalancesResponse(r.Before),
		Amounts:     toBalancesResponse(r.Carried),
		SubmittedAt: r.SubmittedAt,
	}
}

func toWriteOffResponse(loanID string, w model.WriteOff) dto.WorkflowResponse {
	return dto.WorkflowResponse{
		ID:          w.ID,
		LoanID:      loanID,
		Kind:        "WRITE_OFF",
		Status:      string(w.Status),
		Reason:      w.Reason,
		SubmittedBy: w.SubmittedBy,
		DecidedBy:   w.DecidedBy,
		Note:        w.DecisionNote,
		Before:      toBalancesResponse(w.Before),
		Amounts:     toBalancesResponse(w.WrittenOff),
		SubmittedAt: w.SubmittedAt,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toLoanResponse(loan model.Loan, asOf time.Time) dto.LoanResponse {
	tranches := make([]dto.TrancheResponse, 0, len(loan.Tranches()))
	for _, t := range loan.Tranches() {
		tranches = append(tranches, dto.TrancheResponse{
			Sequence:        t.Sequence,
			Milestone:       t.Milestone,
			PlannedAmount:   t.PlannedAmount,
			DisbursedAmount: t.DisbursedAmount,
			Verification:    string(t.Verification),
			VerifiedBy:      t.VerifiedBy,
			DisbursedAt:     optionalTime(t.DisbursedAt),
		})
	}

	repayments := make([]dto.RepaymentResponse, 0, len(loan.Repayments()))
	for _, r := range loan.Repayments() {
		repayments = append(repayments, toRepaymentResponse(loan, r, false))
	}

	var workouts []dto.WorkflowResponse
	for _, r := range loan.Restructures() {
		workouts = append(workouts, toRestructureResponse(loan.ID(), r))
	}
	for _, w := range loan.WriteOffs() {
		workouts = append(workouts, toWriteOffResponse(loan.ID(), w))
	}

	return dto.LoanResponse{
		ID:              loan.ID(),
		TenantID:        loan.TenantID(),
		MemberID:        loan.MemberID(),
		ProductID:       loan.ProductID(),
		ProductVersion:  loan.ProductVersion(),
		Purpose:         loan.Purpose(),
		Status:          loan.Status().String(),
		Currency:        loan.Terms().Currency.Code(),
		RequestedAmount: loan.RequestedAmount(),
		Principal:       loan.Principal(),
		TotalDisbursed:  loan.TotalDisbursed(),
		Installments:    loan.Installments(),
		Generation:      loan.Generation(),
		ApprovedBy:      loan.ApprovedBy(),
		DecisionReason:  loan.DecisionReason(),
		Outstanding:     toBalancesResponse(loan.Outstanding()),
		Schedule:        toScheduleResponse(loan.Schedule(), asOf),
		Tranches:        tranches,
		Repayments:      repayments,
		Workouts:        workouts,
		CollateralIDs:   loan.CollateralIDs(),
		GuarantorIDs:    loan.GuarantorIDs(),
		ActivatedAt:     optionalTime(loan.ActivatedAt()),
		ExpectedEndDate: optionalTime(loan.ExpectedEndDate()),
		Version:         loan.Version(),
		CreatedAt:       loan.CreatedAt(),
		UpdatedAt:       loan.UpdatedAt(),
	}
}

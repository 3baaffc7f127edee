package service

import (
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
	"github.com/bibbank/microfinance/pkg/money"
)

// RestructureEngine computes replacement schedules.
type RestructureEngine struct{}

// NewRestructureEngine returns a new engine instance.
func NewRestructureEngine() *RestructureEngine {
	return &RestructureEngine{}
}

// Plan builds a new schedule over the outstanding principal less any waived
// principal. Interest, fees and penalties already due but unpaid are carried
// into the first new installment, less any waived interest; charges not yet
// due on the old schedule are dropped in favour of the new terms.
func (e *RestructureEngine) Plan(in model.RestructureInput) (model.RestructurePlan, error) {
	before := model.OutstandingBalances(in.Entries)

	var arrears model.Balances
	for _, en := range in.Entries {
		if !en.IsDue(in.StartDate) {
			continue
		}
		arrears.Interest = arrears.Interest.Add(money.NonNegative(en.Remaining(valueobject.ComponentInterest)))
		arrears.Fees = arrears.Fees.Add(money.NonNegative(en.Remaining(valueobject.ComponentFee)))
		arrears.Penalties = arrears.Penalties.Add(money.NonNegative(en.Remaining(valueobject.ComponentPenalty)))
	}
	carried := model.Balances{
		Interest:  money.NonNegative(arrears.Interest.Sub(in.Terms.WaivedInterest)),
		Fees:      arrears.Fees,
		Penalties: arrears.Penalties,
	}

	principal := before.Principal.Sub(in.Terms.WaivedPrincipal)
	sched, err := model.GenerateSchedule(model.ScheduleParams{
		StartDate:           in.StartDate,
		Principal:           principal,
		AnnualRate:          in.Terms.AnnualRate,
		Frequency:           in.Terms.Frequency,
		Method:              in.Terms.Method,
		InstallmentFees:     in.InstallmentFees,
		Installments:        in.Terms.Installments,
		GracePeriods:        in.Terms.GracePeriods,
		InterestDuringGrace: in.InterestDuringGrace,
		Generation:          in.NextGeneration,
		Precision:           in.Precision,
	})
	if err != nil {
		return model.RestructurePlan{}, err
	}
	sched[0].InterestDue = sched[0].InterestDue.Add(carried.Interest)
	sched[0].FeeDue = sched[0].FeeDue.Add(carried.Fees)
	sched[0].PenaltyDue = sched[0].PenaltyDue.Add(carried.Penalties)

	plan := model.RestructurePlan{Before: before, Carried: carried, Schedule: sched}
	if !plan.ConservesPrincipal(in.Terms.WaivedPrincipal) {
		return model.RestructurePlan{}, &model.AllocationInvariantError{Invariant: "restructure does not conserve principal"}
	}
	return plan, nil
}

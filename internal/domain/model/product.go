package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/event"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
	"github.com/bibbank/microfinance/pkg/events"
	"github.com/bibbank/microfinance/pkg/money"
)

// FeeDefinition is one fee a product charges.
type FeeDefinition struct {
	Name    string                 `json:"name"`
	Kind    valueobject.FeeKind    `json:"kind"`
	Amount  decimal.Decimal        `json:"amount"`
	Trigger valueobject.FeeTrigger `json:"trigger"`
}

// Charge returns the fee on base, rounded to places.
func (f FeeDefinition) Charge(base decimal.Decimal, places int32) decimal.Decimal {
	if f.Kind == valueobject.FeeKindPercentage {
		return money.Round(base.Mul(f.Amount), places)
	}
	return money.Round(f.Amount, places)
}

func (f FeeDefinition) validate() error {
	if f.Name == "" {
		return invalid("fees.name", "is required")
	}
	if _, err := valueobject.NewFeeKind(string(f.Kind)); err != nil {
		return invalid("fees.kind", "%v", err)
	}
	if _, err := valueobject.NewFeeTrigger(string(f.Trigger)); err != nil {
		return invalid("fees.trigger", "%v", err)
	}
	if f.Amount.IsNegative() {
		return invalid("fees.amount", "must not be negative")
	}
	if f.Kind == valueobject.FeeKindPercentage && f.Amount.GreaterThan(decimal.NewFromInt(1)) {
		return invalid("fees.amount", "percentage fees are fractions and must not exceed 1")
	}
	return nil
}

// ProductTerms is the lending configuration a loan snapshots at approval. It
// is a plain value: loans keep their own copy and never read the catalog
// again while servicing.
type ProductTerms struct {
	Currency               money.Currency                 `json:"currency"`
	InterestMethod         valueobject.InterestMethod     `json:"interest_method"`
	AnnualRate             decimal.Decimal                `json:"annual_rate"`
	Frequency              valueobject.RepaymentFrequency `json:"frequency"`
	MinInstallments        int                            `json:"min_installments"`
	MaxInstallments        int                            `json:"max_installments"`
	MinPrincipal           decimal.Decimal                `json:"min_principal"`
	MaxPrincipal           decimal.Decimal                `json:"max_principal"`
	GracePeriods           int                            `json:"grace_periods"`
	InterestDuringGrace    bool                           `json:"interest_during_grace"`
	Fees                   []FeeDefinition                `json:"fees"`
	PenaltyRate            decimal.Decimal                `json:"penalty_rate"`
	AllocationOrder        []valueobject.Component        `json:"allocation_order"`
	AllocationPolicy       valueobject.AllocationPolicy   `json:"allocation_policy"`
	AllowUnderDisbursement bool                           `json:"allow_under_disbursement"`
}

// Validate checks the terms are internally consistent.
func (t ProductTerms) Validate() error {
	switch {
	case t.Currency.IsZero():
		return invalid("currency", "is required")
	case t.InterestMethod.IsZero():
		return invalid("interest_method", "is required")
	case t.Frequency.IsZero():
		return invalid("frequency", "is required")
	case t.AnnualRate.IsNegative():
		return invalid("annual_rate", "must not be negative")
	case t.MinInstallments <= 0:
		return invalid("min_installments", "must be positive")
	case t.MaxInstallments < t.MinInstallments:
		return invalid("max_installments", "must be at least min_installments")
	case !t.MinPrincipal.IsPositive():
		return invalid("min_principal", "must be positive")
	case t.MaxPrincipal.LessThan(t.MinPrincipal):
		return invalid("max_principal", "must be at least min_principal")
	case t.GracePeriods < 0:
		return invalid("grace_periods", "must not be negative")
	case t.PenaltyRate.IsNegative():
		return invalid("penalty_rate", "must not be negative")
	}
	if err := valueobject.ValidateComponentOrder(t.AllocationOrder); err != nil {
		return invalid("allocation_order", "%v", err)
	}
	if _, err := valueobject.NewAllocationPolicy(string(t.AllocationPolicy)); err != nil {
		return invalid("allocation_policy", "%v", err)
	}
	for _, f := range t.Fees {
		if err := f.validate(); err != nil {
			return err
		}
	}
	return nil
}

// PeriodicRate converts the nominal annual rate to a per-installment rate.
func (t ProductTerms) PeriodicRate() decimal.Decimal {
	if t.Frequency.IsZero() {
		return decimal.Zero
	}
	return t.AnnualRate.Div(decimal.NewFromInt(t.Frequency.PeriodsPerYear()))
}

// FeesFor returns the fee definitions charged on the given trigger.
func (t ProductTerms) FeesFor(trigger valueobject.FeeTrigger) []FeeDefinition {
	var out []FeeDefinition
	for _, f := range t.Fees {
		if f.Trigger == trigger {
			out = append(out, f)
		}
	}
	return out
}

// clone deep-copies the slices so snapshots never alias.
func (t ProductTerms) clone() ProductTerms {
	out := t
	out.Fees = append([]FeeDefinition(nil), t.Fees...)
	out.AllocationOrder = append([]valueobject.Component(nil), t.AllocationOrder...)
	return out
}

// withDefaults fills the optional allocation settings.
func (t ProductTerms) withDefaults() ProductTerms {
	out := t.clone()
	if len(out.AllocationOrder) == 0 {
		out.AllocationOrder = append([]valueobject.Component(nil), valueobject.DefaultComponentOrder...)
	}
	if out.AllocationPolicy == "" {
		out.AllocationPolicy = valueobject.AllocationStrictOldestFirst
	}
	return out
}

// ---------------------------------------------------------------------------
// LoanProduct aggregate
// ---------------------------------------------------------------------------

// LoanProduct is one immutable version of a catalog entry. Revising a product
// yields a new value with version+1; existing versions never change.
type LoanProduct struct {
	createdAt time.Time
	id        string
	tenantID  string
	code      string
	name      string
	terms     ProductTerms
	version   int
	events.EventCollector
}

// NewLoanProduct publishes version 1 of a product.
func NewLoanProduct(tenantID, code, name string, terms ProductTerms, now time.Time) (LoanProduct, error) {
	if tenantID == "" {
		return LoanProduct{}, invalid("tenant_id", "is required")
	}
	if code == "" {
		return LoanProduct{}, invalid("code", "is required")
	}
	if name == "" {
		return LoanProduct{}, invalid("name", "is required")
	}
	terms = terms.withDefaults()
	if err := terms.Validate(); err != nil {
		return LoanProduct{}, err
	}

	p := LoanProduct{
		id:        uuid.New().String(),
		tenantID:  tenantID,
		code:      code,
		name:      name,
		terms:     terms,
		version:   1,
		createdAt: now,
	}
	p.recordPublished(now)
	return p, nil
}

// Revise publishes the next version of the product with new terms.
func (p LoanProduct) Revise(name string, terms ProductTerms, now time.Time) (LoanProduct, error) {
	if name == "" {
		name = p.name
	}
	terms = terms.withDefaults()
	if err := terms.Validate(); err != nil {
		return p, err
	}
	next := p
	next.EventCollector = p.EventCollector.Clone()
	next.name = name
	next.terms = terms
	next.version = p.version + 1
	next.createdAt = now
	next.recordPublished(now)
	return next, nil
}

func (p *LoanProduct) recordPublished(now time.Time) {
	p.Record(event.NewLoanProductPublished(
		p.id, p.tenantID, p.code, p.version, p.terms.AnnualRate,
		p.terms.InterestMethod.String(), p.terms.Frequency.String(), now,
	))
}

// ReconstructLoanProduct rebuilds a product version from persistence.
func ReconstructLoanProduct(id, tenantID, code, name string, version int, terms ProductTerms, createdAt time.Time) LoanProduct {
	return LoanProduct{
		id:        id,
		tenantID:  tenantID,
		code:      code,
		name:      name,
		terms:     terms.withDefaults(),
		version:   version,
		createdAt: createdAt,
	}
}

func (p LoanProduct) ID() string           { return p.id }
func (p LoanProduct) TenantID() string     { return p.tenantID }
func (p LoanProduct) Code() string         { return p.code }
func (p LoanProduct) Name() string         { return p.name }
func (p LoanProduct) Version() int         { return p.version }
func (p LoanProduct) CreatedAt() time.Time { return p.createdAt }
func (p LoanProduct) Terms() ProductTerms  { return p.terms.clone() }

// DomainEvents returns the events raised since the product was loaded.
func (p LoanProduct) DomainEvents() []event.DomainEvent { return p.Events() }

// PreviewSchedule generates the schedule a loan of principal over
// installments would receive if disbursed at start. Nothing is recorded.
func (p LoanProduct) PreviewSchedule(principal decimal.Decimal, installments int, start time.Time) ([]ScheduleEntry, error) {
	if err := checkAgainstTerms(p.terms, principal, installments, "principal"); err != nil {
		return nil, err
	}
	sched, err := GenerateSchedule(ScheduleParams{
		StartDate:           start,
		Principal:           principal,
		AnnualRate:          p.terms.AnnualRate,
		Frequency:           p.terms.Frequency,
		Method:              p.terms.InterestMethod,
		InstallmentFees:     p.terms.FeesFor(valueobject.FeeTriggerInstallment),
		Installments:        installments,
		GracePeriods:        p.terms.GracePeriods,
		InterestDuringGrace: p.terms.InterestDuringGrace,
		Generation:          1,
		Precision:           p.terms.Currency.Precision(),
	})
	if err != nil {
		return nil, err
	}
	for _, f := range p.terms.FeesFor(valueobject.FeeTriggerDisbursement) {
		sched[0].FeeDue = sched[0].FeeDue.Add(f.Charge(principal, p.terms.Currency.Precision()))
	}
	return sched, nil
}

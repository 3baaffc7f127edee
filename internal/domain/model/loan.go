package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/event"
	"github.com/bibbank/microfinance/internal/domain/valueobject"
	"github.com/bibbank/microfinance/pkg/events"
)

// ---------------------------------------------------------------------------
// Loan aggregate root
// ---------------------------------------------------------------------------

// Loan is an immutable aggregate. Every mutation returns a new copy carrying
// the events it raised; the receiver is never modified. The loan exclusively
// owns its schedule, repayment ledger, tranches and workout records.
type Loan struct {
	createdAt       time.Time
	updatedAt       time.Time
	approvedAt      time.Time
	activatedAt     time.Time
	expectedEndDate time.Time

	requestedAmount decimal.Decimal
	principal       decimal.Decimal
	totalDisbursed  decimal.Decimal
	approvalLimit   decimal.Decimal
	outstanding     Balances
	terms           ProductTerms

	status         valueobject.LoanStatus
	id             string
	tenantID       string
	memberID       string
	productID      string
	purpose        string
	approvedBy     string
	decisionReason string

	schedule      []ScheduleEntry
	archived      []ScheduleEntry
	repayments    []Repayment
	tranches      []Tranche
	restructures  []Restructure
	writeOffs     []WriteOff
	collateralIDs []string
	guarantorIDs  []string

	productVersion int
	installments   int
	generation     int
	version        int
	changed        bool

	events.EventCollector
}

// NewLoan opens a draft loan for a member against a product version. The
// product terms are provisional until approval snapshots them.
func NewLoan(
	tenantID, memberID string,
	product LoanProduct,
	requested decimal.Decimal,
	installments int,
	purpose string,
	now time.Time,
) (Loan, error) {
	if tenantID == "" {
		return Loan{}, invalid("tenant_id", "is required")
	}
	if memberID == "" {
		return Loan{}, invalid("member_id", "is required")
	}
	if product.ID() == "" {
		return Loan{}, invalid("product_id", "is required")
	}
	if product.TenantID() != tenantID {
		return Loan{}, invalid("product_id", "belongs to another tenant")
	}
	terms := product.Terms()
	if err := checkAgainstTerms(terms, requested, installments, "requested_amount"); err != nil {
		return Loan{}, err
	}

	l := Loan{
		id:              uuid.New().String(),
		tenantID:        tenantID,
		memberID:        memberID,
		productID:       product.ID(),
		productVersion:  product.Version(),
		terms:           terms,
		requestedAmount: requested,
		installments:    installments,
		purpose:         purpose,
		status:          valueobject.LoanStatusDraft,
		createdAt:       now,
		updatedAt:       now,
		changed:         true,
	}
	l.Record(event.NewLoanCreated(
		l.id, tenantID, memberID, l.productID, l.productVersion,
		requested, terms.Currency.Code(), now,
	))
	return l, nil
}

func checkAgainstTerms(terms ProductTerms, amount decimal.Decimal, installments int, field string) error {
	if !amount.IsPositive() {
		return invalid(field, "must be positive")
	}
	if amount.LessThan(terms.MinPrincipal) || amount.GreaterThan(terms.MaxPrincipal) {
		return invalid(field, "%s outside product range %s..%s", amount, terms.MinPrincipal, terms.MaxPrincipal)
	}
	if installments < terms.MinInstallments || installments > terms.MaxInstallments {
		return invalid("installments", "%d outside product range %d..%d", installments, terms.MinInstallments, terms.MaxInstallments)
	}
	if !amount.Equal(amount.Round(terms.Currency.Precision())) {
		return invalid(field, "has more than %d decimal places", terms.Currency.Precision())
	}
	return nil
}

// mutate returns a private copy of l ready to be changed: slices that may be
// written are copied and the event list is detached.
func (l Loan) mutate(now time.Time) Loan {
	next := l
	next.EventCollector = l.EventCollector.Clone()
	next.schedule = cloneEntries(l.schedule)
	next.tranches = append([]Tranche(nil), l.tranches...)
	next.restructures = append([]Restructure(nil), l.restructures...)
	next.writeOffs = append([]WriteOff(nil), l.writeOffs...)
	next.repayments = append([]Repayment(nil), l.repayments...)
	next.updatedAt = now
	next.changed = true
	return next
}

// setStatus moves to the next lifecycle state if the transition table allows it.
func (l *Loan) setStatus(next valueobject.LoanStatus, transition string) error {
	if !l.status.CanTransitionTo(next) {
		return &InvalidStateTransitionError{
			LoanID:     l.id,
			Current:    l.status,
			Transition: transition,
			Required:   "a state that may move to " + next.String(),
		}
	}
	l.status = next
	return nil
}

// refreshBalances recomputes the running totals from the live schedule.
func (l *Loan) refreshBalances() {
	switch {
	case l.status.In(valueobject.LoanStatusActive, valueobject.LoanStatusRestructured, valueobject.LoanStatusDefaulted, valueobject.LoanStatusClosed):
		l.outstanding = OutstandingBalances(l.schedule)
	case l.status.Equal(valueobject.LoanStatusPartiallyDisbursed):
		l.outstanding = Balances{Principal: l.totalDisbursed}
	default:
		l.outstanding = Balances{}
	}
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

// LoanState is the flat persistence form of a loan.
type LoanState struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ApprovedAt      time.Time
	ActivatedAt     time.Time
	ExpectedEndDate time.Time
	RequestedAmount decimal.Decimal
	Principal       decimal.Decimal
	TotalDisbursed  decimal.Decimal
	ApprovalLimit   decimal.Decimal
	Outstanding     Balances
	Terms           ProductTerms
	Status          valueobject.LoanStatus
	ID              string
	TenantID        string
	MemberID        string
	ProductID       string
	Purpose         string
	ApprovedBy      string
	DecisionReason  string
	Schedule        []ScheduleEntry
	Archived        []ScheduleEntry
	Repayments      []Repayment
	Tranches        []Tranche
	Restructures    []Restructure
	WriteOffs       []WriteOff
	CollateralIDs   []string
	GuarantorIDs    []string
	ProductVersion  int
	Installments    int
	Generation      int
	Version         int
}

// ReconstructLoan rebuilds a Loan aggregate from persistence.
func ReconstructLoan(s LoanState) Loan {
	return Loan{
		createdAt:       s.CreatedAt,
		updatedAt:       s.UpdatedAt,
		approvedAt:      s.ApprovedAt,
		activatedAt:     s.ActivatedAt,
		expectedEndDate: s.ExpectedEndDate,
		requestedAmount: s.RequestedAmount,
		principal:       s.Principal,
		totalDisbursed:  s.TotalDisbursed,
		approvalLimit:   s.ApprovalLimit,
		outstanding:     s.Outstanding,
		terms:           s.Terms.withDefaults(),
		status:          s.Status,
		id:              s.ID,
		tenantID:        s.TenantID,
		memberID:        s.MemberID,
		productID:       s.ProductID,
		purpose:         s.Purpose,
		approvedBy:      s.ApprovedBy,
		decisionReason:  s.DecisionReason,
		schedule:        s.Schedule,
		archived:        s.Archived,
		repayments:      s.Repayments,
		tranches:        s.Tranches,
		restructures:    s.Restructures,
		writeOffs:       s.WriteOffs,
		collateralIDs:   s.CollateralIDs,
		guarantorIDs:    s.GuarantorIDs,
		productVersion:  s.ProductVersion,
		installments:    s.Installments,
		generation:      s.Generation,
		version:         s.Version,
	}
}

// Snapshot returns the persistence form of the loan. Slices are copies.
func (l Loan) Snapshot() LoanState {
	return LoanState{
		CreatedAt:       l.createdAt,
		UpdatedAt:       l.updatedAt,
		ApprovedAt:      l.approvedAt,
		ActivatedAt:     l.activatedAt,
		ExpectedEndDate: l.expectedEndDate,
		RequestedAmount: l.requestedAmount,
		Principal:       l.principal,
		TotalDisbursed:  l.totalDisbursed,
		ApprovalLimit:   l.approvalLimit,
		Outstanding:     l.outstanding,
		Terms:           l.terms.clone(),
		Status:          l.status,
		ID:              l.id,
		TenantID:        l.tenantID,
		MemberID:        l.memberID,
		ProductID:       l.productID,
		Purpose:         l.purpose,
		ApprovedBy:      l.approvedBy,
		DecisionReason:  l.decisionReason,
		Schedule:        cloneEntries(l.schedule),
		Archived:        cloneEntries(l.archived),
		Repayments:      append([]Repayment(nil), l.repayments...),
		Tranches:        append([]Tranche(nil), l.tranches...),
		Restructures:    append([]Restructure(nil), l.restructures...),
		WriteOffs:       append([]WriteOff(nil), l.writeOffs...),
		CollateralIDs:   append([]string(nil), l.collateralIDs...),
		GuarantorIDs:    append([]string(nil), l.guarantorIDs...),
		ProductVersion:  l.productVersion,
		Installments:    l.installments,
		Generation:      l.generation,
		Version:         l.version,
	}
}

// Persisted returns the loan as stored at version v, with pending events
// cleared. Callers use it after a successful save.
func (l Loan) Persisted(v int) Loan {
	next := l
	next.version = v
	next.changed = false
	next.EventCollector = events.EventCollector{}
	return next
}

// HasChanges reports whether the loan was mutated since it was loaded.
func (l Loan) HasChanges() bool { return l.changed }

// RequireStatus fails with *InvalidStateTransitionError unless the loan is in
// one of the allowed states.
func (l Loan) RequireStatus(transition string, allowed ...valueobject.LoanStatus) error {
	return requireStatus(l.id, l.status, transition, allowed...)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (l Loan) ID() string                            { return l.id }
func (l Loan) TenantID() string                      { return l.tenantID }
func (l Loan) MemberID() string                      { return l.memberID }
func (l Loan) ProductID() string                     { return l.productID }
func (l Loan) ProductVersion() int                   { return l.productVersion }
func (l Loan) Purpose() string                       { return l.purpose }
func (l Loan) Status() valueobject.LoanStatus        { return l.status }
func (l Loan) RequestedAmount() decimal.Decimal      { return l.requestedAmount }
func (l Loan) Principal() decimal.Decimal            { return l.principal }
func (l Loan) TotalDisbursed() decimal.Decimal       { return l.totalDisbursed }
func (l Loan) Installments() int                     { return l.installments }
func (l Loan) Generation() int                       { return l.generation }
func (l Loan) ApprovedBy() string                    { return l.approvedBy }
func (l Loan) ApprovalLimit() decimal.Decimal        { return l.approvalLimit }
func (l Loan) DecisionReason() string                { return l.decisionReason }
func (l Loan) ApprovedAt() time.Time                 { return l.approvedAt }
func (l Loan) ActivatedAt() time.Time                { return l.activatedAt }
func (l Loan) ExpectedEndDate() time.Time            { return l.expectedEndDate }
func (l Loan) Version() int                          { return l.version }
func (l Loan) CreatedAt() time.Time                  { return l.createdAt }
func (l Loan) UpdatedAt() time.Time                  { return l.updatedAt }
func (l Loan) Terms() ProductTerms                   { return l.terms.clone() }
func (l Loan) Outstanding() Balances                 { return l.outstanding }
func (l Loan) OutstandingPrincipal() decimal.Decimal { return l.outstanding.Principal }
func (l Loan) OutstandingInterest() decimal.Decimal  { return l.outstanding.Interest }
func (l Loan) DomainEvents() []event.DomainEvent     { return l.Events() }

// Schedule returns a copy of the live schedule.
func (l Loan) Schedule() []ScheduleEntry { return cloneEntries(l.schedule) }

// ArchivedSchedule returns superseded entries from earlier generations.
func (l Loan) ArchivedSchedule() []ScheduleEntry { return cloneEntries(l.archived) }

// Repayments returns a copy of the repayment ledger in recording order.
func (l Loan) Repayments() []Repayment { return append([]Repayment(nil), l.repayments...) }

// Tranches returns a copy of the disbursement plan.
func (l Loan) Tranches() []Tranche { return append([]Tranche(nil), l.tranches...) }

// Restructures returns every restructure request ever submitted.
func (l Loan) Restructures() []Restructure { return append([]Restructure(nil), l.restructures...) }

// WriteOffs returns every write-off request ever submitted.
func (l Loan) WriteOffs() []WriteOff { return append([]WriteOff(nil), l.writeOffs...) }

// CollateralIDs returns the back-references to pledged collateral.
func (l Loan) CollateralIDs() []string { return append([]string(nil), l.collateralIDs...) }

// GuarantorIDs returns the back-references to guarantors.
func (l Loan) GuarantorIDs() []string { return append([]string(nil), l.guarantorIDs...) }

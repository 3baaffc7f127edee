package valueobject

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// InterestMethod
// ---------------------------------------------------------------------------

// InterestMethod selects how installment interest is computed.
type InterestMethod struct {
	value string
}

var (
	InterestMethodFlat            = InterestMethod{value: "FLAT"}
	InterestMethodReducingBalance = InterestMethod{value: "REDUCING_BALANCE"}
)

// NewInterestMethod parses a raw interest method.
func NewInterestMethod(s string) (InterestMethod, error) {
	switch s {
	case InterestMethodFlat.value:
		return InterestMethodFlat, nil
	case InterestMethodReducingBalance.value:
		return InterestMethodReducingBalance, nil
	}
	return InterestMethod{}, fmt.Errorf("invalid interest method: %q", s)
}

func (m InterestMethod) String() string {
	return m.value
}

func (m InterestMethod) IsZero() bool {
	return m.value == ""
}

func (m InterestMethod) Equal(other InterestMethod) bool {
	return m.value == other.value
}

// ---------------------------------------------------------------------------
// RepaymentFrequency
// ---------------------------------------------------------------------------

// RepaymentFrequency is the spacing between installments.
type RepaymentFrequency struct {
	value          string
	periodsPerYear int64
	days           int
	months         int
}

var (
	FrequencyWeekly   = RepaymentFrequency{value: "WEEKLY", periodsPerYear: 52, days: 7}
	FrequencyBiweekly = RepaymentFrequency{value: "BIWEEKLY", periodsPerYear: 26, days: 14}
	FrequencyMonthly  = RepaymentFrequency{value: "MONTHLY", periodsPerYear: 12, months: 1}
)

// NewRepaymentFrequency parses a raw frequency.
func NewRepaymentFrequency(s string) (RepaymentFrequency, error) {
	for _, f := range []RepaymentFrequency{FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly} {
		if f.value == s {
			return f, nil
		}
	}
	return RepaymentFrequency{}, fmt.Errorf("invalid repayment frequency: %q", s)
}

func (f RepaymentFrequency) String() string {
	return f.value
}

func (f RepaymentFrequency) IsZero() bool {
	return f.value == ""
}

func (f RepaymentFrequency) Equal(other RepaymentFrequency) bool {
	return f.value == other.value
}

// PeriodsPerYear is used to derive the periodic rate from an annual rate.
func (f RepaymentFrequency) PeriodsPerYear() int64 {
	return f.periodsPerYear
}

// DueDate returns the date n periods after start. Monthly steps keep the
// start day-of-month, clamped to the last day of shorter months.
func (f RepaymentFrequency) DueDate(start time.Time, n int) time.Time {
	if f.months == 0 {
		return start.AddDate(0, 0, f.days*n)
	}
	y, m, d := start.Date()
	first := time.Date(y, m+time.Month(f.months*n), 1, 0, 0, 0, 0, start.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, start.Location())
}

func (m InterestMethod) MarshalText() ([]byte, error) { return []byte(m.value), nil }

func (m *InterestMethod) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = InterestMethod{}
		return nil
	}
	v, err := NewInterestMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (f RepaymentFrequency) MarshalText() ([]byte, error) { return []byte(f.value), nil }

func (f *RepaymentFrequency) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*f = RepaymentFrequency{}
		return nil
	}
	v, err := NewRepaymentFrequency(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

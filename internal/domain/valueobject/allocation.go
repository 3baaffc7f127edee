package valueobject

import "fmt"

// Component is one of the balances a repayment can settle.
type Component string

const (
	ComponentPenalty   Component = "PENALTY"
	ComponentFee       Component = "FEE"
	ComponentInterest  Component = "INTEREST"
	ComponentPrincipal Component = "PRINCIPAL"
)

// DefaultComponentOrder settles penalties first and principal last.
var DefaultComponentOrder = []Component{ComponentPenalty, ComponentFee, ComponentInterest, ComponentPrincipal}

// NewComponent parses a raw component name.
func NewComponent(s string) (Component, error) {
	switch c := Component(s); c {
	case ComponentPenalty, ComponentFee, ComponentInterest, ComponentPrincipal:
		return c, nil
	}
	return "", fmt.Errorf("invalid allocation component: %q", s)
}

// ValidateComponentOrder checks that order is a permutation of all four
// components.
func ValidateComponentOrder(order []Component) error {
	if len(order) != len(DefaultComponentOrder) {
		return fmt.Errorf("component order must list %d components, got %d", len(DefaultComponentOrder), len(order))
	}
	seen := make(map[Component]bool, len(order))
	for _, c := range order {
		if _, err := NewComponent(string(c)); err != nil {
			return err
		}
		if seen[c] {
			return fmt.Errorf("component %s listed twice", c)
		}
		seen[c] = true
	}
	return nil
}

// IsWaivable reports whether a waiver may touch c. Principal is only
// waived as part of a restructure.
func (c Component) IsWaivable() bool {
	return c == ComponentInterest || c == ComponentFee || c == ComponentPenalty
}

// AllocationPolicy controls how a payment is spread across due installments.
type AllocationPolicy string

const (
	// AllocationStrictOldestFirst clears every component of the oldest due
	// installment before touching the next one.
	AllocationStrictOldestFirst AllocationPolicy = "STRICT_OLDEST_FIRST"
	// AllocationFillAnyDue settles one component across all due
	// installments, oldest first, before moving to the next component.
	AllocationFillAnyDue AllocationPolicy = "FILL_ANY_DUE"
)

// NewAllocationPolicy parses a raw policy; empty means STRICT_OLDEST_FIRST.
func NewAllocationPolicy(s string) (AllocationPolicy, error) {
	switch p := AllocationPolicy(s); p {
	case "":
		return AllocationStrictOldestFirst, nil
	case AllocationStrictOldestFirst, AllocationFillAnyDue:
		return p, nil
	}
	return "", fmt.Errorf("invalid allocation policy: %q", s)
}

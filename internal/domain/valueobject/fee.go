package valueobject

import "fmt"

// FeeKind says how a fee amount is interpreted.
type FeeKind string

const (
	// FeeKindFlat is a fixed amount in the loan currency.
	FeeKindFlat FeeKind = "FLAT"
	// FeeKindPercentage is a fraction (0.02 = 2%) of the base amount.
	FeeKindPercentage FeeKind = "PERCENTAGE"
)

// NewFeeKind parses a raw fee kind.
func NewFeeKind(s string) (FeeKind, error) {
	switch k := FeeKind(s); k {
	case FeeKindFlat, FeeKindPercentage:
		return k, nil
	}
	return "", fmt.Errorf("invalid fee kind: %q", s)
}

// FeeTrigger says when a fee is charged.
type FeeTrigger string

const (
	// FeeTriggerDisbursement is charged once, on the first installment.
	FeeTriggerDisbursement FeeTrigger = "AT_DISBURSEMENT"
	// FeeTriggerInstallment is charged on every installment.
	FeeTriggerInstallment FeeTrigger = "PER_INSTALLMENT"
)

// NewFeeTrigger parses a raw fee trigger.
func NewFeeTrigger(s string) (FeeTrigger, error) {
	switch t := FeeTrigger(s); t {
	case FeeTriggerDisbursement, FeeTriggerInstallment:
		return t, nil
	}
	return "", fmt.Errorf("invalid fee trigger: %q", s)
}

// Package money holds currency metadata and the rounding helpers every
// monetary calculation in the service goes through.
package money

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// minorUnits lists currencies whose precision differs from the default of 2.
var minorUnits = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"UGX": 0,
	"RWF": 0,
	"XOF": 0,
	"XAF": 0,
	"BHD": 3,
	"KWD": 3,
	"TND": 3,
}

// DefaultPrecision is used for currencies not listed in minorUnits.
const DefaultPrecision int32 = 2

// Currency is an ISO 4217 currency code together with its minor-unit precision.
type Currency struct {
	code      string
	precision int32
}

// NewCurrency creates a Currency after validating the code is exactly 3 uppercase letters.
func NewCurrency(code string) (Currency, error) {
	if !currencyCodeRe.MatchString(code) {
		return Currency{}, fmt.Errorf("invalid currency code %q: must be exactly 3 uppercase letters", code)
	}
	p, ok := minorUnits[code]
	if !ok {
		p = DefaultPrecision
	}
	return Currency{code: code, precision: p}, nil
}

// MustCurrency creates a Currency and panics on error. Intended for package-level variable
// initialization only.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Code returns the ISO 4217 currency code.
func (c Currency) Code() string { return c.code }

// Precision returns the number of decimal places amounts are kept at.
func (c Currency) Precision() int32 { return c.precision }

// String returns the currency code.
func (c Currency) String() string { return c.code }

// IsZero reports whether the currency was never initialised.
func (c Currency) IsZero() bool { return c.code == "" }

// MarshalText encodes the currency as its code.
func (c Currency) MarshalText() ([]byte, error) {
	return []byte(c.code), nil
}

// UnmarshalText decodes a currency code, restoring its precision.
func (c *Currency) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*c = Currency{}
		return nil
	}
	parsed, err := NewCurrency(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Common currencies.
var (
	USD = MustCurrency("USD")
	KES = MustCurrency("KES")
	UGX = MustCurrency("UGX")
)

// RoundDown truncates d toward zero at the given number of places.
func RoundDown(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundDown(places)
}

// Round rounds d half away from zero at the given number of places.
func Round(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// Sum adds all amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// NonNegative clamps negative amounts to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// SplitEvenly divides total into n parts rounded down to places; the last
// part absorbs the rounding remainder so the parts sum to total exactly.
func SplitEvenly(total decimal.Decimal, n int, places int32) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	parts := make([]decimal.Decimal, n)
	share := RoundDown(total.Div(decimal.NewFromInt(int64(n))), places)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		parts[i] = share
		allocated = allocated.Add(share)
	}
	parts[n-1] = total.Sub(allocated)
	return parts
}

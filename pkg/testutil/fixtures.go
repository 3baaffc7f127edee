package testutil

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fixed identities and dates for deterministic tests.
const (
	TestTenantID  = "tenant-test"
	TestMemberID  = "member-test"
	TestOfficerID = "officer-test"
	TestManagerID = "manager-test"
)

// Jan1 is the reference disbursement date used across tests.
var Jan1 = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// Dec parses a decimal literal and panics on malformed input.
func Dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// FixedClock always reports the same instant.
type FixedClock struct{ At time.Time }

// Now implements the clock port.
func (c FixedClock) Now() time.Time { return c.At }

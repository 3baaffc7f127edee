package auth

import (
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

// Claims are the JWT claims carried by lending staff and integrations.
// ApprovalLimit is a decimal string; an empty limit grants no approval
// authority.
type Claims struct {
	jwt.RegisteredClaims
	UserID        string   `json:"user_id"`
	TenantID      string   `json:"tenant_id"`
	ApprovalLimit string   `json:"approval_limit,omitempty"`
	Roles         []string `json:"roles"`
}

// HasRole checks if the claims include the specified role.
func (c Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// HasAnyRole reports whether the claims include at least one of roles.
func (c Claims) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if c.HasRole(r) {
			return true
		}
	}
	return false
}

// Limit parses the approval limit. A missing claim yields zero.
func (c Claims) Limit() (decimal.Decimal, error) {
	if c.ApprovalLimit == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(c.ApprovalLimit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("approval_limit claim: %w", err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("approval_limit claim: must not be negative")
	}
	return d, nil
}

// Role constants
const (
	RoleAdmin         = "admin"
	RoleLoanOfficer   = "loan_officer"
	RoleCreditManager = "credit_manager"
	RoleCollections   = "collections"
	RoleAuditor       = "auditor"
	RoleIntegration   = "integration"
)

package adapter

import (
	"context"
	"fmt"

	"github.com/bibbank/microfinance/internal/domain/port"
	"github.com/bibbank/microfinance/pkg/auth"
)

// ClaimsApprovalAuthority resolves approval authority from the JWT claims the
// auth interceptor placed on the context. Only credit managers and admins may
// approve; their limit comes from the approval_limit claim.
type ClaimsApprovalAuthority struct{}

// NewClaimsApprovalAuthority creates the adapter.
func NewClaimsApprovalAuthority() *ClaimsApprovalAuthority {
	return &ClaimsApprovalAuthority{}
}

// Authorize implements port.ApprovalAuthority.
func (ClaimsApprovalAuthority) Authorize(ctx context.Context, tenantID string) (port.ApprovalGrant, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return port.ApprovalGrant{}, fmt.Errorf("%w: no caller identity", port.ErrNotAuthorized)
	}
	if claims.TenantID != tenantID {
		return port.ApprovalGrant{}, fmt.Errorf("%w: caller belongs to another tenant", port.ErrNotAuthorized)
	}
	if !claims.HasAnyRole(auth.RoleCreditManager, auth.RoleAdmin) {
		return port.ApprovalGrant{}, fmt.Errorf("%w: user %s lacks an approver role", port.ErrNotAuthorized, claims.UserID)
	}
	limit, err := claims.Limit()
	if err != nil {
		return port.ApprovalGrant{}, fmt.Errorf("%w: %w", port.ErrNotAuthorized, err)
	}
	return port.ApprovalGrant{ApproverID: claims.UserID, Limit: limit}, nil
}

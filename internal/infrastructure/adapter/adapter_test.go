package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microfinance/internal/domain/port"
	"github.com/bibbank/microfinance/pkg/auth"
)

func TestClaimsApprovalAuthority(t *testing.T) {
	authority := NewClaimsApprovalAuthority()
	withClaims := func(c auth.Claims) context.Context {
		return auth.ContextWithClaims(context.Background(), &c)
	}

	t.Run("credit manager gets their limit", func(t *testing.T) {
		ctx := withClaims(auth.Claims{UserID: "mgr-1", TenantID: "t1", Roles: []string{auth.RoleCreditManager}, ApprovalLimit: "5000"})

		grant, err := authority.Authorize(ctx, "t1")

		require.NoError(t, err)
		assert.Equal(t, "mgr-1", grant.ApproverID)
		assert.Equal(t, "5000", grant.Limit.String())
	})

	t.Run("admin without a limit claim gets zero", func(t *testing.T) {
		grant, err := authority.Authorize(withClaims(auth.Claims{UserID: "root", TenantID: "t1", Roles: []string{auth.RoleAdmin}}), "t1")

		require.NoError(t, err)
		assert.True(t, grant.Limit.IsZero())
	})

	cases := map[string]context.Context{
		"anonymous":       context.Background(),
		"other tenant":    withClaims(auth.Claims{UserID: "mgr-1", TenantID: "t2", Roles: []string{auth.RoleCreditManager}}),
		"officer":         withClaims(auth.Claims{UserID: "off-1", TenantID: "t1", Roles: []string{auth.RoleLoanOfficer}}),
		"malformed limit": withClaims(auth.Claims{UserID: "mgr-1", TenantID: "t1", Roles: []string{auth.RoleCreditManager}, ApprovalLimit: "lots"}),
	}
	for name, ctx := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := authority.Authorize(ctx, "t1")
			assert.ErrorIs(t, err, port.ErrNotAuthorized)
		})
	}
}

func TestSystemClock(t *testing.T) {
	now := SystemClock{}.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

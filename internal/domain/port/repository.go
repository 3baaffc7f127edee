package port

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microfinance/internal/domain/model"
)

// ---------------------------------------------------------------------------
// Repository ports (driven/secondary adapters)
// ---------------------------------------------------------------------------

// LoanRepository persists and retrieves loan aggregates. Save is the only
// write path: it stores the aggregate and its pending domain events in one
// transaction, and fails with *model.ConcurrencyConflictError when the stored
// version differs from expectedVersion. A new loan is saved with version 0.
type LoanRepository interface {
	Save(ctx context.Context, loan model.Loan, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, id string) (model.Loan, error)
	FindByMember(ctx context.Context, tenantID, memberID string) ([]model.Loan, error)
}

// ProductRepository persists product versions. Versions are append-only.
type ProductRepository interface {
	Save(ctx context.Context, product model.LoanProduct) error
	FindByID(ctx context.Context, tenantID, id string) (model.LoanProduct, error)
	FindVersion(ctx context.Context, tenantID, id string, version int) (model.LoanProduct, error)
}

// ProductCache is a read-through cache of the latest product version.
// Misses return found == false without error.
type ProductCache interface {
	Get(ctx context.Context, tenantID, id string) (product model.LoanProduct, found bool, err error)
	Set(ctx context.Context, product model.LoanProduct) error
	Invalidate(ctx context.Context, tenantID, id string) error
}

// ---------------------------------------------------------------------------
// External collaborator ports
// ---------------------------------------------------------------------------

// ApprovalGrant is the authority an approver holds for one decision.
type ApprovalGrant struct {
	ApproverID string
	Limit      decimal.Decimal
}

// ApprovalAuthority resolves the caller's approval authority from ctx. It
// returns an error wrapping ErrNotAuthorized when the caller may not approve
// loans at all.
type ApprovalAuthority interface {
	Authorize(ctx context.Context, tenantID string) (ApprovalGrant, error)
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ErrNotAuthorized is returned by ApprovalAuthority for callers without
// approval rights.
var ErrNotAuthorized = errors.New("not authorized to approve loans")

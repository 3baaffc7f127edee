package grpc

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bibbank/microfinance/internal/application/usecase"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/service"
	"github.com/bibbank/microfinance/internal/infrastructure/adapter"
	"github.com/bibbank/microfinance/pkg/testutil"
)

type memLoanRepo struct {
	loans map[string]model.Loan
}

func (m *memLoanRepo) Save(_ context.Context, loan model.Loan, expectedVersion int) error {
	if current, ok := m.loans[loan.ID()]; ok && current.Version() != expectedVersion {
		return &model.ConcurrencyConflictError{AggregateType: "Loan", AggregateID: loan.ID(), Expected: expectedVersion}
	}
	m.loans[loan.ID()] = loan.Persisted(expectedVersion + 1)
	return nil
}

func (m *memLoanRepo) FindByID(_ context.Context, tenantID, id string) (model.Loan, error) {
	loan, ok := m.loans[id]
	if !ok || loan.TenantID() != tenantID {
		return model.Loan{}, fmt.Errorf("loan %s: %w", id, model.ErrNotFound)
	}
	return loan, nil
}

func (m *memLoanRepo) FindByMember(_ context.Context, tenantID, memberID string) ([]model.Loan, error) {
	var out []model.Loan
	for _, l := range m.loans {
		if l.TenantID() == tenantID && l.MemberID() == memberID {
			out = append(out, l)
		}
	}
	return out, nil
}

type memProductRepo struct {
	versions map[string][]model.LoanProduct
}

func (m *memProductRepo) Save(_ context.Context, product model.LoanProduct) error {
	m.versions[product.ID()] = append(m.versions[product.ID()], product)
	return nil
}

func (m *memProductRepo) FindByID(_ context.Context, tenantID, id string) (model.LoanProduct, error) {
	vs := m.versions[id]
	if len(vs) == 0 || vs[0].TenantID() != tenantID {
		return model.LoanProduct{}, fmt.Errorf("product %s: %w", id, model.ErrNotFound)
	}
	return vs[len(vs)-1], nil
}

func (m *memProductRepo) FindVersion(_ context.Context, tenantID, id string, version int) (model.LoanProduct, error) {
	vs := m.versions[id]
	if version < 1 || version > len(vs) || vs[0].TenantID() != tenantID {
		return model.LoanProduct{}, fmt.Errorf("product %s v%d: %w", id, version, model.ErrNotFound)
	}
	return vs[version-1], nil
}

// nopCache always misses.
type nopCache struct{}

func (nopCache) Get(context.Context, string, string) (model.LoanProduct, bool, error) {
	return model.LoanProduct{}, false, nil
}
func (nopCache) Set(context.Context, model.LoanProduct) error     { return nil }
func (nopCache) Invalidate(context.Context, string, string) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestHandler wires every use case over in-memory adapters and the real
// claims-based approval authority.
func newTestHandler() *LoanHandler {
	loans := &memLoanRepo{loans: make(map[string]model.Loan)}
	products := &memProductRepo{versions: make(map[string][]model.LoanProduct)}
	clock := testutil.FixedClock{At: testutil.Jan1}
	logger := discardLogger()
	allocator := service.NewAllocationEngine()

	return NewLoanHandler(UseCases{
		Catalog:     usecase.NewProductCatalogUseCase(products, nopCache{}, clock, logger),
		Originate:   usecase.NewOriginateLoanUseCase(loans, products, nopCache{}, adapter.NewClaimsApprovalAuthority(), clock, logger),
		Disburse:    usecase.NewDisburseLoanUseCase(loans, service.NewTrancheManager(), clock),
		Payment:     usecase.NewMakePaymentUseCase(loans, allocator, clock),
		Servicing:   usecase.NewServiceLoanUseCase(loans, clock),
		Restructure: usecase.NewRestructureLoanUseCase(loans, service.NewRestructureEngine(), clock),
		WriteOff:    usecase.NewWriteOffLoanUseCase(loans, service.NewWriteOffEngine(allocator), clock),
		GetLoan:     usecase.NewGetLoanUseCase(loans, clock),
	}, logger)
}

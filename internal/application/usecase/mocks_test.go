package usecase_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/application/usecase"
	"github.com/bibbank/microfinance/internal/domain/event"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/port"
	"github.com/bibbank/microfinance/internal/domain/service"
	"github.com/bibbank/microfinance/pkg/testutil"
)

// --- Mock implementations ---

// mockLoanRepository keeps loans in memory and enforces the expected version
// the way the postgres repository does.
type mockLoanRepository struct {
	saveFunc     func(ctx context.Context, loan model.Loan, expectedVersion int) error
	findByIDFunc func(ctx context.Context, tenantID, id string) (model.Loan, error)
	loans        map[string]model.Loan
	savedLoans   []model.Loan
	events       []event.DomainEvent
}

func newMockLoanRepository() *mockLoanRepository {
	return &mockLoanRepository{loans: make(map[string]model.Loan)}
}

func (m *mockLoanRepository) Save(ctx context.Context, loan model.Loan, expectedVersion int) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, loan, expectedVersion)
	}
	if current, ok := m.loans[loan.ID()]; ok && current.Version() != expectedVersion {
		return &model.ConcurrencyConflictError{AggregateType: "Loan", AggregateID: loan.ID(), Expected: expectedVersion}
	}
	m.events = append(m.events, loan.DomainEvents()...)
	m.loans[loan.ID()] = loan.Persisted(expectedVersion + 1)
	m.savedLoans = append(m.savedLoans, loan)
	return nil
}

func (m *mockLoanRepository) FindByID(ctx context.Context, tenantID, id string) (model.Loan, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, tenantID, id)
	}
	loan, ok := m.loans[id]
	if !ok || loan.TenantID() != tenantID {
		return model.Loan{}, fmt.Errorf("loan %s: %w", id, model.ErrNotFound)
	}
	return loan, nil
}

func (m *mockLoanRepository) FindByMember(_ context.Context, tenantID, memberID string) ([]model.Loan, error) {
	var out []model.Loan
	for _, l := range m.loans {
		if l.TenantID() == tenantID && l.MemberID() == memberID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLoanRepository) eventTypes() []string {
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType())
	}
	return out
}

type mockProductRepository struct {
	saveFunc func(ctx context.Context, product model.LoanProduct) error
	versions map[string][]model.LoanProduct
	reads    int
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{versions: make(map[string][]model.LoanProduct)}
}

func (m *mockProductRepository) Save(ctx context.Context, product model.LoanProduct) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, product)
	}
	if len(m.versions[product.ID()]) != product.Version()-1 {
		return &model.ConcurrencyConflictError{AggregateType: "LoanProduct", AggregateID: product.ID(), Expected: product.Version() - 1}
	}
	m.versions[product.ID()] = append(m.versions[product.ID()], product)
	return nil
}

func (m *mockProductRepository) FindByID(_ context.Context, tenantID, id string) (model.LoanProduct, error) {
	m.reads++
	vs := m.versions[id]
	if len(vs) == 0 || vs[0].TenantID() != tenantID {
		return model.LoanProduct{}, fmt.Errorf("product %s: %w", id, model.ErrNotFound)
	}
	return vs[len(vs)-1], nil
}

func (m *mockProductRepository) FindVersion(_ context.Context, tenantID, id string, version int) (model.LoanProduct, error) {
	vs := m.versions[id]
	if version < 1 || version > len(vs) || vs[0].TenantID() != tenantID {
		return model.LoanProduct{}, fmt.Errorf("product %s v%d: %w", id, version, model.ErrNotFound)
	}
	return vs[version-1], nil
}

type mockProductCache struct {
	getErr      error
	items       map[string]model.LoanProduct
	invalidated []string
}

func newMockProductCache() *mockProductCache {
	return &mockProductCache{items: make(map[string]model.LoanProduct)}
}

func (m *mockProductCache) Get(_ context.Context, tenantID, id string) (model.LoanProduct, bool, error) {
	if m.getErr != nil {
		return model.LoanProduct{}, false, m.getErr
	}
	p, ok := m.items[tenantID+"/"+id]
	return p, ok, nil
}

func (m *mockProductCache) Set(_ context.Context, product model.LoanProduct) error {
	m.items[product.TenantID()+"/"+product.ID()] = product
	return nil
}

func (m *mockProductCache) Invalidate(_ context.Context, tenantID, id string) error {
	delete(m.items, tenantID+"/"+id)
	m.invalidated = append(m.invalidated, id)
	return nil
}

type mockApprovalAuthority struct {
	authorizeFunc func(ctx context.Context, tenantID string) (port.ApprovalGrant, error)
}

func (m *mockApprovalAuthority) Authorize(ctx context.Context, tenantID string) (port.ApprovalGrant, error) {
	if m.authorizeFunc != nil {
		return m.authorizeFunc(ctx, tenantID)
	}
	return port.ApprovalGrant{ApproverID: testutil.TestManagerID, Limit: decimal.NewFromInt(100000)}, nil
}

// --- Fixtures ---

// harness wires every use case over the same in-memory adapters.
type harness struct {
	loans     *mockLoanRepository
	products  *mockProductRepository
	cache     *mockProductCache
	authority *mockApprovalAuthority
	clock     *testutil.FixedClock

	catalog     *usecase.ProductCatalogUseCase
	originate   *usecase.OriginateLoanUseCase
	disburse    *usecase.DisburseLoanUseCase
	payment     *usecase.MakePaymentUseCase
	servicing   *usecase.ServiceLoanUseCase
	restructure *usecase.RestructureLoanUseCase
	writeOff    *usecase.WriteOffLoanUseCase
	getLoan     *usecase.GetLoanUseCase
}

func newHarness() *harness {
	h := &harness{
		loans:     newMockLoanRepository(),
		products:  newMockProductRepository(),
		cache:     newMockProductCache(),
		authority: &mockApprovalAuthority{},
		clock:     &testutil.FixedClock{At: testutil.Jan1},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	allocator := service.NewAllocationEngine()

	h.catalog = usecase.NewProductCatalogUseCase(h.products, h.cache, h.clock, logger)
	h.originate = usecase.NewOriginateLoanUseCase(h.loans, h.products, h.cache, h.authority, h.clock, logger)
	h.disburse = usecase.NewDisburseLoanUseCase(h.loans, service.NewTrancheManager(), h.clock)
	h.payment = usecase.NewMakePaymentUseCase(h.loans, allocator, h.clock)
	h.servicing = usecase.NewServiceLoanUseCase(h.loans, h.clock)
	h.restructure = usecase.NewRestructureLoanUseCase(h.loans, service.NewRestructureEngine(), h.clock)
	h.writeOff = usecase.NewWriteOffLoanUseCase(h.loans, service.NewWriteOffEngine(allocator), h.clock)
	h.getLoan = usecase.NewGetLoanUseCase(h.loans, h.clock)
	return h
}

func flatTermsDTO() dto.ProductTermsDTO {
	return dto.ProductTermsDTO{
		Currency:        "USD",
		InterestMethod:  "FLAT",
		AnnualRate:      testutil.Dec("0.12"),
		Frequency:       "MONTHLY",
		MinInstallments: 1,
		MaxInstallments: 36,
		MinPrincipal:    testutil.Dec("100"),
		MaxPrincipal:    testutil.Dec("50000"),
		PenaltyRate:     testutil.Dec("0.05"),
	}
}

func (h *harness) createProduct(t *testing.T, terms dto.ProductTermsDTO) dto.ProductResponse {
	t.Helper()
	p, err := h.catalog.Create(context.Background(), dto.CreateProductRequest{
		TenantID: testutil.TestTenantID,
		Code:     "GRP-12",
		Name:     "Group loan",
		Terms:    terms,
	})
	require.NoError(t, err)
	return p
}

func (h *harness) pendingLoan(t *testing.T, amount string, installments int) dto.LoanResponse {
	t.Helper()
	ctx := context.Background()
	p := h.createProduct(t, flatTermsDTO())
	loan, err := h.originate.Create(ctx, dto.CreateLoanRequest{
		TenantID:        testutil.TestTenantID,
		MemberID:        testutil.TestMemberID,
		ProductID:       p.ID,
		RequestedAmount: testutil.Dec(amount),
		Installments:    installments,
		Purpose:         "poultry",
	})
	require.NoError(t, err)
	loan, err = h.originate.Submit(ctx, dto.LoanActionRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID})
	require.NoError(t, err)
	return loan
}

func (h *harness) approvedLoan(t *testing.T, amount string, installments int) dto.LoanResponse {
	t.Helper()
	loan := h.pendingLoan(t, amount, installments)
	loan, err := h.originate.Approve(context.Background(), dto.ApproveLoanRequest{TenantID: testutil.TestTenantID, LoanID: loan.ID})
	require.NoError(t, err)
	return loan
}

func (h *harness) activeLoan(t *testing.T, amount string, installments int) dto.LoanResponse {
	t.Helper()
	loan := h.approvedLoan(t, amount, installments)
	loan, err := h.disburse.Disburse(context.Background(), dto.DisburseLoanRequest{
		TenantID:    testutil.TestTenantID,
		LoanID:      loan.ID,
		DisbursedAt: testutil.Jan1,
	})
	require.NoError(t, err)
	return loan
}

func assertDecEqual(t *testing.T, want string, got decimal.Decimal, label string) {
	t.Helper()
	testutil.AssertDecimalEqual(t, want, got, label)
}

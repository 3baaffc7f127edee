package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/pkg/events"
	pgutil "github.com/bibbank/microfinance/pkg/postgres"
)

const aggregateLoan = "Loan"

// LoanRepo implements port.LoanRepository. The aggregate is stored as a JSONB
// document next to a handful of indexed columns; pending domain events go to
// the outbox in the same transaction.
type LoanRepo struct {
	pool *pgxpool.Pool
}

// NewLoanRepo creates a new PostgreSQL-backed loan repository.
func NewLoanRepo(pool *pgxpool.Pool) *LoanRepo {
	return &LoanRepo{pool: pool}
}

// Save inserts the loan when expectedVersion is 0 and otherwise updates the
// row only if it is still at expectedVersion. Either way the stored version
// becomes expectedVersion+1.
func (r *LoanRepo) Save(ctx context.Context, loan model.Loan, expectedVersion int) (err error) {
	ctx, span := startSpan(ctx, "LoanRepo.Save",
		attribute.String("loan.id", loan.ID()),
		attribute.Int("loan.expected_version", expectedVersion),
	)
	defer func() { endSpan(span, err) }()

	doc, err := json.Marshal(newLoanDocument(loan.Snapshot()))
	if err != nil {
		return fmt.Errorf("marshal loan %s: %w", loan.ID(), err)
	}
	entries, err := events.NewOutboxEntries(loan.DomainEvents())
	if err != nil {
		return err
	}

	return pgutil.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		if expectedVersion == 0 {
			if err := r.insert(ctx, tx, loan, doc); err != nil {
				return err
			}
		} else if err := r.update(ctx, tx, loan, doc, expectedVersion); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, entries)
	})
}

func (r *LoanRepo) insert(ctx context.Context, tx pgx.Tx, loan model.Loan, doc []byte) error {
	const insertLoanSQL = `
		INSERT INTO loans (
			id, tenant_id, member_id, product_id, product_version, status, currency,
			principal, outstanding_principal, generation, version, state, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12, $13)
	`
	_, err := tx.Exec(ctx, insertLoanSQL,
		loan.ID(),
		loan.TenantID(),
		loan.MemberID(),
		loan.ProductID(),
		loan.ProductVersion(),
		loan.Status().String(),
		loan.Terms().Currency.Code(),
		loan.Principal(),
		loan.OutstandingPrincipal(),
		loan.Generation(),
		doc,
		loan.CreatedAt(),
		loan.UpdatedAt(),
	)
	if pgutil.IsUniqueViolation(err, "loans_pkey") {
		return &model.ConcurrencyConflictError{AggregateType: aggregateLoan, AggregateID: loan.ID()}
	}
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (r *LoanRepo) update(ctx context.Context, tx pgx.Tx, loan model.Loan, doc []byte, expectedVersion int) error {
	const updateLoanSQL = `
		UPDATE loans SET
			status = $3,
			principal = $4,
			outstanding_principal = $5,
			generation = $6,
			state = $7,
			updated_at = $8,
			version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $9
	`
	tag, err := tx.Exec(ctx, updateLoanSQL,
		loan.ID(),
		loan.TenantID(),
		loan.Status().String(),
		loan.Principal(),
		loan.OutstandingPrincipal(),
		loan.Generation(),
		doc,
		loan.UpdatedAt(),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &model.ConcurrencyConflictError{
			AggregateType: aggregateLoan,
			AggregateID:   loan.ID(),
			Expected:      expectedVersion,
		}
	}
	return nil
}

// FindByID retrieves a loan by ID within a tenant.
func (r *LoanRepo) FindByID(ctx context.Context, tenantID, id string) (loan model.Loan, err error) {
	ctx, span := startSpan(ctx, "LoanRepo.FindByID", attribute.String("loan.id", id))
	defer func() { endSpan(span, err) }()

	const query = `SELECT state, version FROM loans WHERE tenant_id = $1 AND id = $2`
	loan, err = scanLoan(r.pool.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Loan{}, fmt.Errorf("loan %s: %w", id, model.ErrNotFound)
	}
	return loan, err
}

// FindByMember returns a member's loans, newest first.
func (r *LoanRepo) FindByMember(ctx context.Context, tenantID, memberID string) (loans []model.Loan, err error) {
	ctx, span := startSpan(ctx, "LoanRepo.FindByMember")
	defer func() { endSpan(span, err) }()

	const query = `
		SELECT state, version FROM loans
		WHERE tenant_id = $1 AND member_id = $2
		ORDER BY created_at DESC, id
	`
	rows, err := r.pool.Query(ctx, query, tenantID, memberID)
	if err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}
	return loans, nil
}

func scanLoan(row pgx.Row) (model.Loan, error) {
	var (
		raw     []byte
		version int
	)
	if err := row.Scan(&raw, &version); err != nil {
		return model.Loan{}, err
	}
	var doc loanDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Loan{}, fmt.Errorf("decode loan document: %w", err)
	}
	return model.ReconstructLoan(doc.state(version)), nil
}

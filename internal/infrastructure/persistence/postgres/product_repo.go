package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/pkg/events"
	pgutil "github.com/bibbank/microfinance/pkg/postgres"
)

// ProductRepo implements port.ProductRepository. Every version is its own
// row; rows are never updated.
type ProductRepo struct {
	pool *pgxpool.Pool
}

// NewProductRepo creates a new PostgreSQL-backed product repository.
func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

// Save appends a product version and its publication event. Saving a version
// that already exists is a concurrency conflict: someone else revised first.
func (r *ProductRepo) Save(ctx context.Context, product model.LoanProduct) (err error) {
	ctx, span := startSpan(ctx, "ProductRepo.Save",
		attribute.String("product.id", product.ID()),
		attribute.Int("product.version", product.Version()),
	)
	defer func() { endSpan(span, err) }()

	terms, err := json.Marshal(product.Terms())
	if err != nil {
		return fmt.Errorf("marshal product terms: %w", err)
	}
	entries, err := events.NewOutboxEntries(product.DomainEvents())
	if err != nil {
		return err
	}

	return pgutil.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		const insertProductSQL = `
			INSERT INTO loan_products (id, tenant_id, version, code, name, terms, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err := tx.Exec(ctx, insertProductSQL,
			product.ID(),
			product.TenantID(),
			product.Version(),
			product.Code(),
			product.Name(),
			terms,
			product.CreatedAt(),
		)
		if pgutil.IsUniqueViolation(err, "loan_products_pkey") {
			return &model.ConcurrencyConflictError{
				AggregateType: "LoanProduct",
				AggregateID:   product.ID(),
				Expected:      product.Version() - 1,
			}
		}
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return insertOutbox(ctx, tx, entries)
	})
}

// FindByID returns the latest version of a product.
func (r *ProductRepo) FindByID(ctx context.Context, tenantID, id string) (product model.LoanProduct, err error) {
	ctx, span := startSpan(ctx, "ProductRepo.FindByID", attribute.String("product.id", id))
	defer func() { endSpan(span, err) }()

	const query = `
		SELECT id, tenant_id, code, name, version, terms, created_at
		FROM loan_products
		WHERE tenant_id = $1 AND id = $2
		ORDER BY version DESC
		LIMIT 1
	`
	return r.findOne(ctx, fmt.Sprintf("product %s", id), query, tenantID, id)
}

// FindVersion returns one specific version of a product.
func (r *ProductRepo) FindVersion(ctx context.Context, tenantID, id string, version int) (product model.LoanProduct, err error) {
	ctx, span := startSpan(ctx, "ProductRepo.FindVersion",
		attribute.String("product.id", id),
		attribute.Int("product.version", version),
	)
	defer func() { endSpan(span, err) }()

	const query = `
		SELECT id, tenant_id, code, name, version, terms, created_at
		FROM loan_products
		WHERE tenant_id = $1 AND id = $2 AND version = $3
	`
	return r.findOne(ctx, fmt.Sprintf("product %s v%d", id, version), query, tenantID, id, version)
}

func (r *ProductRepo) findOne(ctx context.Context, what, query string, args ...any) (model.LoanProduct, error) {
	var (
		id, tenantID, code, name string
		version                  int
		raw                      []byte
		createdAt                time.Time
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(&id, &tenantID, &code, &name, &version, &raw, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.LoanProduct{}, fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	if err != nil {
		return model.LoanProduct{}, fmt.Errorf("query %s: %w", what, err)
	}

	var terms model.ProductTerms
	if err := json.Unmarshal(raw, &terms); err != nil {
		return model.LoanProduct{}, fmt.Errorf("decode %s terms: %w", what, err)
	}
	return model.ReconstructLoanProduct(id, tenantID, code, name, version, terms, createdAt.UTC()), nil
}

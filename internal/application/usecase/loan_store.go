package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/port"
)

// loanMutation applies one command to a loaded loan.
type loanMutation func(loan model.Loan, now time.Time) (model.Loan, error)

// loanStore runs the load -> mutate -> save cycle shared by every loan
// command. It never retries: a version conflict is returned to the caller.
type loanStore struct {
	repo  port.LoanRepository
	clock port.Clock
}

func (s loanStore) update(ctx context.Context, tenantID, loanID string, fn loanMutation) (model.Loan, error) {
	// 1. Load the aggregate.
	loan, err := s.repo.FindByID(ctx, tenantID, loanID)
	if err != nil {
		return model.Loan{}, fmt.Errorf("find loan: %w", err)
	}
	expected := loan.Version()

	// 2. Apply the command.
	next, err := fn(loan, s.clock.Now())
	if err != nil {
		return model.Loan{}, err
	}

	// 3. Persist with its events; replays change nothing and skip the write.
	if !next.HasChanges() {
		return next, nil
	}
	if err := s.repo.Save(ctx, next, expected); err != nil {
		return model.Loan{}, fmt.Errorf("save loan: %w", err)
	}
	return next.Persisted(expected + 1), nil
}

func (s loanStore) create(ctx context.Context, loan model.Loan) (model.Loan, error) {
	if err := s.repo.Save(ctx, loan, 0); err != nil {
		return model.Loan{}, fmt.Errorf("save loan: %w", err)
	}
	return loan.Persisted(1), nil
}

// productLookup resolves the latest product version through the cache.
// Cache failures degrade to a repository read.
type productLookup struct {
	repo   port.ProductRepository
	cache  port.ProductCache
	logger *slog.Logger
}

func (p productLookup) latest(ctx context.Context, tenantID, productID string) (model.LoanProduct, error) {
	if p.cache != nil {
		product, found, err := p.cache.Get(ctx, tenantID, productID)
		switch {
		case err != nil:
			p.logger.WarnContext(ctx, "product cache read failed", "product_id", productID, "error", err)
		case found:
			return product, nil
		}
	}

	product, err := p.repo.FindByID(ctx, tenantID, productID)
	if err != nil {
		return model.LoanProduct{}, fmt.Errorf("find product: %w", err)
	}
	p.remember(ctx, product)
	return product, nil
}

func (p productLookup) remember(ctx context.Context, product model.LoanProduct) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, product); err != nil {
		p.logger.WarnContext(ctx, "product cache write failed", "product_id", product.ID(), "error", err)
	}
}

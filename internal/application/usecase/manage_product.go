package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/port"
)

// ProductCatalogUseCase publishes and reads loan product versions.
type ProductCatalogUseCase struct {
	products productLookup
	clock    port.Clock
}

// NewProductCatalogUseCase wires dependencies. cache may be nil.
func NewProductCatalogUseCase(
	repo port.ProductRepository,
	cache port.ProductCache,
	clock port.Clock,
	logger *slog.Logger,
) *ProductCatalogUseCase {
	return &ProductCatalogUseCase{
		products: productLookup{repo: repo, cache: cache, logger: logger},
		clock:    clock,
	}
}

// Create publishes version 1 of a new product.
func (uc *ProductCatalogUseCase) Create(ctx context.Context, req dto.CreateProductRequest) (dto.ProductResponse, error) {
	terms, err := termsFromDTO(req.Terms)
	if err != nil {
		return dto.ProductResponse{}, err
	}
	product, err := model.NewLoanProduct(req.TenantID, req.Code, req.Name, terms, uc.clock.Now())
	if err != nil {
		return dto.ProductResponse{}, err
	}
	if err := uc.products.repo.Save(ctx, product); err != nil {
		return dto.ProductResponse{}, fmt.Errorf("save product: %w", err)
	}
	uc.products.remember(ctx, product)
	return toProductResponse(product), nil
}

// Revise publishes the next version of a product. Loans already approved keep
// the terms they snapshotted.
func (uc *ProductCatalogUseCase) Revise(ctx context.Context, req dto.ReviseProductRequest) (dto.ProductResponse, error) {
	terms, err := termsFromDTO(req.Terms)
	if err != nil {
		return dto.ProductResponse{}, err
	}

	// 1. Revise from the stored latest version, never from the cache.
	current, err := uc.products.repo.FindByID(ctx, req.TenantID, req.ProductID)
	if err != nil {
		return dto.ProductResponse{}, fmt.Errorf("find product: %w", err)
	}
	next, err := current.Revise(req.Name, terms, uc.clock.Now())
	if err != nil {
		return dto.ProductResponse{}, err
	}

	// 2. Persist; a concurrent revision of the same version conflicts.
	if err := uc.products.repo.Save(ctx, next); err != nil {
		return dto.ProductResponse{}, fmt.Errorf("save product: %w", err)
	}

	// 3. Drop the cached version so readers pick up the new one.
	if uc.products.cache != nil {
		if err := uc.products.cache.Invalidate(ctx, req.TenantID, req.ProductID); err != nil {
			uc.products.logger.WarnContext(ctx, "product cache invalidation failed", "product_id", req.ProductID, "error", err)
		}
	}
	return toProductResponse(next), nil
}

// Get returns the requested version, or the latest when Version is zero.
func (uc *ProductCatalogUseCase) Get(ctx context.Context, req dto.GetProductRequest) (dto.ProductResponse, error) {
	if req.Version > 0 {
		product, err := uc.products.repo.FindVersion(ctx, req.TenantID, req.ProductID, req.Version)
		if err != nil {
			return dto.ProductResponse{}, fmt.Errorf("find product version: %w", err)
		}
		return toProductResponse(product), nil
	}
	product, err := uc.products.latest(ctx, req.TenantID, req.ProductID)
	if err != nil {
		return dto.ProductResponse{}, err
	}
	return toProductResponse(product), nil
}

// PreviewSchedule quotes the schedule of a hypothetical loan.
func (uc *ProductCatalogUseCase) PreviewSchedule(ctx context.Context, req dto.PreviewScheduleRequest) (dto.ScheduleResponse, error) {
	product, err := uc.products.latest(ctx, req.TenantID, req.ProductID)
	if err != nil {
		return dto.ScheduleResponse{}, err
	}
	start := paymentTime(req.StartDate, uc.clock.Now())
	sched, err := product.PreviewSchedule(req.Principal, req.Installments, start)
	if err != nil {
		return dto.ScheduleResponse{}, err
	}
	return dto.ScheduleResponse{
		Entries: toScheduleResponse(sched, start),
		Totals:  toBalancesResponse(model.ScheduleTotals(sched)),
	}, nil
}

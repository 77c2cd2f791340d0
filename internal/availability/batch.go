package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/alekenov/figma-product-catalog-sub002/internal/cache"
	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/store"
	"go.uber.org/zap"
)

// BatchChecker previews availability of a whole order without reserving anything
type BatchChecker struct {
	store   store.Store
	calc    *Calculator
	recipes cache.RecipeCache
	logger  *zap.Logger
}

// NewBatchChecker creates a checker. recipes may be nil to always read recipes from the store.
func NewBatchChecker(s store.Store, calc *Calculator, recipes cache.RecipeCache, logger *zap.Logger) *BatchChecker {
	return &BatchChecker{
		store:   s,
		calc:    calc,
		recipes: recipes,
		logger:  logger,
	}
}

// CheckProduct checks one product against the current stock
func (b *BatchChecker) CheckProduct(ctx context.Context, productID int64, quantity int) (domain.AvailabilityResult, error) {
	var result domain.AvailabilityResult
	err := b.store.View(ctx, func(r store.Reader) error {
		var err error
		result, err = b.calc.Check(ctx, r, productID, quantity, nil)
		return err
	})
	if err != nil {
		return domain.AvailabilityResult{}, domain.NewStorageError("check product", err)
	}
	return result, nil
}

// CheckBatch evaluates every line against one shared snapshot of reserved
// quantities. Lines do not consume stock from each other: a preview can
// report every line available while reserving them together would fail.
// The authoritative check happens in the reservation manager.
func (b *BatchChecker) CheckBatch(ctx context.Context, items []domain.LineItem) (domain.BatchResult, error) {
	if len(items) == 0 {
		return domain.BatchResult{}, domain.ErrNoLineItems
	}
	for _, it := range items {
		if it.Quantity <= 0 || it.Quantity > domain.MaxUnits {
			return domain.BatchResult{}, fmt.Errorf("product %d: %w", it.ProductID, domain.ErrInvalidQuantity)
		}
	}

	result := domain.BatchResult{
		Available: true,
		Items:     make([]domain.AvailabilityResult, 0, len(items)),
		Warnings:  []string{},
	}

	err := b.store.View(ctx, func(r store.Reader) error {
		reserved, err := r.ReservedTotals(ctx, nil)
		if err != nil {
			return fmt.Errorf("load reserved snapshot: %w", err)
		}

		recipes := make(map[int64][]domain.RecipeLine, len(items))
		var ids []int64
		for _, it := range items {
			if _, ok := recipes[it.ProductID]; ok {
				continue
			}
			lines, err := b.recipeFor(ctx, r, it.ProductID)
			if err != nil {
				return err
			}
			recipes[it.ProductID] = lines
			ids = append(ids, componentIDs(lines)...)
		}

		components, err := r.Items(ctx, ids)
		if err != nil {
			return fmt.Errorf("load components: %w", err)
		}

		seen := make(map[string]bool)
		for _, it := range items {
			line, err := b.calc.Evaluate(it.ProductID, it.Quantity, recipes[it.ProductID], components, reserved)
			if err != nil {
				return err
			}
			if !line.Available {
				result.Available = false
			}
			for _, w := range line.Warnings {
				if !seen[w] {
					seen[w] = true
					result.Warnings = append(result.Warnings, w)
				}
			}
			result.Items = append(result.Items, line)
		}
		return nil
	})
	if err != nil {
		return domain.BatchResult{}, domain.NewStorageError("check batch", err)
	}
	return result, nil
}

// InvalidateRecipe drops a cached recipe after the catalog changed it
func (b *BatchChecker) InvalidateRecipe(ctx context.Context, productID int64) error {
	if b.recipes == nil {
		return nil
	}
	return b.recipes.Delete(ctx, productID)
}

func (b *BatchChecker) recipeFor(ctx context.Context, r store.Reader, productID int64) ([]domain.RecipeLine, error) {
	if b.recipes != nil {
		lines, err := b.recipes.Get(ctx, productID)
		if err == nil {
			return lines, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			b.logger.Warn("recipe cache read failed", zap.Int64("product_id", productID), zap.Error(err))
		}
	}

	lines, err := r.RecipeFor(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load recipe for product %d: %w", productID, err)
	}

	if b.recipes != nil {
		if err := b.recipes.Set(ctx, productID, lines); err != nil {
			b.logger.Warn("recipe cache write failed", zap.Int64("product_id", productID), zap.Error(err))
		}
	}
	return lines, nil
}

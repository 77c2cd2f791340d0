package availability

import (
	"context"
	"fmt"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/store"
)

// Calculator answers how many units of a product current stock can fulfil
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Check expands the recipe of productID and evaluates it against on-hand
// stock minus reserved. A nil reserved map is loaded from r.
func (c *Calculator) Check(ctx context.Context, r store.Reader, productID int64, quantity int, reserved map[int64]int) (domain.AvailabilityResult, error) {
	if quantity <= 0 {
		return domain.AvailabilityResult{}, domain.ErrInvalidQuantity
	}

	lines, err := r.RecipeFor(ctx, productID)
	if err != nil {
		return domain.AvailabilityResult{}, fmt.Errorf("load recipe for product %d: %w", productID, err)
	}

	ids := componentIDs(lines)
	items, err := r.Items(ctx, ids)
	if err != nil {
		return domain.AvailabilityResult{}, fmt.Errorf("load components of product %d: %w", productID, err)
	}

	if reserved == nil && len(ids) > 0 {
		reserved, err = r.ReservedTotals(ctx, ids)
		if err != nil {
			return domain.AvailabilityResult{}, fmt.Errorf("load reserved totals: %w", err)
		}
	}

	return c.Evaluate(productID, quantity, lines, items, reserved)
}

// Evaluate is the pure part of Check.
//
// max_quantity is the floor of free / per-unit over required lines only.
// Optional lines are reported but never constrain the result. A product
// without required lines is unconstrained: it is always available and
// max_quantity echoes the request.
func (c *Calculator) Evaluate(productID int64, quantity int, lines []domain.RecipeLine, items map[int64]domain.WarehouseItem, reserved map[int64]int) (domain.AvailabilityResult, error) {
	if quantity <= 0 || quantity > domain.MaxUnits {
		return domain.AvailabilityResult{}, domain.ErrInvalidQuantity
	}

	result := domain.AvailabilityResult{
		ProductID:    productID,
		Requested:    quantity,
		PerComponent: make([]domain.ComponentAvailability, 0, len(lines)),
		Warnings:     []string{},
	}

	if len(lines) == 0 {
		result.Available = true
		result.Unconstrained = true
		result.MaxQuantity = quantity
		result.Warnings = append(result.Warnings, RecipeMissingWarning(productID))
		return result, nil
	}

	maxQuantity := -1
	for _, line := range lines {
		if line.Quantity <= 0 {
			return domain.AvailabilityResult{}, fmt.Errorf("product %d, item %d: %w", productID, line.WarehouseItemID, domain.ErrInvalidRecipe)
		}

		item := items[line.WarehouseItemID]
		name := domain.ComponentName(item, line.WarehouseItemID)
		held := reserved[line.WarehouseItemID]
		free := item.Quantity - held
		need, err := domain.LineDemand(line.Quantity, quantity)
		if err != nil {
			return domain.AvailabilityResult{}, fmt.Errorf("product %d, item %d: %w", productID, line.WarehouseItemID, err)
		}

		comp := domain.ComponentAvailability{
			ComponentID:     line.WarehouseItemID,
			Name:            name,
			RequiredPerUnit: line.Quantity,
			OnHand:          item.Quantity,
			Reserved:        held,
			Free:            max(free, 0),
			Optional:        line.IsOptional,
		}
		result.PerComponent = append(result.PerComponent, comp)

		if free < 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s is oversold: %d reserved against %d on hand", name, held, item.Quantity))
		}

		switch {
		case free < need && line.IsOptional:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("optional %s is short (need %d, free %d) and will be omitted", name, need, comp.Free))
		case free < need:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("insufficient %s: need %d, free %d", name, need, comp.Free))
		case free-need < item.MinQuantity:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("low stock: %s drops to %d (minimum %d)", name, free-need, item.MinQuantity))
		}

		if line.IsOptional {
			continue
		}
		fit := 0
		if free > 0 {
			fit = free / line.Quantity
		}
		if maxQuantity < 0 || fit < maxQuantity {
			maxQuantity = fit
		}
	}

	if maxQuantity < 0 {
		// only optional lines
		result.Unconstrained = true
		maxQuantity = quantity
	}
	result.MaxQuantity = maxQuantity
	result.Available = maxQuantity >= quantity
	return result, nil
}

// RecipeMissingWarning is the non-fatal notice for products without a bill of materials
func RecipeMissingWarning(productID int64) string {
	return fmt.Sprintf("product %d has no recipe; availability is unconstrained", productID)
}

func componentIDs(lines []domain.RecipeLine) []int64 {
	seen := make(map[int64]bool, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if !seen[l.WarehouseItemID] {
			seen[l.WarehouseItemID] = true
			ids = append(ids, l.WarehouseItemID)
		}
	}
	return ids
}

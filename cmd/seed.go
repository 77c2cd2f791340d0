package main

import (
	"fmt"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/store"
	"github.com/shopspring/decimal"
)

// Warehouse contents for the in-memory store
var initialItems = []domain.WarehouseItem{
	{ID: 1, Name: "Red Rose", Quantity: 200, MinQuantity: 30, CostPrice: decimal.RequireFromString("1.20"), RetailPrice: decimal.RequireFromString("3.50")},
	{ID: 2, Name: "White Tulip", Quantity: 150, MinQuantity: 20, CostPrice: decimal.RequireFromString("0.90"), RetailPrice: decimal.RequireFromString("2.40")},
	{ID: 3, Name: "Eucalyptus", Quantity: 80, MinQuantity: 15, CostPrice: decimal.RequireFromString("0.60"), RetailPrice: decimal.RequireFromString("1.50")},
	{ID: 4, Name: "Satin Ribbon", Quantity: 40, MinQuantity: 10, CostPrice: decimal.RequireFromString("0.30"), RetailPrice: decimal.RequireFromString("1.00")},
	{ID: 5, Name: "Kraft Paper", Quantity: 60, MinQuantity: 10, CostPrice: decimal.RequireFromString("0.25"), RetailPrice: decimal.RequireFromString("0.80")},
}

// Bills of materials by catalog product ID
var initialRecipes = map[int64][]domain.RecipeLine{
	1: { // 15 red roses
		{WarehouseItemID: 1, Quantity: 15},
		{WarehouseItemID: 4, Quantity: 1, IsOptional: true},
		{WarehouseItemID: 5, Quantity: 1, IsOptional: true},
	},
	2: { // spring tulips
		{WarehouseItemID: 2, Quantity: 11},
		{WarehouseItemID: 3, Quantity: 3},
		{WarehouseItemID: 5, Quantity: 1, IsOptional: true},
	},
	3: { // mixed bouquet
		{WarehouseItemID: 1, Quantity: 5},
		{WarehouseItemID: 2, Quantity: 5},
		{WarehouseItemID: 3, Quantity: 2},
		{WarehouseItemID: 4, Quantity: 1, IsOptional: true},
	},
}

func seed(s *store.MemoryStore) error {
	for _, item := range initialItems {
		if err := s.PutItem(item); err != nil {
			return fmt.Errorf("seed item %d: %w", item.ID, err)
		}
	}
	for productID, lines := range initialRecipes {
		if err := s.PutRecipe(productID, lines); err != nil {
			return fmt.Errorf("seed recipe of product %d: %w", productID, err)
		}
	}
	return nil
}

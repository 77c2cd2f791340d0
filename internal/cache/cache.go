package cache

import (
	"context"
	"errors"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
)

type RecipeCache interface {
	Get(ctx context.Context, productID int64) ([]domain.RecipeLine, error)
	Set(ctx context.Context, productID int64, lines []domain.RecipeLine) error
	Delete(ctx context.Context, productID int64) error
}

var ErrCacheMiss = errors.New("cache miss")

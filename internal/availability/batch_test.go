package availability

import (
	"context"
	"testing"

	"github.com/alekenov/figma-product-catalog-sub002/internal/cache"
	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newChecker(t *testing.T, s store.Store, recipes cache.RecipeCache) *BatchChecker {
	return NewBatchChecker(s, NewCalculator(), recipes, zap.NewNop())
}

func TestCheckBatch_LinesShareOneSnapshot(t *testing.T) {
	s := setupStore(t)
	checker := newChecker(t, s, nil)

	// each line alone fits into 50 roses, together they would need 65
	result, err := checker.CheckBatch(context.Background(), []domain.LineItem{
		{ProductID: productA, Quantity: 3},
		{ProductID: productB, Quantity: 4},
	})
	require.NoError(t, err)

	assert.True(t, result.Available)
	require.Len(t, result.Items, 2)
	assert.Equal(t, productA, result.Items[0].ProductID)
	assert.Equal(t, productB, result.Items[1].ProductID)
	assert.Equal(t, 3, result.Items[0].MaxQuantity)
	assert.Equal(t, 4, result.Items[1].MaxQuantity)
}

func TestCheckBatch_OneLineShortMakesBatchUnavailable(t *testing.T) {
	s := setupStore(t)
	checker := newChecker(t, s, nil)

	result, err := checker.CheckBatch(context.Background(), []domain.LineItem{
		{ProductID: productA, Quantity: 1},
		{ProductID: productB, Quantity: 5},
	})
	require.NoError(t, err)

	assert.False(t, result.Available)
	assert.True(t, result.Items[0].Available)
	assert.False(t, result.Items[1].Available)
	assert.Contains(t, result.Warnings, "insufficient Eucalyptus: need 10, free 8")
}

func TestCheckBatch_WarningsAreDeduplicated(t *testing.T) {
	s := setupStore(t)
	checker := newChecker(t, s, nil)

	result, err := checker.CheckBatch(context.Background(), []domain.LineItem{
		{ProductID: productA, Quantity: 1},
		{ProductID: productA, Quantity: 1},
	})
	require.NoError(t, err)

	assert.Len(t, result.Items, 2)
	count := 0
	for _, w := range result.Warnings {
		if w == "optional Ribbon is short (need 1, free 0) and will be omitted" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCheckBatch_SeesExistingReservations(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.InsertReservations(ctx, []domain.Reservation{
			{ID: "r1", OrderID: 9, WarehouseItemID: redRose, ReservedQuantity: 40},
		})
	}))
	checker := newChecker(t, s, nil)

	result, err := checker.CheckBatch(ctx, []domain.LineItem{{ProductID: productA, Quantity: 1}})
	require.NoError(t, err)

	assert.False(t, result.Available)
	assert.Equal(t, 40, result.Items[0].PerComponent[0].Reserved)
}

func TestCheckBatch_Validation(t *testing.T) {
	s := setupStore(t)
	checker := newChecker(t, s, nil)
	ctx := context.Background()

	_, err := checker.CheckBatch(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrNoLineItems)

	_, err = checker.CheckBatch(ctx, []domain.LineItem{{ProductID: productA, Quantity: 0}})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestCheckProduct(t *testing.T) {
	s := setupStore(t)
	checker := newChecker(t, s, nil)

	result, err := checker.CheckProduct(context.Background(), productA, 3)
	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Equal(t, 3, result.MaxQuantity)

	_, err = checker.CheckProduct(context.Background(), productA, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestCheckBatch_ReadsRecipesThroughCache(t *testing.T) {
	s := setupStore(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	recipes := cache.NewRedisCache(client)
	checker := newChecker(t, s, recipes)
	ctx := context.Background()

	_, err := checker.CheckBatch(ctx, []domain.LineItem{{ProductID: productA, Quantity: 1}})
	require.NoError(t, err)
	assert.True(t, mr.Exists("recipe:100"))

	// the cached recipe wins until it is invalidated
	require.NoError(t, s.PutRecipe(productA, []domain.RecipeLine{{WarehouseItemID: redRose, Quantity: 60}}))

	result, err := checker.CheckBatch(ctx, []domain.LineItem{{ProductID: productA, Quantity: 1}})
	require.NoError(t, err)
	assert.True(t, result.Available)

	require.NoError(t, checker.InvalidateRecipe(ctx, productA))
	assert.False(t, mr.Exists("recipe:100"))

	result, err = checker.CheckBatch(ctx, []domain.LineItem{{ProductID: productA, Quantity: 1}})
	require.NoError(t, err)
	assert.False(t, result.Available)
}

func TestCheckBatch_BrokenCacheFallsBackToStore(t *testing.T) {
	s := setupStore(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set("recipe:100", "{not json"))

	checker := newChecker(t, s, cache.NewRedisCache(client))

	result, err := checker.CheckBatch(context.Background(), []domain.LineItem{{ProductID: productA, Quantity: 1}})
	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Equal(t, 15, result.Items[0].PerComponent[0].RequiredPerUnit)
}

func TestInvalidateRecipe_NoCache(t *testing.T) {
	checker := newChecker(t, setupStore(t), nil)
	assert.NoError(t, checker.InvalidateRecipe(context.Background(), productA))
}

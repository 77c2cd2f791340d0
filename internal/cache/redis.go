package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultBaseTTL   = 5 * time.Minute
	maxJitterSeconds = 120
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: defaultBaseTTL,
	}
}

// RedisCache keeps product recipes for availability previews.
// Recipes are owned by the catalog, so entries only ever expire or get dropped.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context, productID int64) ([]domain.RecipeLine, error) {
	key := cacheKey(productID)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []domain.RecipeLine
	if err2 := json.Unmarshal(data, &lines); err2 != nil {
		return nil, fmt.Errorf("unmarshal recipe failed: %w", err2)
	}

	return lines, nil
}

func (r RedisCache) Set(ctx context.Context, productID int64, lines []domain.RecipeLine) error {
	key := cacheKey(productID)
	if lines == nil {
		lines = []domain.RecipeLine{}
	}
	jsonLines, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal recipe failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(maxJitterSeconds)) * time.Second
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, key, string(jsonLines), ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, productID int64) error {
	key := cacheKey(productID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func cacheKey(productID int64) string {
	return fmt.Sprintf("recipe:%d", productID)
}

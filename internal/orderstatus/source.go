// Package orderstatus looks up the status of orders owned by the order subsystem.
package orderstatus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/pkg/circuitbreaker"
	"go.uber.org/zap"
)

// Source returns the current status of an order, or domain.ErrOrderNotFound
type Source interface {
	Status(ctx context.Context, orderID int64) (domain.OrderStatus, error)
}

// PostgresSource reads the orders table of the order subsystem
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Status(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query order %d status: %w", orderID, err)
	}
	return domain.OrderStatus(status), nil
}

// MemorySource is an in-process Source fed by order status events
type MemorySource struct {
	mu       sync.RWMutex
	statuses map[int64]domain.OrderStatus
}

func NewMemorySource() *MemorySource {
	return &MemorySource{statuses: make(map[int64]domain.OrderStatus)}
}

func (s *MemorySource) Set(orderID int64, status domain.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[orderID] = status
}

func (s *MemorySource) Delete(orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, orderID)
}

func (s *MemorySource) Status(_ context.Context, orderID int64) (domain.OrderStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[orderID]
	if !ok {
		return "", domain.ErrOrderNotFound
	}
	return status, nil
}

// GuardedSource puts a circuit breaker in front of another Source. A missing
// order is an answer, not a failure, and never opens the breaker.
type GuardedSource struct {
	next    Source
	breaker *circuitbreaker.Breaker[domain.OrderStatus]
}

func NewGuardedSource(next Source, cfg circuitbreaker.Config, logger *zap.Logger) *GuardedSource {
	return &GuardedSource{
		next:    next,
		breaker: circuitbreaker.New[domain.OrderStatus](cfg, logger, domain.ErrOrderNotFound),
	}
}

func (g *GuardedSource) Status(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
	return g.breaker.Execute(func() (domain.OrderStatus, error) {
		return g.next.Status(ctx, orderID)
	})
}

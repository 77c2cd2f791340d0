package store

import (
	"context"
	"time"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
)

// Reader is the read side of the warehouse, recipe catalog and reservation ledger
type Reader interface {
	// RecipeFor returns the bill of materials of a product, empty if it has none
	RecipeFor(ctx context.Context, productID int64) ([]domain.RecipeLine, error)

	// Items returns the warehouse items with the given IDs; unknown IDs are absent from the map
	Items(ctx context.Context, ids []int64) (map[int64]domain.WarehouseItem, error)

	// AllItems returns every warehouse item ordered by ID
	AllItems(ctx context.Context) ([]domain.WarehouseItem, error)

	// ReservedTotals sums active reservations per warehouse item.
	// An empty ids slice means every item with at least one reservation.
	ReservedTotals(ctx context.Context, ids []int64) (map[int64]int, error)

	// ReservationsForOrder returns the reservations of an order ordered by warehouse item ID
	ReservationsForOrder(ctx context.Context, orderID int64) ([]domain.Reservation, error)

	// StaleOrders returns the IDs of orders holding a reservation created before cutoff
	StaleOrders(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// Tx is a unit of work. Everything done through it is committed or rolled back together.
type Tx interface {
	Reader

	// LockItems locks the given warehouse items in ascending ID order and
	// returns their current state. Every stock mutation goes through it.
	LockItems(ctx context.Context, ids []int64) (map[int64]domain.WarehouseItem, error)

	// InsertReservations writes reservation rows
	InsertReservations(ctx context.Context, reservations []domain.Reservation) error

	// DeleteReservations removes every reservation of an order and reports how many were removed
	DeleteReservations(ctx context.Context, orderID int64) (int, error)

	// AdjustQuantity changes the on-hand quantity of a locked item by delta.
	// It refuses to write a negative quantity.
	AdjustQuantity(ctx context.Context, itemID int64, delta int) error
}

// Store hands out units of work against the backing storage
type Store interface {
	// View runs fn against a consistent read-only snapshot
	View(ctx context.Context, fn func(Reader) error) error

	// Update runs fn inside one transaction, committing only if fn returns nil
	Update(ctx context.Context, fn func(Tx) error) error

	// Close releases the underlying resources
	Close() error
}

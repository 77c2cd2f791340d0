package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
)

// MemoryStore implements Store with in-memory storage.
// Writers are serialized on a mutex and work on a private copy of the state
// that replaces the live state only when the unit of work succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	items        map[int64]domain.WarehouseItem // itemID -> item
	recipes      map[int64][]domain.RecipeLine  // productID -> recipe
	reservations map[string]domain.Reservation  // reservationID -> reservation
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			items:        make(map[int64]domain.WarehouseItem),
			recipes:      make(map[int64][]domain.RecipeLine),
			reservations: make(map[string]domain.Reservation),
		},
	}
}

// PutItem creates or replaces a warehouse item (used for initialization)
func (s *MemoryStore) PutItem(item domain.WarehouseItem) error {
	if item.Quantity < 0 {
		return domain.ErrNegativeStock
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now()
	}
	s.state.items[item.ID] = item
	return nil
}

// SetStock sets the on-hand quantity of an existing item
func (s *MemoryStore) SetStock(itemID int64, quantity int) error {
	if quantity < 0 {
		return domain.ErrNegativeStock
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.state.items[itemID]
	if !ok {
		return domain.ErrItemNotFound
	}
	item.Quantity = quantity
	item.UpdatedAt = time.Now()
	s.state.items[itemID] = item
	return nil
}

// PutRecipe replaces the bill of materials of a product
func (s *MemoryStore) PutRecipe(productID int64, lines []domain.RecipeLine) error {
	for _, l := range lines {
		if l.Quantity <= 0 {
			return domain.ErrInvalidRecipe
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recipe := make([]domain.RecipeLine, len(lines))
	for i, l := range lines {
		l.ProductID = productID
		recipe[i] = l
	}
	s.state.recipes[productID] = recipe
	return nil
}

// View runs fn against the live state under a read lock
func (s *MemoryStore) View(ctx context.Context, fn func(Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&memTx{state: s.state})
}

// Update runs fn on a copy of the state and swaps it in on success
func (s *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&memTx{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

func (m *memState) clone() *memState {
	c := &memState{
		items:        make(map[int64]domain.WarehouseItem, len(m.items)),
		recipes:      make(map[int64][]domain.RecipeLine, len(m.recipes)),
		reservations: make(map[string]domain.Reservation, len(m.reservations)),
	}
	for k, v := range m.items {
		c.items[k] = v
	}
	// recipes are never mutated inside a unit of work
	for k, v := range m.recipes {
		c.recipes[k] = v
	}
	for k, v := range m.reservations {
		c.reservations[k] = v
	}
	return c
}

// memTx serves both Reader and Tx; the memory store's locking makes every
// read consistent.
type memTx struct {
	state *memState
}

func (t *memTx) RecipeFor(_ context.Context, productID int64) ([]domain.RecipeLine, error) {
	lines := t.state.recipes[productID]
	out := make([]domain.RecipeLine, len(lines))
	copy(out, lines)
	return out, nil
}

func (t *memTx) Items(_ context.Context, ids []int64) (map[int64]domain.WarehouseItem, error) {
	result := make(map[int64]domain.WarehouseItem, len(ids))
	for _, id := range ids {
		if item, ok := t.state.items[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}

func (t *memTx) AllItems(_ context.Context) ([]domain.WarehouseItem, error) {
	items := make([]domain.WarehouseItem, 0, len(t.state.items))
	for _, item := range t.state.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (t *memTx) ReservedTotals(_ context.Context, ids []int64) (map[int64]int, error) {
	var wanted map[int64]bool
	if len(ids) > 0 {
		wanted = make(map[int64]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
	}

	totals := make(map[int64]int)
	for _, r := range t.state.reservations {
		if wanted != nil && !wanted[r.WarehouseItemID] {
			continue
		}
		totals[r.WarehouseItemID] += r.ReservedQuantity
	}
	return totals, nil
}

func (t *memTx) ReservationsForOrder(_ context.Context, orderID int64) ([]domain.Reservation, error) {
	var result []domain.Reservation
	for _, r := range t.state.reservations {
		if r.OrderID == orderID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WarehouseItemID < result[j].WarehouseItemID })
	return result, nil
}

func (t *memTx) StaleOrders(_ context.Context, cutoff time.Time) ([]int64, error) {
	seen := make(map[int64]bool)
	var orders []int64
	for _, r := range t.state.reservations {
		if r.CreatedAt.Before(cutoff) && !seen[r.OrderID] {
			seen[r.OrderID] = true
			orders = append(orders, r.OrderID)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i] < orders[j] })
	return orders, nil
}

func (t *memTx) LockItems(ctx context.Context, ids []int64) (map[int64]domain.WarehouseItem, error) {
	// the store mutex already serializes writers
	return t.Items(ctx, ids)
}

func (t *memTx) InsertReservations(_ context.Context, reservations []domain.Reservation) error {
	now := time.Now()
	for _, r := range reservations {
		if existing, ok := t.findReservation(r.OrderID, r.WarehouseItemID); ok {
			// one row per order and item; repeated claims accumulate
			existing.ReservedQuantity += r.ReservedQuantity
			t.state.reservations[existing.ID] = existing
			continue
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		t.state.reservations[r.ID] = r
	}
	return nil
}

func (t *memTx) findReservation(orderID, itemID int64) (domain.Reservation, bool) {
	for _, r := range t.state.reservations {
		if r.OrderID == orderID && r.WarehouseItemID == itemID {
			return r, true
		}
	}
	return domain.Reservation{}, false
}

func (t *memTx) DeleteReservations(_ context.Context, orderID int64) (int, error) {
	deleted := 0
	for id, r := range t.state.reservations {
		if r.OrderID == orderID {
			delete(t.state.reservations, id)
			deleted++
		}
	}
	return deleted, nil
}

func (t *memTx) AdjustQuantity(_ context.Context, itemID int64, delta int) error {
	item, ok := t.state.items[itemID]
	if !ok {
		return domain.ErrItemNotFound
	}
	if item.Quantity+delta < 0 {
		return domain.ErrNegativeStock
	}
	item.Quantity += delta
	item.UpdatedAt = time.Now()
	t.state.items[itemID] = item
	return nil
}

package warehouse

import (
	"context"
	"fmt"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/store"
	"go.uber.org/zap"
)

// Service answers stock questions of the warehouse subsystem and books stock-in
type Service struct {
	store  store.Store
	logger *zap.Logger
}

func NewService(s store.Store, logger *zap.Logger) *Service {
	return &Service{store: s, logger: logger}
}

// ReceiveStock adds delivered units to an item under the same row lock the
// reservation paths take.
func (s *Service) ReceiveStock(ctx context.Context, itemID int64, quantity int) (domain.StockInfo, error) {
	if quantity <= 0 {
		return domain.StockInfo{}, domain.ErrInvalidQuantity
	}

	var info domain.StockInfo
	err := s.store.Update(ctx, func(tx store.Tx) error {
		locked, err := tx.LockItems(ctx, []int64{itemID})
		if err != nil {
			return err
		}
		item, ok := locked[itemID]
		if !ok {
			return fmt.Errorf("item %d: %w", itemID, domain.ErrItemNotFound)
		}
		if err := tx.AdjustQuantity(ctx, itemID, quantity); err != nil {
			return err
		}

		reserved, err := tx.ReservedTotals(ctx, []int64{itemID})
		if err != nil {
			return err
		}
		item.Quantity += quantity
		info = stockInfo(item, reserved[itemID])
		return nil
	})
	if err != nil {
		return domain.StockInfo{}, domain.NewStorageError("receive stock", err)
	}

	s.logger.Info("stock received",
		zap.Int64("item_id", itemID),
		zap.Int("quantity", quantity),
		zap.Int("on_hand", info.OnHand))
	return info, nil
}

// Stock reports on-hand, reserved and free quantities of the given items.
// Unknown IDs are left out; no IDs means every item.
func (s *Service) Stock(ctx context.Context, ids []int64) ([]domain.StockInfo, error) {
	var result []domain.StockInfo
	err := s.store.View(ctx, func(r store.Reader) error {
		items, err := s.items(ctx, r, ids)
		if err != nil {
			return err
		}
		reserved, err := r.ReservedTotals(ctx, ids)
		if err != nil {
			return err
		}
		result = make([]domain.StockInfo, 0, len(items))
		for _, item := range items {
			result = append(result, stockInfo(item, reserved[item.ID]))
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("read stock", err)
	}
	return result, nil
}

// LowStock lists the items whose free quantity is below their minimum
func (s *Service) LowStock(ctx context.Context) ([]domain.StockInfo, error) {
	all, err := s.Stock(ctx, nil)
	if err != nil {
		return nil, err
	}
	low := make([]domain.StockInfo, 0)
	for _, info := range all {
		if info.IsLow() {
			low = append(low, info)
		}
	}
	return low, nil
}

func (s *Service) items(ctx context.Context, r store.Reader, ids []int64) ([]domain.WarehouseItem, error) {
	if len(ids) == 0 {
		return r.AllItems(ctx)
	}
	byID, err := r.Items(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]domain.WarehouseItem, 0, len(byID))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			items = append(items, item)
		}
	}
	return items, nil
}

func stockInfo(item domain.WarehouseItem, reserved int) domain.StockInfo {
	return domain.StockInfo{
		WarehouseItemID: item.ID,
		Name:            item.Name,
		OnHand:          item.Quantity,
		Reserved:        reserved,
		MinQuantity:     item.MinQuantity,
	}
}

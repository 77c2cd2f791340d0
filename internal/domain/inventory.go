package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// WarehouseItem is a raw component held in the shared warehouse
type WarehouseItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	MinQuantity int             `json:"min_quantity"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	RetailPrice decimal.Decimal `json:"retail_price"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RecipeLine is one bill-of-materials line of a sellable product
type RecipeLine struct {
	ProductID       int64 `json:"product_id"`
	WarehouseItemID int64 `json:"warehouse_item_id"`
	Quantity        int   `json:"quantity"`
	IsOptional      bool  `json:"is_optional"`
}

// Reservation is a provisional claim of one component by one order
type Reservation struct {
	ID               string    `json:"id"`
	OrderID          int64     `json:"order_id"`
	WarehouseItemID  int64     `json:"warehouse_item_id"`
	ReservedQuantity int       `json:"reserved_quantity"`
	CreatedAt        time.Time `json:"created_at"`
}

// LineItem is a requested product and quantity of an order
type LineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// StockInfo contains stock information for a warehouse item
type StockInfo struct {
	WarehouseItemID int64  `json:"warehouse_item_id"`
	Name            string `json:"name"`
	OnHand          int    `json:"on_hand"`
	Reserved        int    `json:"reserved"`
	MinQuantity     int    `json:"min_quantity"`
}

// Free returns the quantity not claimed by any reservation (on hand - reserved)
func (s StockInfo) Free() int {
	return s.OnHand - s.Reserved
}

// IsLow reports whether the free quantity dropped below the reorder threshold
func (s StockInfo) IsLow() bool {
	return s.Free() < s.MinQuantity
}

// MaxUnits bounds every demand and reservation; quantities are stored as 32-bit integers
const MaxUnits = math.MaxInt32

// LineDemand is the number of units of one component a line needs
func LineDemand(perUnit, quantity int) (int, error) {
	if perUnit <= 0 {
		return 0, ErrInvalidRecipe
	}
	if quantity <= 0 || quantity > MaxUnits/perUnit {
		return 0, ErrInvalidQuantity
	}
	return perUnit * quantity, nil
}

// AddUnits sums two demands, refusing totals beyond MaxUnits
func AddUnits(a, b int) (int, error) {
	if a < 0 || b < 0 || a > MaxUnits-b {
		return 0, ErrInvalidQuantity
	}
	return a + b, nil
}

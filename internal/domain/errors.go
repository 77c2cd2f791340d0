package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be greater than 0")
	ErrNoLineItems       = errors.New("at least one line item is required")
	ErrInvalidRecipe     = errors.New("recipe line quantity must be greater than 0")
	ErrNegativeStock     = errors.New("stock quantity would become negative")
	ErrItemNotFound      = errors.New("warehouse item not found")
	ErrOrderNotFound     = errors.New("order not found")
)

// InsufficientStockError names the required component that could not be claimed
type InsufficientStockError struct {
	ComponentID int64
	Component   string
	Required    int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: required %d, available %d", e.Component, e.Required, e.Available)
}

// Shortfall is how many units are missing
func (e *InsufficientStockError) Shortfall() int {
	return e.Required - e.Available
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StorageError wraps any failure of the backing store. The surrounding
// transaction has been rolled back when it is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err unless it already is a domain error the caller
// should see as is.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var stockErr *InsufficientStockError
	var storageErr *StorageError
	switch {
	case errors.As(err, &stockErr), errors.As(err, &storageErr),
		errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidRecipe), errors.Is(err, ErrNoLineItems),
		errors.Is(err, ErrNegativeStock), errors.Is(err, ErrItemNotFound):
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ComponentName is used when a recipe references an item missing from the warehouse
func ComponentName(item WarehouseItem, id int64) string {
	if item.Name != "" {
		return item.Name
	}
	return fmt.Sprintf("item #%d", id)
}

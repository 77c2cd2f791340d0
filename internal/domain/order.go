package domain

// OrderStatus mirrors the status column owned by the order subsystem
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "NEW"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusAccepted   OrderStatus = "ACCEPTED"
	OrderStatusAssembled  OrderStatus = "ASSEMBLED"
	OrderStatusInDelivery OrderStatus = "IN_DELIVERY"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// IsAwaitingPayment reports whether the order never left its initial unpaid state
func (s OrderStatus) IsAwaitingPayment() bool {
	return s == OrderStatusNew
}

// IsFulfillmentTransition reports whether moving from prev to s is the single
// transition on which reserved stock becomes a permanent deduction.
func (s OrderStatus) IsFulfillmentTransition(prev OrderStatus) bool {
	return prev == OrderStatusAccepted && s == OrderStatusAssembled
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

package domain

// ClaimOutcome is the result of trying to claim one component for an order.
// It is one of Claimed, Skipped or Failed.
type ClaimOutcome interface {
	ComponentID() int64
	isClaimOutcome()
}

// Claimed means the full demand was reserved
type Claimed struct {
	ItemID   int64
	Name     string
	Quantity int
}

// Skipped means an optional demand could not be met and was left out of the order
type Skipped struct {
	ItemID    int64
	Name      string
	Required  int
	Available int
}

// Failed means a required demand could not be met; the order cannot be reserved
type Failed struct {
	ItemID    int64
	Name      string
	Required  int
	Available int
}

func (c Claimed) ComponentID() int64 { return c.ItemID }
func (s Skipped) ComponentID() int64 { return s.ItemID }
func (f Failed) ComponentID() int64  { return f.ItemID }

func (Claimed) isClaimOutcome() {}
func (Skipped) isClaimOutcome() {}
func (Failed) isClaimOutcome()  {}

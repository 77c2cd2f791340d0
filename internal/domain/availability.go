package domain

// ComponentAvailability reports one recipe line of an availability check
type ComponentAvailability struct {
	ComponentID     int64  `json:"component_id"`
	Name            string `json:"name"`
	RequiredPerUnit int    `json:"required_per_unit"`
	OnHand          int    `json:"on_hand"`
	Reserved        int    `json:"reserved"`
	Free            int    `json:"free"`
	Optional        bool   `json:"optional"`
}

// AvailabilityResult is the outcome of checking one product against stock.
// Unconstrained is set for products without recipe lines: such products are
// always reported available and MaxQuantity echoes the requested quantity.
type AvailabilityResult struct {
	ProductID     int64                   `json:"product_id"`
	Requested     int                     `json:"requested"`
	Available     bool                    `json:"available"`
	MaxQuantity   int                     `json:"max_quantity"`
	Unconstrained bool                    `json:"unconstrained"`
	PerComponent  []ComponentAvailability `json:"per_component"`
	Warnings      []string                `json:"warnings"`
}

// BatchResult aggregates availability for every line of an order preview
type BatchResult struct {
	Available bool                 `json:"available"`
	Items     []AvailabilityResult `json:"items"`
	Warnings  []string             `json:"warnings"`
}

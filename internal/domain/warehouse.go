package domain

// Warehouse is a numbered storage location. Quantity is the denormalized sum
// of its stock allocations and is only written by the totals recompute.
type Warehouse struct {
	ID       int  `json:"warehouse_number"`
	Quantity int  `json:"quantity"`
	Active   bool `json:"active"`
}

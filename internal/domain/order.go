package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// Order status constants. The only transition is open -> closed.
const (
	OrderStatusOpen   OrderStatus = "open"
	OrderStatusClosed OrderStatus = "closed"
)

// ValidOrderStatuses returns all valid order statuses.
func ValidOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusOpen, OrderStatusClosed}
}

// IsValidOrderStatus checks if a status string is valid.
func IsValidOrderStatus(status string) bool {
	for _, s := range ValidOrderStatuses() {
		if string(s) == status {
			return true
		}
	}
	return false
}

// DateLayout is the wire format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day in UTC.
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current UTC calendar day.
func Today() Date {
	return NewDate(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Order is a customer order. Positions are populated only on detail reads.
type Order struct {
	ID        string      `json:"id"`
	Date      Date        `json:"order_date"`
	Status    OrderStatus `json:"status"`
	Positions []Position  `json:"positions,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsClosed reports whether the order has been closed.
func (o *Order) IsClosed() bool {
	return o.Status == OrderStatusClosed
}

// CanModify reports whether positions may still be added or removed.
func (o *Order) CanModify() bool {
	return o.Status == OrderStatusOpen
}

// Position is one product line of an order. It is immutable once created.
type Position struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Validate checks the position invariants that do not need storage.
func (p *Position) Validate() error {
	if p.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	if p.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("quantity must be greater than 0, got %d", p.Quantity)
	}
	return nil
}

// CloseResult is what closing an order returns: the closed order and every
// ledger deduction applied to reach it.
type CloseResult struct {
	Order      *Order           `json:"order"`
	Deductions []StockDeduction `json:"deductions"`
}

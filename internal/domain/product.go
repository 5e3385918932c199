package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places persisted for prices.
const PriceScale = 2

// Product is a catalogue entry.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Normalize trims text fields and rounds the price to PriceScale.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Unit = strings.TrimSpace(p.Unit)
	p.Price = p.Price.Round(PriceScale)
}

// Validate checks name, unit and price.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.Unit) == "" {
		return fmt.Errorf("unit is required")
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("price must be >= 0, got %s", p.Price.StringFixed(PriceScale))
	}
	return nil
}

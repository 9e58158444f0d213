// Package cart holds the terminal's line items. Items are keyed by product
// code: adding a code twice increments quantity, and a quantity driven to
// zero or below removes the line.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"janpos/terminal/internal/domain"
)

// DefaultTaxRate applies when an item carries no explicit rate.
const DefaultTaxRate = 0.10

// Cart is safe for concurrent use; each mutation is applied atomically under
// one lock so rapid duplicate events still converge on consistent totals.
type Cart struct {
	mu    sync.Mutex
	items []domain.CartItem
}

func New() *Cart {
	return &Cart{}
}

// Add merges by product code: an existing line gains one unit with every
// other field left untouched, a new product is appended with quantity 1.
func (c *Cart) Add(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].Code == p.Code {
			c.items[i].Quantity++
			return
		}
	}
	c.items = append(c.items, domain.CartItem{Product: p, Quantity: 1})
}

// SetQuantity replaces a line's quantity in place, preserving list order.
// qty <= 0 removes the line entirely; a quantity of zero is never stored.
func (c *Cart) SetQuantity(code string, qty int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if qty <= 0 {
		c.removeLocked(code)
		return
	}
	for i := range c.items {
		if c.items[i].Code == code {
			c.items[i].Quantity = qty
			return
		}
	}
}

// Remove deletes the line for code, if present.
func (c *Cart) Remove(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(code)
}

func (c *Cart) removeLocked(code string) {
	for i := range c.items {
		if c.items[i].Code == code {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Quantity returns the total unit count across all lines.
func (c *Cart) Quantity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

// Subtotal is the tax-free sum of price x quantity in whole yen.
func (c *Cart) Subtotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, item := range c.items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// Total is the displayed tax-inclusive total: floor(subtotal * (1 + rate))
// with a single blended DefaultTaxRate. This is the terminal's display mode;
// ItemizedTax exists as the alternate per-item projection but the two are
// never mixed into one figure.
func (c *Cart) Total() int64 {
	subtotal := decimal.NewFromInt(c.Subtotal())
	rate := decimal.NewFromFloat(1 + DefaultTaxRate)
	return subtotal.Mul(rate).Floor().IntPart()
}

// ItemizedTax sums floor(line subtotal * rate) per line, using each item's
// own rate when present and DefaultTaxRate otherwise. Truncation happens per
// line before summing, so this need not equal Total() - Subtotal().
func (c *Cart) ItemizedTax() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var tax int64
	for _, item := range c.items {
		rate := DefaultTaxRate
		if item.TaxRate != nil {
			rate = *item.TaxRate
		}
		line := decimal.NewFromInt(item.Price * int64(item.Quantity))
		tax += line.Mul(decimal.NewFromFloat(rate)).Floor().IntPart()
	}
	return tax
}

// Clear empties the cart. Called only after a successful checkout; a failed
// checkout leaves the cart exactly as it was.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

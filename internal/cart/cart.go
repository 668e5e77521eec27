package cart

import "math"

// MaxQuantity bounds the quantity of a single line.
const MaxQuantity = 9999

// Line is one product in the cart. UnitPrice is in minor currency units.
type Line struct {
	ProductUID string `json:"productUid"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unitPrice"`
	Quantity   int    `json:"quantity"`
}

// Amount is the line total in minor units.
func (l Line) Amount() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Cart holds at most one line per product, each with quantity >= 1.
type Cart struct {
	Lines []Line `json:"lines"`
}

// Add merges qty into the line for the same product or appends a new line.
// The cart is left untouched and ErrInvalidQuantity returned when qty or the
// merged quantity is outside 1..MaxQuantity, or the subtotal would not fit in
// an int64.
func (c *Cart) Add(line Line, qty int) error {
	if qty < 1 || qty > MaxQuantity {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].ProductUID == line.ProductUID {
			return c.setQuantity(i, c.Lines[i].Quantity+qty)
		}
	}
	line.Quantity = qty
	c.Lines = append(c.Lines, line)
	if !c.priceable() {
		c.Lines = c.Lines[:len(c.Lines)-1]
		return ErrInvalidQuantity
	}
	return nil
}

func (c *Cart) setQuantity(i, qty int) error {
	if qty < 1 || qty > MaxQuantity {
		return ErrInvalidQuantity
	}
	prev := c.Lines[i].Quantity
	c.Lines[i].Quantity = qty
	if !c.priceable() {
		c.Lines[i].Quantity = prev
		return ErrInvalidQuantity
	}
	return nil
}

// priceable reports whether every line amount and the subtotal fit in an
// int64.
func (c Cart) priceable() bool {
	var total int64
	for _, l := range c.Lines {
		if l.UnitPrice < 0 {
			return false
		}
		if l.UnitPrice > 0 && int64(l.Quantity) > math.MaxInt64/l.UnitPrice {
			return false
		}
		amount := l.Amount()
		if total > math.MaxInt64-amount {
			return false
		}
		total += amount
	}
	return true
}

// Remove deletes the lines at the given indexes. Unknown indexes are ignored.
func (c *Cart) Remove(indexes []int) {
	if len(indexes) == 0 {
		return
	}
	drop := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		drop[i] = true
	}
	kept := c.Lines[:0]
	for i, l := range c.Lines {
		if !drop[i] {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
}

// UpdateQuantity overwrites the quantity of the line for productUID. It is a
// no-op when the product is not in the cart. Out-of-range quantities leave the
// cart untouched and return ErrInvalidQuantity.
func (c *Cart) UpdateQuantity(productUID string, qty int) error {
	if qty < 1 || qty > MaxQuantity {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].ProductUID == productUID {
			return c.setQuantity(i, qty)
		}
	}
	return nil
}

func (c *Cart) Clear() {
	c.Lines = nil
}

func (c Cart) TotalItems() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// TotalPrice is the subtotal of all lines in minor units.
func (c Cart) TotalPrice() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.Amount()
	}
	return total
}

// Snapshot returns a copy of the lines that later mutations cannot affect.
func (c Cart) Snapshot() []Line {
	out := make([]Line, len(c.Lines))
	copy(out, c.Lines)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

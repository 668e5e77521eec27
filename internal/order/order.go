package order

import (
	"strings"

	"github.com/pageone/kundeklubb-backend/internal/cart"
)

type ShippingMethod string

const (
	ShippingPickup ShippingMethod = "pickup"
	ShippingShip   ShippingMethod = "ship"
)

func (m ShippingMethod) Valid() bool {
	return m == ShippingPickup || m == ShippingShip
}

// Contact is the customer contact snapshot taken at checkout.
type Contact struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	PostCode  string `json:"postcode"`
	PostPlace string `json:"postPlace"`
}

// ShippingPolicy charges Surcharge for shipped orders whose subtotal is
// below FreeThreshold. All amounts are minor units.
type ShippingPolicy struct {
	FreeThreshold int64
	Surcharge     int64
	ProductUID    string
}

// SurchargeFor returns the shipping fee for method and subtotal.
func (p ShippingPolicy) SurchargeFor(method ShippingMethod, subtotal int64) int64 {
	if method == ShippingShip && subtotal < p.FreeThreshold {
		return p.Surcharge
	}
	return 0
}

// Draft is the order as it stands when checkout starts. It lives only for the
// duration of one checkout attempt.
type Draft struct {
	Contact  Contact        `json:"contact"`
	Method   ShippingMethod `json:"shippingMethod"`
	Lines    []cart.Line    `json:"lines"`
	Shipping *cart.Line     `json:"shipping,omitempty"`
	Subtotal int64          `json:"subtotal"`
	Total    int64          `json:"total"`
}

// NewDraft snapshots lines and prices the order.
func NewDraft(contact Contact, method ShippingMethod, lines []cart.Line, policy ShippingPolicy) Draft {
	snapshot := cart.Cart{Lines: lines}.Snapshot()
	subtotal := cart.Cart{Lines: snapshot}.TotalPrice()

	d := Draft{
		Contact:  contact,
		Method:   method,
		Lines:    snapshot,
		Subtotal: subtotal,
		Total:    subtotal,
	}
	if fee := policy.SurchargeFor(method, subtotal); fee > 0 {
		d.Shipping = &cart.Line{ProductUID: policy.ProductUID, Name: "Frakt", UnitPrice: fee, Quantity: 1}
		d.Total += fee
	}
	return d
}

// ItemLines is every line the back-office order receives, shipping last.
func (d Draft) ItemLines() []cart.Line {
	out := make([]cart.Line, 0, len(d.Lines)+1)
	out = append(out, d.Lines...)
	if d.Shipping != nil {
		out = append(out, *d.Shipping)
	}
	return out
}

const unknownLastName = "Unknown"

// SplitName splits a display name at the first whitespace. The last name is
// never empty.
func SplitName(name string) (first, last string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", unknownLastName
	}
	first = fields[0]
	last = strings.Join(fields[1:], " ")
	if last == "" {
		last = unknownLastName
	}
	return first, last
}

// Package cart holds the per-terminal checkout state: the selected lines,
// their stock ceilings and the money arithmetic over them.
package cart

import (
	"errors"
	"fmt"

	"go-pos-ws/internal/model"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateEmpty       State = "empty"
	StateBuilding    State = "building"
	StateCheckingOut State = "checking-out"
)

var (
	ErrOutOfStock          = errors.New("product is out of stock")
	ErrStockExceeded       = errors.New("quantity exceeds available stock")
	ErrUnknownVariation    = errors.New("variation not found")
	ErrLineNotFound        = errors.New("cart line not found")
	ErrNegativeDiscount    = errors.New("discount cannot be negative")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientPayment = errors.New("tendered amount is less than total")
	ErrUnknownPayment      = errors.New("unknown payment method")
	ErrCheckoutInFlight    = errors.New("checkout already in progress")
	ErrNotCheckingOut      = errors.New("cart is not checking out")
)

// Item is one cart line. Stock is the last known current_stock of the
// product and acts as the quantity ceiling for every line of that product.
type Item struct {
	ProductID uint             `json:"product_id"`
	Name      string           `json:"name"`
	Price     decimal.Decimal  `json:"price"`
	Variation *model.Variation `json:"variation,omitempty"`
	Quantity  int              `json:"quantity"`
	Discount  decimal.Decimal  `json:"discount"`
	Stock     int              `json:"stock"`
}

// UnitPrice resolves the variation price when one is selected.
func (i Item) UnitPrice() decimal.Decimal {
	if i.Variation != nil {
		return i.Variation.Price
	}
	return i.Price
}

func (i Item) LineTotal() decimal.Decimal {
	return LineTotal(i.UnitPrice(), i.Quantity, i.Discount)
}

func (i Item) variationID() string {
	if i.Variation == nil {
		return ""
	}
	return i.Variation.ID
}

// Cart is the in-progress sale of one terminal. SessionID ties a stored
// cart to the session it was built against; OwnerID is the member who may
// resume it.
type Cart struct {
	OwnerID   string          `json:"owner_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Items     []Item          `json:"items"`
	Discount  decimal.Decimal `json:"discount"`
	State     State           `json:"state"`
}

func New() *Cart {
	return &Cart{Items: []Item{}, State: StateEmpty}
}

// Subtotal is the sum of line totals.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Total is the subtotal minus the cart-wide discount.
func (c *Cart) Total() decimal.Decimal {
	return c.Subtotal().Sub(c.Discount)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Add puts one unit of product (optionally a variation of it) into the cart.
// It checks against the in-memory stock value only; a rejected add leaves the
// cart unchanged.
func (c *Cart) Add(p model.SessionProduct, variationID string) error {
	if c.State == StateCheckingOut {
		return ErrCheckoutInFlight
	}
	if p.CurrentStock <= 0 {
		return fmt.Errorf("%w: %s", ErrOutOfStock, p.Name)
	}

	var variation *model.Variation
	if variationID != "" {
		v, ok := p.FindVariation(variationID)
		if !ok {
			return ErrUnknownVariation
		}
		vc := *v
		variation = &vc
	}

	if c.quantityOf(p.ID, -1)+1 > p.CurrentStock {
		return fmt.Errorf("%w: only %d %s left", ErrStockExceeded, p.CurrentStock, p.Name)
	}

	c.refreshCeiling(p.ID, p.CurrentStock)
	for i := range c.Items {
		if c.Items[i].ProductID == p.ID && c.Items[i].variationID() == variationID {
			c.Items[i].Quantity++
			c.State = StateBuilding
			return nil
		}
	}

	c.Items = append(c.Items, Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Variation: variation,
		Quantity:  1,
		Discount:  decimal.Zero,
		Stock:     p.CurrentStock,
	})
	c.State = StateBuilding
	return nil
}

// SetQuantity changes the quantity of a line. Zero or less removes it.
// Going over the stock ceiling is rejected and the previous quantity stays.
func (c *Cart) SetQuantity(line, qty int) error {
	if c.State == StateCheckingOut {
		return ErrCheckoutInFlight
	}
	if line < 0 || line >= len(c.Items) {
		return ErrLineNotFound
	}
	if qty <= 0 {
		return c.Remove(line)
	}

	it := c.Items[line]
	if c.quantityOf(it.ProductID, line)+qty > it.Stock {
		return fmt.Errorf("%w: only %d %s left", ErrStockExceeded, it.Stock, it.Name)
	}
	c.Items[line].Quantity = qty
	return nil
}

func (c *Cart) SetLineDiscount(line int, d decimal.Decimal) error {
	if c.State == StateCheckingOut {
		return ErrCheckoutInFlight
	}
	if line < 0 || line >= len(c.Items) {
		return ErrLineNotFound
	}
	if d.IsNegative() {
		return ErrNegativeDiscount
	}
	c.Items[line].Discount = d
	return nil
}

// UpdateLine applies a line discount and a quantity together. Both are
// checked before either is written, so a rejected call changes nothing.
// A nil argument leaves that field as it is.
func (c *Cart) UpdateLine(line int, qty *int, discount *decimal.Decimal) error {
	if c.State == StateCheckingOut {
		return ErrCheckoutInFlight
	}
	if line < 0 || line >= len(c.Items) {
		return ErrLineNotFound
	}
	if discount != nil && discount.IsNegative() {
		return ErrNegativeDiscount
	}
	it := c.Items[line]
	if qty != nil && *qty > 0 && c.quantityOf(it.ProductID, line)+*qty > it.Stock {
		return fmt.Errorf("%w: only %d %s left", ErrStockExceeded, it.Stock, it.Name)
	}

	if discount != nil {
		c.Items[line].Discount = *discount
	}
	if qty != nil {
		if *qty <= 0 {
			return c.Remove(line)
		}
		c.Items[line].Quantity = *qty
	}
	return nil
}

func (c *Cart) SetDiscount(d decimal.Decimal) error {
	if c.State == StateCheckingOut {
		return ErrCheckoutInFlight
	}
	if d.IsNegative() {
		return ErrNegativeDiscount
	}
	c.Discount = d
	return nil
}

func (c *Cart) Remove(line int) error {
	if c.State == StateCheckingOut {
		return ErrCheckoutInFlight
	}
	if line < 0 || line >= len(c.Items) {
		return ErrLineNotFound
	}
	c.Items = append(c.Items[:line], c.Items[line+1:]...)
	if len(c.Items) == 0 {
		c.State = StateEmpty
	}
	return nil
}

// Clear drops every line and the cart discount.
func (c *Cart) Clear() {
	c.Items = []Item{}
	c.Discount = decimal.Zero
	c.State = StateEmpty
}

// UpdateStock refreshes ceilings from authoritative stock values. Lines whose
// product dropped below the quantity in the cart are clamped, last line
// first; the affected product ids are returned.
func (c *Cart) UpdateStock(stock map[uint]int) []uint {
	var clamped []uint
	seen := map[uint]bool{}
	for i := len(c.Items) - 1; i >= 0; i-- {
		id := c.Items[i].ProductID
		current, ok := stock[id]
		if !ok {
			continue
		}
		c.Items[i].Stock = current
		over := c.quantityOf(id, -1) - current
		if over <= 0 {
			continue
		}
		if over >= c.Items[i].Quantity {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		} else {
			c.Items[i].Quantity -= over
		}
		if !seen[id] {
			seen[id] = true
			clamped = append(clamped, id)
		}
	}
	if len(c.Items) == 0 && c.State == StateBuilding {
		c.State = StateEmpty
	}
	return clamped
}

// Quantities returns the total quantity per product across all lines.
func (c *Cart) Quantities() map[uint]int {
	q := make(map[uint]int)
	for _, it := range c.Items {
		q[it.ProductID] += it.Quantity
	}
	return q
}

func (c *Cart) quantityOf(productID uint, skipLine int) int {
	total := 0
	for i, it := range c.Items {
		if i == skipLine || it.ProductID != productID {
			continue
		}
		total += it.Quantity
	}
	return total
}

func (c *Cart) refreshCeiling(productID uint, stock int) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Stock = stock
		}
	}
}

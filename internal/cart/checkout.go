package cart

import (
	"go-pos-ws/internal/model"

	"github.com/shopspring/decimal"
)

// Payment describes how the customer pays. Tendered only matters for cash.
type Payment struct {
	Method   model.PaymentMethod `json:"payment_method" validate:"required"`
	Tendered decimal.Decimal     `json:"tendered"`
}

// Request is the validated payload handed to the checkout service.
type Request struct {
	Items         []model.SaleItem    `json:"items"`
	Discount      decimal.Decimal     `json:"discount"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	Tendered      decimal.Decimal     `json:"tendered"`
}

// LineTotal is price × quantity − discount.
func LineTotal(price decimal.Decimal, qty int, discount decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty))).Sub(discount)
}

// SaleTotals recomputes subtotal and total for a list of sale lines.
func SaleTotals(items []model.SaleItem, discount decimal.Decimal) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(LineTotal(it.Price, it.Quantity, it.Discount))
	}
	return subtotal, subtotal.Sub(discount)
}

// ValidatePayment applies the tender rules for a given total.
func ValidatePayment(p Payment, total decimal.Decimal) error {
	switch p.Method {
	case model.PaymentCash:
		if p.Tendered.LessThan(total) {
			return ErrInsufficientPayment
		}
		return nil
	case model.PaymentBayarlahQR:
		return nil
	default:
		return ErrUnknownPayment
	}
}

// BeginCheckout validates the cart against the payment and moves it to
// checking-out. On error nothing changes.
func (c *Cart) BeginCheckout(p Payment) (*Request, error) {
	if c.State == StateCheckingOut {
		return nil, ErrCheckoutInFlight
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if err := ValidatePayment(p, c.Total()); err != nil {
		return nil, err
	}

	items := make([]model.SaleItem, len(c.Items))
	for i, it := range c.Items {
		items[i] = model.SaleItem{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			Price:       it.UnitPrice(),
			Discount:    it.Discount,
			VariationID: it.variationID(),
		}
	}

	c.State = StateCheckingOut
	return &Request{
		Items:         items,
		Discount:      c.Discount,
		PaymentMethod: p.Method,
		Tendered:      p.Tendered,
	}, nil
}

// Complete clears the cart after a successful write.
func (c *Cart) Complete() error {
	if c.State != StateCheckingOut {
		return ErrNotCheckingOut
	}
	c.Clear()
	return nil
}

// Fail returns the cart to building with its lines intact.
func (c *Cart) Fail() error {
	if c.State != StateCheckingOut {
		return ErrNotCheckingOut
	}
	c.State = StateBuilding
	return nil
}

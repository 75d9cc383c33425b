package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentBayarlahQR PaymentMethod = "bayarlah_qr"
)

// SaleItem is one line of a sale.
type SaleItem struct {
	ProductID   uint            `json:"productId"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	VariationID string          `json:"variationId,omitempty"`
}

// Sale is appended to Session.Sales on checkout and never changed afterwards.
type Sale struct {
	ID            string          `json:"id"`
	Items         []SaleItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Tendered      decimal.Decimal `json:"tendered"`
	Change        decimal.Decimal `json:"change"`
	Cashier       string          `json:"cashier"`
	Timestamp     time.Time       `json:"timestamp"`
}

package service

import (
	"context"
	"testing"
	"time"

	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var cashier = Actor{ID: "u1", Name: "Ana", Email: "ana@example.com"}

type checkoutFixture struct {
	svc       CheckoutService
	sessions  *fakeSessionRepo
	inventory *fakeInventoryRepo
	notifier  *fakeNotifier
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	sessions := newFakeSessionRepo()
	sessions.sessions["s1"] = &model.Session{
		ID:     "s1",
		Name:   "Night Market",
		Status: model.SessionActive,
		Products: []model.SessionProduct{
			{ID: 1, Name: "Coffee", Price: d("10.00")},
			{ID: 2, Name: "Tea", Price: d("8.00"), Variations: []model.Variation{{ID: "large", Name: "Large", Price: d("12.50")}}},
		},
	}
	sessions.sessions["done"] = &model.Session{ID: "done", Name: "Old", Status: model.SessionCompleted}

	inventory := newFakeInventoryRepo(sessions)
	inventory.set("s1", 1, 10, 10)
	inventory.set("s1", 2, 5, 5)

	notifier := &fakeNotifier{}
	svc := NewCheckoutService(sessions, inventory, notifier, zap.NewNop())
	svc.(*checkoutService).now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return &checkoutFixture{svc: svc, sessions: sessions, inventory: inventory, notifier: notifier}
}

func TestCheckout_TwoCoffeesByQR(t *testing.T) {
	f := newCheckoutFixture(t)

	res, err := f.svc.Checkout(context.Background(), "s1", &cart.Request{
		Items:         []model.SaleItem{{ProductID: 1, Quantity: 2}},
		PaymentMethod: model.PaymentBayarlahQR,
	}, cashier)
	require.NoError(t, err)

	assert.True(t, d("20.00").Equal(res.Sale.Subtotal))
	assert.True(t, d("20.00").Equal(res.Sale.Total))
	assert.True(t, d("20.00").Equal(res.Sale.Tendered))
	assert.True(t, res.Sale.Change.IsZero())
	assert.Equal(t, "Ana", res.Sale.Cashier)
	assert.NotEmpty(t, res.Sale.ID)

	assert.Equal(t, 8, f.inventory.stock["s1"][1].CurrentStock)
	require.Len(t, f.sessions.sessions["s1"].Sales, 1)
	assert.Equal(t, 8, res.Products[0].CurrentStock)
	assert.Eventually(t, func() bool { return f.notifier.count("stock_update") == 1 }, time.Second, 5*time.Millisecond)
}

func TestCheckout_PricesComeFromSnapshot(t *testing.T) {
	f := newCheckoutFixture(t)

	res, err := f.svc.Checkout(context.Background(), "s1", &cart.Request{
		Items: []model.SaleItem{
			{ProductID: 1, Quantity: 1, Price: d("0.01"), Name: "Free coffee"},
			{ProductID: 2, Quantity: 2, VariationID: "large", Discount: d("5.00")},
		},
		Discount:      d("1.00"),
		PaymentMethod: model.PaymentCash,
		Tendered:      d("50.00"),
	}, cashier)
	require.NoError(t, err)

	assert.Equal(t, "Coffee", res.Sale.Items[0].Name)
	assert.True(t, d("10.00").Equal(res.Sale.Items[0].Price))
	assert.True(t, d("12.50").Equal(res.Sale.Items[1].Price))
	// 10 + (25 - 5) = 30, minus 1 cart discount
	assert.True(t, d("30.00").Equal(res.Sale.Subtotal))
	assert.True(t, d("29.00").Equal(res.Sale.Total))
	assert.True(t, d("21.00").Equal(res.Sale.Change))
}

func TestCheckout_CashUnderpaymentWritesNothing(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.Checkout(context.Background(), "s1", &cart.Request{
		Items:         []model.SaleItem{{ProductID: 1, Quantity: 2}},
		PaymentMethod: model.PaymentCash,
		Tendered:      d("19.99"),
	}, cashier)
	assert.ErrorIs(t, err, cart.ErrInsufficientPayment)
	assert.Zero(t, f.inventory.applied)
	assert.Equal(t, 10, f.inventory.stock["s1"][1].CurrentStock)
}

func TestCheckout_InsufficientStockRejectsWholeSale(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.Checkout(context.Background(), "s1", &cart.Request{
		Items: []model.SaleItem{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 6},
		},
		PaymentMethod: model.PaymentBayarlahQR,
	}, cashier)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.Equal(t, 10, f.inventory.stock["s1"][1].CurrentStock)
	assert.Empty(t, f.sessions.sessions["s1"].Sales)
}

func TestCheckout_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		session string
		req     *cart.Request
		want    error
	}{
		{"empty cart", "s1", &cart.Request{PaymentMethod: model.PaymentCash}, cart.ErrEmptyCart},
		{"completed session", "done", &cart.Request{Items: []model.SaleItem{{ProductID: 1, Quantity: 1}}, PaymentMethod: model.PaymentBayarlahQR}, ErrSessionCompleted},
		{"missing session", "nope", &cart.Request{Items: []model.SaleItem{{ProductID: 1, Quantity: 1}}, PaymentMethod: model.PaymentBayarlahQR}, ErrSessionNotFound},
		{"unknown product", "s1", &cart.Request{Items: []model.SaleItem{{ProductID: 99, Quantity: 1}}, PaymentMethod: model.PaymentBayarlahQR}, ErrProductNotInSession},
		{"zero quantity", "s1", &cart.Request{Items: []model.SaleItem{{ProductID: 1, Quantity: 0}}, PaymentMethod: model.PaymentBayarlahQR}, ErrInvalidQuantity},
		{"unknown variation", "s1", &cart.Request{Items: []model.SaleItem{{ProductID: 2, Quantity: 1, VariationID: "xl"}}, PaymentMethod: model.PaymentBayarlahQR}, cart.ErrUnknownVariation},
		{"discount above subtotal", "s1", &cart.Request{Items: []model.SaleItem{{ProductID: 1, Quantity: 1}}, Discount: d("11"), PaymentMethod: model.PaymentBayarlahQR}, ErrNegativeTotal},
		{"negative discount", "s1", &cart.Request{Items: []model.SaleItem{{ProductID: 1, Quantity: 1}}, Discount: d("-1"), PaymentMethod: model.PaymentBayarlahQR}, cart.ErrNegativeDiscount},
		{"unknown payment", "s1", &cart.Request{Items: []model.SaleItem{{ProductID: 1, Quantity: 1}}, PaymentMethod: "card"}, cart.ErrUnknownPayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(t)
			_, err := f.svc.Checkout(context.Background(), tt.session, tt.req, cashier)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.inventory.applied)
		})
	}
}

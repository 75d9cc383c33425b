package terminal

import (
	"context"

	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/service"
	"go-pos-ws/internal/ws"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// mutate runs fn against the cart of the selected session, then persists and
// pushes the cart. Nothing is saved when fn fails.
func (t *Terminal) mutate(ctx context.Context, fn func(c *cart.Cart) error) (*CartView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, ErrNoSession
	}
	if err := fn(t.cart); err != nil {
		return nil, err
	}
	t.saveLocked(ctx)
	t.pushCartLocked(nil)
	view := t.cartViewLocked()
	return &view, nil
}

// AddItem adds one unit of a product, checked against the last known stock.
func (t *Terminal) AddItem(ctx context.Context, productID uint, variationID string) (*CartView, error) {
	return t.mutate(ctx, func(c *cart.Cart) error {
		p, ok := t.findProductLocked(productID)
		if !ok {
			return ErrProductNotFound
		}
		return c.Add(p, variationID)
	})
}

// UpdateLine changes quantity and line discount in one step.
func (t *Terminal) UpdateLine(ctx context.Context, line int, qty *int, discount *decimal.Decimal) (*CartView, error) {
	return t.mutate(ctx, func(c *cart.Cart) error {
		return c.UpdateLine(line, qty, discount)
	})
}

func (t *Terminal) SetDiscount(ctx context.Context, discount decimal.Decimal) (*CartView, error) {
	return t.mutate(ctx, func(c *cart.Cart) error {
		return c.SetDiscount(discount)
	})
}

func (t *Terminal) RemoveItem(ctx context.Context, line int) (*CartView, error) {
	return t.mutate(ctx, func(c *cart.Cart) error {
		return c.Remove(line)
	})
}

func (t *Terminal) ClearCart(ctx context.Context) (*CartView, error) {
	return t.mutate(ctx, func(c *cart.Cart) error {
		if c.State == cart.StateCheckingOut {
			return cart.ErrCheckoutInFlight
		}
		c.Clear()
		return nil
	})
}

// Checkout submits the cart. Expected post-sale stock is recorded as pending
// so a feed update that lags the write does not show stale stock. On success
// the cart is cleared and pending entries stay until the feed confirms them;
// on failure they are dropped and the cart goes back to building.
func (t *Terminal) Checkout(ctx context.Context, payment cart.Payment) (*service.CheckoutResult, error) {
	t.mu.Lock()
	if t.session == nil {
		t.mu.Unlock()
		return nil, ErrNoSession
	}
	req, err := t.cart.BeginCheckout(payment)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}

	sold := t.cart.Quantities()
	for id, qty := range sold {
		if p, ok := t.findProductLocked(id); ok {
			t.pending[id] = p.CurrentStock - qty
		}
	}
	sessionID, gen := t.session.ID, t.gen
	t.saveLocked(ctx)
	t.pushCartLocked(nil)
	t.mu.Unlock()

	res, err := t.mgr.checkout.Checkout(ctx, sessionID, req, t.actor())

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || t.closed {
		// The session changed under the request; the cart was already reset.
		return res, err
	}

	if err != nil {
		for id := range sold {
			delete(t.pending, id)
		}
		if ferr := t.cart.Fail(); ferr != nil {
			t.mgr.log.Warn("cart fail transition", zap.String("terminal_id", t.ID), zap.Error(ferr))
		}
		t.saveLocked(ctx)
		t.pushCartLocked(nil)
		return nil, err
	}

	if cerr := t.cart.Complete(); cerr != nil {
		t.mgr.log.Warn("cart complete transition", zap.String("terminal_id", t.ID), zap.Error(cerr))
	}
	t.products = ws.Reconcile(t.products, t.pending)
	t.saveLocked(ctx)
	t.pushSessionLocked()
	t.pushCartLocked(nil)
	return res, nil
}

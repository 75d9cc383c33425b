package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrSessionCompleted    = errors.New("session is completed")
	ErrProductNotInSession = errors.New("product is not part of this session")
	ErrInvalidQuantity     = errors.New("quantity must be greater than zero")
	ErrNegativeTotal       = errors.New("discount cannot exceed subtotal")
)

type CheckoutService interface {
	// Checkout re-validates a sale, records it and decrements stock in one
	// transaction. A shortfall on any line rejects the whole sale.
	Checkout(ctx context.Context, sessionID string, req *cart.Request, actor Actor) (*CheckoutResult, error)
}

type CheckoutResult struct {
	Sale     model.Sale             `json:"sale"`
	Products []model.SessionProduct `json:"products"`
}

type checkoutService struct {
	sessionRepo   repository.SessionRepository
	inventoryRepo repository.InventoryRepository
	notifier      Notifier
	log           *zap.Logger
	now           func() time.Time
}

func NewCheckoutService(sRepo repository.SessionRepository, iRepo repository.InventoryRepository, notifier Notifier, log *zap.Logger) CheckoutService {
	return &checkoutService{
		sessionRepo:   sRepo,
		inventoryRepo: iRepo,
		notifier:      notifier,
		log:           log,
		now:           time.Now,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, sessionID string, req *cart.Request, actor Actor) (*CheckoutResult, error) {
	// 1. Basic request checks
	if req == nil || len(req.Items) == 0 {
		return nil, cart.ErrEmptyCart
	}
	if req.Discount.IsNegative() {
		return nil, cart.ErrNegativeDiscount
	}

	// 2. Session must exist and be active
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.Status != model.SessionActive {
		return nil, ErrSessionCompleted
	}

	// 3. Resolve prices from the session snapshot, never from the client
	items, err := resolveItems(session.Products, req.Items)
	if err != nil {
		return nil, err
	}

	// 4. Recompute totals and apply the tender rules again
	subtotal, total := cart.SaleTotals(items, req.Discount)
	if total.IsNegative() {
		return nil, ErrNegativeTotal
	}
	payment := cart.Payment{Method: req.PaymentMethod, Tendered: req.Tendered}
	if err := cart.ValidatePayment(payment, total); err != nil {
		return nil, err
	}

	tendered, change := total, decimal.Zero
	if req.PaymentMethod == model.PaymentCash {
		tendered = req.Tendered
		change = req.Tendered.Sub(total)
	}

	sale := model.Sale{
		ID:            uuid.NewString(),
		Items:         items,
		Subtotal:      subtotal,
		Discount:      req.Discount,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		Tendered:      tendered,
		Change:        change,
		Cashier:       actor.Name,
		Timestamp:     s.now(),
	}

	// 5. Lock, decrement, append and rewrite the snapshot atomically
	products, err := s.inventoryRepo.ApplySale(ctx, sessionID, sale)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionInactive):
			return nil, ErrSessionCompleted
		case repository.IsNotFound(err):
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	// 6. Broadcast after commit
	go s.notifier.BroadcastJSON(map[string]interface{}{
		"type":       "stock_update",
		"action":     "sale_recorded",
		"session_id": sessionID,
		"sale": map[string]interface{}{
			"id":             sale.ID,
			"total":          sale.Total.StringFixed(2),
			"payment_method": sale.PaymentMethod,
			"items":          len(sale.Items),
		},
		"user":    actor.payload(),
		"message": fmt.Sprintf("%s recorded a sale of %s in %s", actor.Name, sale.Total.StringFixed(2), session.Name),
	})

	s.log.Info("sale recorded",
		zap.String("session_id", sessionID),
		zap.String("sale_id", sale.ID),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.String("payment_method", string(sale.PaymentMethod)))

	return &CheckoutResult{Sale: sale, Products: products}, nil
}

// resolveItems rebuilds sale lines with names and unit prices from the
// snapshot. Variation prices replace the base price.
func resolveItems(snapshot []model.SessionProduct, lines []model.SaleItem) ([]model.SaleItem, error) {
	byID := make(map[uint]*model.SessionProduct, len(snapshot))
	for i := range snapshot {
		byID[snapshot[i].ID] = &snapshot[i]
	}

	items := make([]model.SaleItem, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if line.Discount.IsNegative() {
			return nil, cart.ErrNegativeDiscount
		}
		p, ok := byID[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", ErrProductNotInSession, line.ProductID)
		}

		price := p.Price
		if line.VariationID != "" {
			v, ok := p.FindVariation(line.VariationID)
			if !ok {
				return nil, cart.ErrUnknownVariation
			}
			price = v.Price
		}

		items[i] = model.SaleItem{
			ProductID:   p.ID,
			Name:        p.Name,
			Quantity:    line.Quantity,
			Price:       price,
			Discount:    line.Discount,
			VariationID: line.VariationID,
		}
	}
	return items, nil
}

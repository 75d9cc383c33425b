package service

import (
	"context"
	"errors"
	"fmt"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/validator"

	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidStock    = errors.New("current stock cannot exceed initial stock")
)

type InventoryService interface {
	// GetSessionWithProducts returns the session with stock merged onto its
	// product snapshot.
	GetSessionWithProducts(ctx context.Context, sessionID string) (*model.Session, error)
	GetSessionProducts(ctx context.Context, sessionID string) ([]model.SessionProduct, error)
	UpdateStock(ctx context.Context, sessionID string, productID uint, req *UpdateStockRequest, actor Actor) ([]model.SessionProduct, error)
}

type UpdateStockRequest struct {
	InitialStock int `json:"initial_stock" validate:"gte=0"`
	CurrentStock int `json:"current_stock" validate:"gte=0"`
}

type inventoryService struct {
	sessionRepo   repository.SessionRepository
	inventoryRepo repository.InventoryRepository
	notifier      Notifier
	log           *zap.Logger
}

func NewInventoryService(sRepo repository.SessionRepository, iRepo repository.InventoryRepository, notifier Notifier, log *zap.Logger) InventoryService {
	return &inventoryService{
		sessionRepo:   sRepo,
		inventoryRepo: iRepo,
		notifier:      notifier,
		log:           log,
	}
}

func (s *inventoryService) GetSessionWithProducts(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	rows, err := s.inventoryRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Products = model.MergeInventory(session.Products, rows)
	return session, nil
}

func (s *inventoryService) GetSessionProducts(ctx context.Context, sessionID string) ([]model.SessionProduct, error) {
	session, err := s.GetSessionWithProducts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Products, nil
}

func (s *inventoryService) UpdateStock(ctx context.Context, sessionID string, productID uint, req *UpdateStockRequest, actor Actor) ([]model.SessionProduct, error) {
	// 1. Validate input
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if req.CurrentStock > req.InitialStock {
		return nil, ErrInvalidStock
	}

	// 2. Session must exist
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	// 3. Upsert inventory row and rewrite the snapshot in one transaction
	products, err := s.inventoryRepo.UpsertStock(ctx, sessionID, productID, req.InitialStock, req.CurrentStock, actor.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	var name string
	for _, p := range products {
		if p.ID == productID {
			name = p.Name
		}
	}

	// 4. Broadcast
	go s.notifier.BroadcastJSON(map[string]interface{}{
		"type":       "stock_update",
		"action":     "inventory_updated",
		"session_id": sessionID,
		"product": map[string]interface{}{
			"id":            productID,
			"name":          name,
			"initial_stock": req.InitialStock,
			"current_stock": req.CurrentStock,
		},
		"user":    actor.payload(),
		"message": fmt.Sprintf("%s set stock of '%s' to %d in %s", actor.Name, name, req.CurrentStock, session.Name),
	})

	s.log.Info("session stock updated",
		zap.String("session_id", sessionID),
		zap.Uint("product_id", productID),
		zap.Int("current_stock", req.CurrentStock),
		zap.String("user_id", actor.ID))

	return products, nil
}

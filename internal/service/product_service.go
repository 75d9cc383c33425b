package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/internal/storage"
	"go-pos-ws/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotAnImage = errors.New("file must be an image")

type ProductService interface {
	CreateProduct(ctx context.Context, req *model.Product, actor Actor) error
	UpdateProduct(ctx context.Context, id uint, req *model.Product, actor Actor) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uint, actor Actor) error
	GetAllProducts(ctx context.Context) ([]model.Product, error)
	GetProductByID(ctx context.Context, id uint) (*model.Product, error)
	UploadImage(ctx context.Context, id uint, filename, contentType string, body io.Reader, actor Actor) (*model.Product, error)
}

type productService struct {
	productRepo repository.ProductRepository
	store       storage.Store
	notifier    Notifier
	log         *zap.Logger
}

func NewProductService(pRepo repository.ProductRepository, store storage.Store, notifier Notifier, log *zap.Logger) ProductService {
	return &productService{
		productRepo: pRepo,
		store:       store,
		notifier:    notifier,
		log:         log,
	}
}

// assignVariationIDs gives every variation without an id a fresh one.
func assignVariationIDs(variations []model.Variation) {
	for i := range variations {
		if strings.TrimSpace(variations[i].ID) == "" {
			variations[i].ID = uuid.NewString()
		}
	}
}

func (s *productService) CreateProduct(ctx context.Context, req *model.Product, actor Actor) error {
	// 1. Validate
	if err := validator.Check(req); err != nil {
		return err
	}

	// 2. Server-assigned fields
	req.ID = 0
	assignVariationIDs(req.Variations)
	if req.Variations == nil {
		req.Variations = []model.Variation{}
	}
	req.CreatedBy = actor.ID
	req.UpdatedBy = actor.ID

	// 3. Save
	if err := s.productRepo.Create(ctx, req); err != nil {
		return err
	}

	s.notifyProduct("product_created", req, actor, fmt.Sprintf("%s created product '%s'", actor.Name, req.Name))
	return nil
}

func (s *productService) UpdateProduct(ctx context.Context, id uint, req *model.Product, actor Actor) (*model.Product, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	existing, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	assignVariationIDs(req.Variations)
	existing.Name = req.Name
	existing.Price = req.Price
	existing.Category = req.Category
	existing.Variations = req.Variations
	if existing.Variations == nil {
		existing.Variations = []model.Variation{}
	}
	if req.Image != "" {
		existing.Image = req.Image
	}
	existing.UpdatedBy = actor.ID

	if err := s.productRepo.Update(ctx, existing); err != nil {
		return nil, err
	}

	s.notifyProduct("product_updated", existing, actor, fmt.Sprintf("%s updated product '%s'", actor.Name, existing.Name))
	return existing, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id uint, actor Actor) error {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrProductNotFound
		}
		return err
	}
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return ErrProductNotFound
		}
		return err
	}

	s.notifyProduct("product_deleted", product, actor, fmt.Sprintf("%s deleted product '%s'", actor.Name, product.Name))
	return nil
}

func (s *productService) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	return s.productRepo.FindAll(ctx)
}

func (s *productService) GetProductByID(ctx context.Context, id uint) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *productService) UploadImage(ctx context.Context, id uint, filename, contentType string, body io.Reader, actor Actor) (*model.Product, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotAnImage
	}

	product, err := s.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("products/%d/%s%s", id, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
	url, err := s.store.Upload(ctx, key, contentType, body)
	if err != nil {
		return nil, err
	}

	if err := s.productRepo.UpdateImage(ctx, id, url, actor.ID); err != nil {
		return nil, err
	}
	product.Image = url
	product.UpdatedBy = actor.ID

	s.log.Info("product image uploaded", zap.Uint("product_id", id), zap.String("key", key))
	s.notifyProduct("product_updated", product, actor, fmt.Sprintf("%s changed the image of '%s'", actor.Name, product.Name))
	return product, nil
}

func (s *productService) notifyProduct(action string, p *model.Product, actor Actor, message string) {
	go s.notifier.BroadcastJSON(map[string]interface{}{
		"type":   "product_update",
		"action": action,
		"product": map[string]interface{}{
			"id":    p.ID,
			"name":  p.Name,
			"price": p.Price.StringFixed(2),
			"image": p.Image,
		},
		"user":    actor.payload(),
		"message": message,
	})
}

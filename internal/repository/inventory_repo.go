package repository

import (
	"context"
	"fmt"
	"time"

	"go-pos-ws/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRepository owns session_inventory, the single source of truth for
// stock, and keeps the session's embedded snapshot in step with it.
type InventoryRepository interface {
	FindBySession(ctx context.Context, sessionID string) ([]model.SessionInventory, error)
	// UpsertStock sets both stock values of one product and rewrites the
	// session snapshot in the same transaction.
	UpsertStock(ctx context.Context, sessionID string, productID uint, initial, current int, updatedBy string) ([]model.SessionProduct, error)
	// ApplySale decrements stock for every line, appends the sale and
	// rewrites the snapshot. Any shortfall rejects the whole sale.
	ApplySale(ctx context.Context, sessionID string, sale model.Sale) ([]model.SessionProduct, error)
}

type inventoryRepo struct {
	db *gorm.DB
}

func NewInventoryRepo(db *gorm.DB) InventoryRepository {
	return &inventoryRepo{db}
}

func (r *inventoryRepo) FindBySession(ctx context.Context, sessionID string) ([]model.SessionInventory, error) {
	var rows []model.SessionInventory
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("product_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *inventoryRepo) UpsertStock(ctx context.Context, sessionID string, productID uint, initial, current int, updatedBy string) ([]model.SessionProduct, error) {
	var merged []model.SessionProduct

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := lockSession(tx, sessionID)
		if err != nil {
			return err
		}

		// Catalog products added after the session was created join the
		// snapshot on their first stock edit.
		if !hasProduct(session.Products, productID) {
			var product model.Product
			if err := tx.First(&product, "id = ?", productID).Error; err != nil {
				return err
			}
			session.Products = append(session.Products, model.SnapshotOf(product))
		}

		row := model.SessionInventory{
			SessionID:    sessionID,
			ProductID:    productID,
			InitialStock: initial,
			CurrentStock: current,
			UpdatedAt:    time.Now(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"initial_stock", "current_stock", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}

		merged, err = rewriteSnapshot(tx, session, nil, updatedBy)
		return err
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func (r *inventoryRepo) ApplySale(ctx context.Context, sessionID string, sale model.Sale) ([]model.SessionProduct, error) {
	var merged []model.SessionProduct

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The session row lock serializes every sale of the session.
		session, err := lockSession(tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != model.SessionActive {
			return ErrSessionInactive
		}

		wanted := make(map[uint]int)
		var ids []uint
		for _, it := range sale.Items {
			if _, ok := wanted[it.ProductID]; !ok {
				ids = append(ids, it.ProductID)
			}
			wanted[it.ProductID] += it.Quantity
		}

		var rows []model.SessionInventory
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ? AND product_id IN ?", sessionID, ids).
			Order("product_id ASC").
			Find(&rows).Error; err != nil {
			return err
		}
		stock := make(map[uint]int, len(rows))
		for _, row := range rows {
			stock[row.ProductID] = row.CurrentStock
		}

		for _, id := range ids {
			if stock[id] < wanted[id] {
				return fmt.Errorf("%w: product %d has %d, sale needs %d", ErrInsufficientStock, id, stock[id], wanted[id])
			}
		}

		for _, id := range ids {
			if err := tx.Model(&model.SessionInventory{}).
				Where("session_id = ? AND product_id = ?", sessionID, id).
				Updates(map[string]interface{}{
					"current_stock": gorm.Expr("current_stock - ?", wanted[id]),
					"updated_at":    time.Now(),
				}).Error; err != nil {
				return err
			}
		}

		merged, err = rewriteSnapshot(tx, session, &sale, sale.Cashier)
		return err
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func lockSession(tx *gorm.DB, id string) (*model.Session, error) {
	var session model.Session
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// rewriteSnapshot re-reads inventory inside tx, derives the snapshot stock
// from it and saves products (and an appended sale, when given).
func rewriteSnapshot(tx *gorm.DB, session *model.Session, sale *model.Sale, updatedBy string) ([]model.SessionProduct, error) {
	var rows []model.SessionInventory
	if err := tx.Where("session_id = ?", session.ID).Find(&rows).Error; err != nil {
		return nil, err
	}
	session.Products = model.MergeInventory(session.Products, rows)

	columns := []string{"products", "updated_by"}
	if sale != nil {
		session.Sales = append(session.Sales, *sale)
		columns = append(columns, "sales")
	}
	session.UpdatedBy = updatedBy

	if err := tx.Model(session).Select(columns).Updates(session).Error; err != nil {
		return nil, err
	}
	return session.Products, nil
}

func hasProduct(products []model.SessionProduct, id uint) bool {
	for _, p := range products {
		if p.ID == id {
			return true
		}
	}
	return false
}

package repository

import (
	"context"

	"go-pos-ws/internal/model"

	"gorm.io/gorm"
)

type SessionRepository interface {
	// Create inserts the session together with its initial inventory rows.
	Create(ctx context.Context, session *model.Session, inventory []model.SessionInventory) error
	Update(ctx context.Context, session *model.Session) error
	SetStatus(ctx context.Context, id string, status model.SessionStatus, updatedBy string) error
	// Delete removes the session and its inventory rows.
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindAll(ctx context.Context) ([]model.Session, error)
	FindByStatus(ctx context.Context, status model.SessionStatus) ([]model.Session, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.Session, inventory []model.SessionInventory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		if len(inventory) == 0 {
			return nil
		}
		return tx.CreateInBatches(inventory, 200).Error
	})
}

// Update writes the editable header fields only; products and sales are
// owned by the inventory repository.
func (r *sessionRepo) Update(ctx context.Context, session *model.Session) error {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", session.ID).
		Select("name", "date", "location", "staff", "updated_by").
		Updates(session)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *sessionRepo) SetStatus(ctx context.Context, id string, status model.SessionStatus, updatedBy string) error {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_by": updatedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&model.SessionInventory{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Session{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) FindAll(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).Order("date DESC, created_at DESC").Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepo) FindByStatus(ctx context.Context, status model.SessionStatus) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("date DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepo) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

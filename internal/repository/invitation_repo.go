package repository

import (
	"context"

	"go-pos-ws/internal/model"

	"gorm.io/gorm"
)

type InvitationRepository interface {
	Create(ctx context.Context, inv *model.PendingInvitation) error
	FindByEmail(ctx context.Context, email string) (*model.PendingInvitation, error)
	FindAll(ctx context.Context) ([]model.PendingInvitation, error)
	Delete(ctx context.Context, email string) error
}

type invitationRepo struct {
	db *gorm.DB
}

func NewInvitationRepo(db *gorm.DB) InvitationRepository {
	return &invitationRepo{db}
}

func (r *invitationRepo) Create(ctx context.Context, inv *model.PendingInvitation) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *invitationRepo) FindByEmail(ctx context.Context, email string) (*model.PendingInvitation, error) {
	var inv model.PendingInvitation
	if err := r.db.WithContext(ctx).First(&inv, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepo) FindAll(ctx context.Context) ([]model.PendingInvitation, error) {
	var invs []model.PendingInvitation
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&invs).Error
	return invs, err
}

func (r *invitationRepo) Delete(ctx context.Context, email string) error {
	res := r.db.WithContext(ctx).Delete(&model.PendingInvitation{}, "email = ?", email)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

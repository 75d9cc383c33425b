package repository

import (
	"context"

	"go-pos-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProfileRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.Profile, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	FindAll(ctx context.Context) ([]model.Profile, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, profile *model.Profile) error
	Update(ctx context.Context, profile *model.Profile) error
	Delete(ctx context.Context, id uuid.UUID, deletedBy string) error
	UpdatePrivileges(ctx context.Context, id uuid.UUID, privileges []model.Privilege) error
	UpdateTokenVersion(ctx context.Context, id uuid.UUID, version string) error
	UpdateLastSeen(ctx context.Context, id uuid.UUID) error
}

type profileRepo struct {
	db *gorm.DB
}

func NewProfileRepo(db *gorm.DB) ProfileRepository {
	return &profileRepo{db}
}

func (r *profileRepo) FindByEmail(ctx context.Context, email string) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).Preload("Role").Preload("Privileges").
		Where("email = ?", email).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).Preload("Role").Preload("Privileges").
		First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepo) FindAll(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	if err := r.db.WithContext(ctx).Preload("Role").Preload("Privileges").
		Order("full_name ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Profile{}).Count(&n).Error
	return n, err
}

func (r *profileRepo) Create(ctx context.Context, profile *model.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepo) Update(ctx context.Context, profile *model.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

// Delete is a soft delete that records who removed the member.
func (r *profileRepo) Delete(ctx context.Context, id uuid.UUID, deletedBy string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Profile{}).Where("id = ?", id).Update("deleted_by", deletedBy)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Delete(&model.Profile{}, "id = ?", id).Error
	})
}

func (r *profileRepo) UpdatePrivileges(ctx context.Context, id uuid.UUID, privileges []model.Privilege) error {
	var profile model.Profile
	db := r.db.WithContext(ctx)
	if err := db.First(&profile, "id = ?", id).Error; err != nil {
		return err
	}
	return db.Model(&profile).Association("Privileges").Replace(privileges)
}

func (r *profileRepo) UpdateTokenVersion(ctx context.Context, id uuid.UUID, version string) error {
	return r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Update("token_version", version).Error
}

func (r *profileRepo) UpdateLastSeen(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Update("last_seen_at", gorm.Expr("NOW()")).Error
}

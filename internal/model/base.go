package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit holds the standard audit trail columns shared by every table.
type Audit struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Audit User Tracking
	CreatedBy string `json:"created_by"`
	UpdatedBy string `json:"updated_by"`
}

// BaseModel handles ID (UUID), audit trail and soft delete
type BaseModel struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Audit
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"` // Soft Delete support
	DeletedBy string         `json:"deleted_by"`
}

// Hook Before Create untuk generate UUID otomatis
func (base *BaseModel) BeforeCreate(tx *gorm.DB) (err error) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	return
}

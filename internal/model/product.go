package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Variation is a priced sub-option of a product (e.g. size). When selected
// its price replaces the base price.
type Variation struct {
	ID    string          `json:"id"`
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price" validate:"decimal_gte0"`
}

type Product struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Name       string          `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price" validate:"decimal_gte0"`
	Category   string          `gorm:"type:varchar(100);index" json:"category"`
	Image      string          `gorm:"type:text" json:"image"`
	Variations []Variation     `gorm:"serializer:json;type:jsonb" json:"variations" validate:"dive"`
	Audit
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

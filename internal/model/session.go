package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Valid reports whether s is one of the two known statuses.
func (s SessionStatus) Valid() bool {
	return s == SessionActive || s == SessionCompleted
}

// SessionProduct is the session-scoped snapshot of a catalog product. The
// stock fields are derived from session_inventory on every read.
type SessionProduct struct {
	ID           uint            `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	Image        string          `json:"image"`
	Variations   []Variation     `json:"variations"`
	InitialStock int             `json:"initial_stock"`
	CurrentStock int             `json:"current_stock"`
}

// FindVariation returns the variation with the given id, if any.
func (p *SessionProduct) FindVariation(id string) (*Variation, bool) {
	for i := range p.Variations {
		if p.Variations[i].ID == id {
			return &p.Variations[i], true
		}
	}
	return nil, false
}

// SnapshotOf copies the catalog fields of a product into a session snapshot
// entry with zero stock.
func SnapshotOf(p Product) SessionProduct {
	return SessionProduct{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Category:   p.Category,
		Image:      p.Image,
		Variations: p.Variations,
	}
}

// Session is a scoped selling event (one market day, one pop-up) with its own
// product snapshot and sales log.
type Session struct {
	ID       string           `gorm:"type:varchar(40);primaryKey" json:"id"`
	Name     string           `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Date     time.Time        `gorm:"type:date;not null;index" json:"date"`
	Location string           `gorm:"type:varchar(255)" json:"location"`
	Staff    []string         `gorm:"serializer:json;type:jsonb" json:"staff"`
	Status   SessionStatus    `gorm:"type:varchar(20);not null;default:active;index" json:"status"`
	Products []SessionProduct `gorm:"serializer:json;type:jsonb" json:"products"`
	Sales    []Sale           `gorm:"serializer:json;type:jsonb" json:"sales"`
	Audit
}

// TableName specifies the table name for GORM
func (Session) TableName() string {
	return "sessions"
}

// SessionResponse for API responses
type SessionResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Date      string           `json:"date"`
	Location  string           `json:"location"`
	Staff     []string         `json:"staff"`
	Status    SessionStatus    `json:"status"`
	Products  []SessionProduct `json:"products"`
	SaleCount int              `json:"sale_count"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ToResponse converts Session to SessionResponse
func (s *Session) ToResponse() SessionResponse {
	staff := s.Staff
	if staff == nil {
		staff = []string{}
	}
	return SessionResponse{
		ID:        s.ID,
		Name:      s.Name,
		Date:      s.Date.Format("2006-01-02"),
		Location:  s.Location,
		Staff:     staff,
		Status:    s.Status,
		Products:  s.Products,
		SaleCount: len(s.Sales),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// SessionInventory is the authoritative stock of one product inside one
// session.
type SessionInventory struct {
	SessionID    string    `gorm:"type:varchar(40);primaryKey" json:"session_id"`
	ProductID    uint      `gorm:"primaryKey;autoIncrement:false" json:"product_id"`
	InitialStock int       `gorm:"not null;default:0" json:"initial_stock"`
	CurrentStock int       `gorm:"not null;default:0" json:"current_stock"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (SessionInventory) TableName() string {
	return "session_inventory"
}

// MergeInventory overlays inventory stock onto a snapshot. Snapshot entries
// without an inventory row get zero stock.
func MergeInventory(products []SessionProduct, rows []SessionInventory) []SessionProduct {
	byProduct := make(map[uint]SessionInventory, len(rows))
	for _, r := range rows {
		byProduct[r.ProductID] = r
	}

	merged := make([]SessionProduct, len(products))
	for i, p := range products {
		p.InitialStock, p.CurrentStock = 0, 0
		if inv, ok := byProduct[p.ID]; ok {
			p.InitialStock = inv.InitialStock
			p.CurrentStock = inv.CurrentStock
		}
		merged[i] = p
	}
	return merged
}

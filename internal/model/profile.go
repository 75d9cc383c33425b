package model

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Profile is an authenticated member of the shop (admin or cashier).
type Profile struct {
	BaseModel
	Email        string      `gorm:"type:varchar(255);uniqueIndex;not null" json:"email" validate:"required,email"`
	Password     string      `gorm:"type:varchar(255);not null" json:"-"` // Hidden from JSON
	FullName     string      `gorm:"type:varchar(255)" json:"full_name" validate:"required"`
	RoleID       *uint       `gorm:"index" json:"role_id"`
	Role         *Role       `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	IsActive     bool        `gorm:"default:true" json:"is_active"`
	Privileges   []Privilege `gorm:"many2many:profile_privileges;" json:"privileges,omitempty"`
	TokenVersion string      `gorm:"type:varchar(255);default:''" json:"-"` // Rotated on sign-in and sign-out
	LastSeenAt   *time.Time  `json:"last_seen_at,omitempty"`
}

func (Profile) TableName() string {
	return "profiles"
}

// SetPassword hashes and sets the profile's password
func (p *Profile) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.Password = string(hashedPassword)
	return nil
}

// CheckPassword verifies if the provided password matches the stored hash
func (p *Profile) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(p.Password), []byte(password)) == nil
}

// HasPrivilege checks if the profile has a specific privilege
func (p *Profile) HasPrivilege(code string) bool {
	for _, pr := range p.Privileges {
		if pr.Code == code {
			return true
		}
	}
	return false
}

// GetPrivilegeCodes returns a slice of all privilege codes for this profile
func (p *Profile) GetPrivilegeCodes() []string {
	codes := make([]string, len(p.Privileges))
	for i, pr := range p.Privileges {
		codes[i] = pr.Code
	}
	return codes
}

// RoleCode returns the code of the assigned role or "" when none.
func (p *Profile) RoleCode() string {
	if p.Role == nil {
		return ""
	}
	return p.Role.Code
}

// ProfileResponse is used for API responses (without sensitive data)
type ProfileResponse struct {
	ID         uuid.UUID   `json:"id"`
	Email      string      `json:"email"`
	FullName   string      `json:"full_name"`
	RoleID     *uint       `json:"role_id,omitempty"`
	Role       *Role       `json:"role,omitempty"`
	IsActive   bool        `json:"is_active"`
	LastSeenAt *time.Time  `json:"last_seen_at,omitempty"`
	Privileges []Privilege `json:"privileges"`
}

// ToResponse converts Profile to ProfileResponse
func (p *Profile) ToResponse() ProfileResponse {
	privileges := p.Privileges
	if privileges == nil {
		privileges = []Privilege{}
	}
	return ProfileResponse{
		ID:         p.ID,
		Email:      p.Email,
		FullName:   p.FullName,
		RoleID:     p.RoleID,
		Role:       p.Role,
		IsActive:   p.IsActive,
		LastSeenAt: p.LastSeenAt,
		Privileges: privileges,
	}
}

// PendingInvitation allows an email address to sign up with a given role.
type PendingInvitation struct {
	Email     string    `gorm:"type:varchar(255);primaryKey" json:"email" validate:"required,email"`
	RoleCode  string    `gorm:"type:varchar(50);not null" json:"role_code" validate:"required,oneof=ADMIN CASHIER"`
	InvitedBy string    `gorm:"type:varchar(255)" json:"invited_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (PendingInvitation) TableName() string {
	return "pending_invitations"
}

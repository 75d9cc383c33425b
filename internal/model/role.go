package model

// Role represents member roles in the system
type Role struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Code        string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // ADMIN, CASHIER
	Name        string      `gorm:"type:varchar(100)" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Privileges  []Privilege `gorm:"many2many:role_privileges;" json:"privileges,omitempty"`
}

// Role codes as constants
const (
	RoleAdmin   = "ADMIN"
	RoleCashier = "CASHIER"
)

// DefaultRoles defines the default roles in the system
var DefaultRoles = []Role{
	{
		Code:        RoleAdmin,
		Name:        "Administrator",
		Description: "Manages products, sessions and members",
	},
	{
		Code:        RoleCashier,
		Name:        "Cashier",
		Description: "Runs checkout on active sessions",
	},
}

// CashierPrivileges lists the privilege codes granted to CASHIER on seed.
var CashierPrivileges = []string{
	PrivProductView,
	PrivSessionView,
	PrivCheckoutCreate,
	PrivDashboardView,
}

package model

// Privilege represents a permission that can be assigned to profiles
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "product:create"
	Name string `gorm:"type:varchar(100)" json:"name"`                     // e.g., "Create Product"
}

const (
	PrivMemberView      = "member:view"
	PrivMemberUpdate    = "member:update"
	PrivMemberDelete    = "member:delete"
	PrivMemberInvite    = "member:invite"
	PrivProductView     = "product:view"
	PrivProductCreate   = "product:create"
	PrivProductUpdate   = "product:update"
	PrivProductDelete   = "product:delete"
	PrivSessionView     = "session:view"
	PrivSessionCreate   = "session:create"
	PrivSessionUpdate   = "session:update"
	PrivSessionDelete   = "session:delete"
	PrivInventoryUpdate = "inventory:update"
	PrivCheckoutCreate  = "checkout:create"
	PrivDashboardView   = "dashboard:view"
)

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// Member management
	{Code: PrivMemberView, Name: "View Member"},
	{Code: PrivMemberUpdate, Name: "Update Member"},
	{Code: PrivMemberDelete, Name: "Delete Member"},
	{Code: PrivMemberInvite, Name: "Invite Member"},
	// Product management
	{Code: PrivProductView, Name: "View Product"},
	{Code: PrivProductCreate, Name: "Create Product"},
	{Code: PrivProductUpdate, Name: "Update Product"},
	{Code: PrivProductDelete, Name: "Delete Product"},
	// Session management
	{Code: PrivSessionView, Name: "View Session"},
	{Code: PrivSessionCreate, Name: "Create Session"},
	{Code: PrivSessionUpdate, Name: "Update Session"},
	{Code: PrivSessionDelete, Name: "Delete Session"},
	{Code: PrivInventoryUpdate, Name: "Update Session Stock"},
	// Checkout
	{Code: PrivCheckoutCreate, Name: "Create Sale"},
	// Dashboard
	{Code: PrivDashboardView, Name: "View Dashboard"},
}

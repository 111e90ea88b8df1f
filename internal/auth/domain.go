package auth

import "time"

// Role enumerates the access levels recognised across the application.
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleManager        Role = "MANAGER"
	RoleRoaster        Role = "ROASTER"
	RoleCashier        Role = "CASHIER"
	RoleWarehouseStaff Role = "WAREHOUSE_STAFF"
)

// User represents an authenticated user account.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

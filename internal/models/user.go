package models

import (
	"strings"
	"time"
)

// Role is the access level of a user account.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "cliente"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClient
}

// User represents an account of the store. Email is the login identifier.
type User struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email       string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Nombre      string    `json:"nombre" gorm:"type:varchar(45);not null"`
	Apellido    string    `json:"apellido" gorm:"type:varchar(50);not null"`
	Roles       Role      `json:"roles" gorm:"type:varchar(10);not null"`
	Password    string    `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialized
	IsActive    bool      `json:"is_active" gorm:"not null"`
	IsStaff     bool      `json:"is_staff" gorm:"not null"`
	IsSuperuser bool      `json:"is_superuser" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time `json:"-"`
}

// TableName keeps the table name stable across drivers.
func (User) TableName() string {
	return "usuario"
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Roles == RoleAdmin
}

// FullName returns "nombre apellido".
func (u *User) FullName() string {
	return strings.TrimSpace(u.Nombre + " " + u.Apellido)
}

// NormalizeEmail trims and lower-cases an address so lookups and the unique
// index are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

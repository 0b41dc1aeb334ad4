package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles recognised by the API. Admins and managers review; outlets submit.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleOutlet  = "outlet"
)

// User is an account that can sign in. Outlet users are bound to one outlet.
type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Email        string     `json:"email" gorm:"uniqueIndex"`
	Name         string     `json:"name"`
	Role         string     `json:"role" gorm:"default:'outlet'"`
	PasswordHash string     `json:"-"` // Never serialize password hash
	OutletID     *uint      `json:"outlet_id,omitempty" gorm:"index"`
	Enabled      bool       `json:"enabled" gorm:"default:true"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SetPassword hashes and sets the user's password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares the provided password with the stored hash.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// IsReviewer is true for roles allowed to approve or reject submissions.
func (u *User) IsReviewer() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}

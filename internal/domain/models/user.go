package models

import "time"

// User is an account that can own forms and act as an approver.
// Approver identities in workflow steps refer to the user's email.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	IsAdmin      bool       `json:"is_admin"`
	IsActive     bool       `json:"is_active"`
	CreatedDate  time.Time  `json:"created_date"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

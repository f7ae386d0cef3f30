package models

import (
	"time"
)

type User struct {
	ID             int       `json:"id" db:"id"`
	LastName       string    `json:"lastName" db:"last_name"`
	FirstName      string    `json:"firstName" db:"first_name"`
	Email          string    `json:"email" db:"email"`
	PasswordHash   string    `json:"-" db:"password_hash"`
	Role           string    `json:"role" db:"role"`
	OrganizationID int       `json:"organizationId" db:"organization_id"`
	Active         bool      `json:"isActive" db:"is_active"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

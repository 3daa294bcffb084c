package accounts

import "time"

// Organization is a tenant. Every other record in the system belongs to one.
type Organization struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	Name      string    `json:"name" bson:"name" db:"name"`
	Email     string    `json:"email" bson:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// User is an operator account that can sign in. Email is unique across all
// organizations because login happens before any tenant is known.
type User struct {
	ID             string     `json:"id" bson:"_id" db:"id"`
	OrganizationID string     `json:"organization_id" bson:"organization_id" db:"organization_id"`
	Name           string     `json:"name" bson:"name" db:"name"`
	Email          string     `json:"email" bson:"email" db:"email"`
	PasswordHash   string     `json:"-" bson:"password_hash" db:"password_hash"`
	Role           string     `json:"role" bson:"role" db:"role"`
	IsActive       bool       `json:"is_active" bson:"is_active" db:"is_active"`
	LastLogin      *time.Time `json:"last_login,omitempty" bson:"last_login,omitempty" db:"last_login"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

type RegisterRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organization_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned by Register and Login.
type Session struct {
	Token        string       `json:"token"`
	User         User         `json:"user"`
	Organization Organization `json:"organization"`
}

const minPasswordLen = 6

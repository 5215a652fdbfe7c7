package users

import (
	"errors"
	"time"
)

// User represents a staff account.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credentials pairs an account with its password hash for authentication.
type Credentials struct {
	User
	PasswordHash string
}

// CreateInput describes a new staff account.
type CreateInput struct {
	Username string
	Name     string
	Password string
	Role     string
}

// UpdateInput describes mutable account fields. Empty Password leaves the
// current hash untouched.
type UpdateInput struct {
	Name     string
	Role     string
	Password string
	IsActive bool
}

// Sentinel errors surfaced by the users module.
var (
	ErrValidation    = errors.New("users: validation failed")
	ErrNotFound      = errors.New("users: user not found")
	ErrUsernameTaken = errors.New("users: username already taken")
)

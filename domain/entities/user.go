package entities

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents an account that can call the gateway
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	Email        string    `json:"email" bson:"email"`
	FullName     string    `json:"full_name,omitempty" bson:"full_name,omitempty"`
	Bio          string    `json:"bio,omitempty" bson:"bio,omitempty"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	IsActive     bool      `json:"is_active" bson:"is_active"`
	IsSuperuser  bool      `json:"is_superuser" bson:"is_superuser"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// NewUser creates an active user with a fresh ID
func NewUser(username, email, fullName, passwordHash string) *User {
	now := time.Now()
	return &User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(username),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Touch bumps the update timestamp
func (u *User) Touch() {
	u.UpdatedAt = time.Now()
}

// Validate validates the user data
func (u *User) Validate() error {
	if len(u.Username) < 3 || len(u.Username) > 50 {
		return errors.New("username must be between 3 and 50 characters")
	}

	if _, err := mail.ParseAddress(u.Email); err != nil {
		return errors.New("email is invalid")
	}

	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}

	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// UserID is the internal identifier of a msghub user
type UserID string

// NewUserID returns a random UserID
func NewUserID() UserID {
	return UserID(uuid.New().String())
}

func (id UserID) String() string {
	return string(id)
}

// User is the identity anchor that owns credentials and messages
type User struct {
	ID        UserID
	Email     string
	Name      string
	CreatedAt time.Time
}

// NewUser creates a user on first successful sign-in
func NewUser(email, name string) *User {
	return &User{
		ID:        NewUserID(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks required fields
func (u *User) Validate() error {
	if u.ID == "" {
		return goerr.New("user ID is required")
	}
	if u.Email == "" {
		return goerr.New("user email is required", goerr.V("user_id", u.ID))
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's login address (unique).
	Email string

	// DisplayName is shown to other group members.
	DisplayName string

	// PasswordHash is the bcrypt hash. It is stored apart from the public
	// profile and never leaves the server.
	PasswordHash string

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last profile change.
	UpdatedAt int64
}

// NewUser creates a user with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Notification is an unread/read message for one recipient.
type Notification struct {
	ID           string `json:"-"`
	RecipientUID string `json:"recipientUid"`
	Message      string `json:"message"`
	GroupID      string `json:"groupId,omitempty"`
	Read         bool   `json:"read"`
	CreatedAt    int64  `json:"createdAt"`
}

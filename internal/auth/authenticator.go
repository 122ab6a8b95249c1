// Package auth provides account registration, password login, JWT session
// tokens and the client-side sign-in state other components follow.
package auth

import (
	"context"

	"github.com/mmynk/workaholic/internal/models"
)

// Authenticator owns accounts and their credentials. The AuthService only
// talks to this interface, so the credential scheme can change without
// touching the handlers.
type Authenticator interface {
	// Register creates an account and returns its public profile.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the user whose email and credential match.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ChangeCredential replaces the credential of userID after verifying the current one.
	ChangeCredential(ctx context.Context, userID, current, next string) error

	// UpdateDisplayName sets the name other group members see.
	UpdateDisplayName(ctx context.Context, userID, displayName string) (*models.User, error)

	// User returns the profile of userID.
	User(ctx context.Context, userID string) (*models.User, error)

	ValidateCredential(credential string) error
}

// Ensure PasswordAuthenticator implements Authenticator
var _ Authenticator = (*PasswordAuthenticator)(nil)

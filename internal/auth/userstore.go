package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/workaholic/internal/models"
	"github.com/mmynk/workaholic/internal/storage"
)

// Collections used by DocUserStorage. Names starting with "_" are never
// served over the document RPC surface.
const (
	UsersCollection       = "users"
	CredentialsCollection = "_credentials"
	EmailsCollection      = "_emails"
)

// Ensure DocUserStorage implements UserStorage
var _ UserStorage = (*DocUserStorage)(nil)

// DocUserStorage keeps users in a document store. The public profile lives in
// "users", the password hash in "_credentials", and "_emails" maps each email
// to its user ID so duplicate registrations fail atomically.
type DocUserStorage struct {
	store storage.Store
}

// NewDocUserStorage creates user storage on top of store.
func NewDocUserStorage(store storage.Store) *DocUserStorage {
	return &DocUserStorage{store: store}
}

// CreateUser stores the profile, the credential and the email index entry.
func (s *DocUserStorage) CreateUser(ctx context.Context, user *models.User) error {
	err := s.store.Create(ctx, EmailsCollection, &storage.Document{
		ID:     user.Email,
		Fields: storage.Fields{"uid": user.ID},
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("failed to reserve email: %w", err)
	}

	if err := s.store.Create(ctx, CredentialsCollection, &storage.Document{
		ID:     user.ID,
		Fields: storage.Fields{"passwordHash": user.PasswordHash},
	}); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	if err := s.store.Create(ctx, UsersCollection, &storage.Document{
		ID:     user.ID,
		Fields: profileFields(user),
	}); err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}
	return nil
}

// GetUserByEmail looks a user up through the email index.
func (s *DocUserStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	doc, err := s.store.Get(ctx, EmailsCollection, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query email: %w", err)
	}
	uid, _ := doc.Fields["uid"].(string)
	return s.GetUserByID(ctx, uid)
}

// GetUserByID returns the profile and password hash of a user.
func (s *DocUserStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, ErrUserNotFound
	}
	profile, err := s.store.Get(ctx, UsersCollection, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	cred, err := s.store.Get(ctx, CredentialsCollection, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	user := &models.User{ID: id}
	user.Email, _ = profile.Fields["email"].(string)
	user.DisplayName, _ = profile.Fields["displayName"].(string)
	user.CreatedAt = int64From(profile.Fields["createdAt"])
	user.UpdatedAt = int64From(profile.Fields["updatedAt"])
	if cred != nil {
		user.PasswordHash, _ = cred.Fields["passwordHash"].(string)
	}
	return user, nil
}

// UpdateProfile writes the public profile fields.
func (s *DocUserStorage) UpdateProfile(ctx context.Context, user *models.User) error {
	err := s.store.Update(ctx, UsersCollection, user.ID, profileFields(user))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// UpdatePasswordHash replaces the stored credential.
func (s *DocUserStorage) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	err := s.store.Update(ctx, CredentialsCollection, userID, storage.Fields{"passwordHash": hash})
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func profileFields(user *models.User) storage.Fields {
	return storage.Fields{
		"email":       user.Email,
		"displayName": user.DisplayName,
		"createdAt":   user.CreatedAt,
		"updatedAt":   user.UpdatedAt,
	}
}

func int64From(v any) int64 {
	f, _ := v.(float64)
	return int64(f)
}

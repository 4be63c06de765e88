package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sqlinsight/internal/core"
	"sqlinsight/internal/logger"
)

var (
	ErrInvalidApiKey      = errors.New("invalid api key")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// apiKeyBytes of randomness give a 64 character hex key.
const apiKeyBytes = 32

// AuthService owns users and the API keys that identify them over HTTP.
type AuthService struct {
	users core.UserRepository
	keys  core.ApiKeyRepository
}

func NewAuthService(users core.UserRepository, keys core.ApiKeyRepository) *AuthService {
	return &AuthService{users: users, keys: keys}
}

// CreateUser registers a user and mints their first API key. The plain key is
// returned once and never stored.
func (s *AuthService) CreateUser(ctx context.Context, username, password string) (*core.User, string, error) {
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, "", fmt.Errorf("user %q: %w", username, core.ErrConflict)
	case !errors.Is(err, core.ErrNotFound):
		return nil, "", err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, "", err
	}
	user, err := s.users.Create(ctx, username, hash)
	if err != nil {
		return nil, "", err
	}

	key, _, err := s.GenerateApiKey(ctx, user.ID, "created with user")
	if err != nil {
		return nil, "", err
	}
	logger.Info.Printf("User %q created", username)
	return user, key, nil
}

// Authenticate checks a username and password against an active account.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*core.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GenerateApiKey mints a key for the user and returns the plain text alongside
// the stored record.
func (s *AuthService) GenerateApiKey(ctx context.Context, userID int64, description string) (string, *core.ApiKey, error) {
	raw := make([]byte, apiKeyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, err
	}
	plain := hex.EncodeToString(raw)

	key := &core.ApiKey{
		UserID:      userID,
		KeyPrefix:   plain[:8],
		KeyHash:     hashKey(plain),
		Description: description,
		CreatedAt:   time.Now().UTC(),
		IsActive:    true,
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return "", nil, err
	}
	return plain, key, nil
}

func (s *AuthService) ListApiKeys(ctx context.Context, userID int64) ([]core.ApiKey, error) {
	return s.keys.ListByUser(ctx, userID)
}

func (s *AuthService) RevokeApiKey(ctx context.Context, userID, id int64) error {
	if err := s.keys.Revoke(ctx, userID, id); err != nil {
		return fmt.Errorf("api key %d: %w", id, err)
	}
	return nil
}

// VerifyApiKey resolves a plain key to its active record.
func (s *AuthService) VerifyApiKey(ctx context.Context, plain string) (*core.ApiKey, error) {
	key, err := s.keys.GetActiveByHash(ctx, hashKey(plain))
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrInvalidApiKey
	}
	if err != nil {
		return nil, err
	}
	if err := s.keys.Touch(ctx, key.ID); err != nil {
		logger.Warn.Printf("Could not record use of api key %d: %v", key.ID, err)
	}
	return key, nil
}

func (s *AuthService) UserByName(ctx context.Context, username string) (*core.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	return user, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, username, password string) error {
	user, err := s.UserByName(ctx, username)
	if err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hash)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

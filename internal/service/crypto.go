package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// SecretKind labels what a sealed value holds. It is bound into the ciphertext
// as additional data, so a sealed password cannot be opened as a connection string.
type SecretKind string

const (
	SecretConnectionString SecretKind = "database.connection_string"
	SecretPassword         SecretKind = "database.password"
)

var errSealedTooShort = errors.New("sealed value too short")

// EncryptionService seals stored database secrets with AES-256-GCM.
type EncryptionService struct {
	aead cipher.AEAD
}

// NewEncryptionService uses the first 32 bytes of key as the AES-256 key.
func NewEncryptionService(key string) (*EncryptionService, error) {
	if len(key) < 32 {
		return nil, errors.New("encryption key must be at least 32 characters")
	}
	block, err := aes.NewCipher([]byte(key[:32]))
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &EncryptionService{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext) for plaintext of the given kind.
func (s *EncryptionService) Seal(kind SecretKind, plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(kind))
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *EncryptionService) Open(kind SecretKind, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", kind, err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", fmt.Errorf("open %s: %w", kind, errSealedTooShort)
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], []byte(kind))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", kind, err)
	}
	return string(plain), nil
}

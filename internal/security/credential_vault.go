package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrInvalidKeyLength  = errors.New("encryption key must be 32 bytes for AES-256")
)

// CredentialVault encrypts endpoint passwords before they are stored.
type CredentialVault struct {
	masterKey []byte
}

// NewCredentialVault creates a vault. The master key must be 32 bytes
// for AES-256-GCM.
func NewCredentialVault(masterKey []byte) (*CredentialVault, error) {
	if len(masterKey) != 32 {
		return nil, ErrInvalidKeyLength
	}
	return &CredentialVault{masterKey: masterKey}, nil
}

// EncryptCredentials encrypts the plaintext with AES-256-GCM and
// returns base64(nonce || ciphertext).
func (cv *CredentialVault) EncryptCredentials(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(cv.masterKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptCredentials reverses EncryptCredentials.
func (cv *CredentialVault) DecryptCredentials(ciphertextB64 string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	block, err := aes.NewCipher(cv.masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// EncryptString is a convenience wrapper for password fields.
func (cv *CredentialVault) EncryptString(plaintext string) (string, error) {
	return cv.EncryptCredentials([]byte(plaintext))
}

// DecryptString is a convenience wrapper for password fields.
func (cv *CredentialVault) DecryptString(ciphertextB64 string) (string, error) {
	plaintext, err := cv.DecryptCredentials(ciphertextB64)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const masterKeySize = 32

// encryptionInfo binds derived encryption keys to their purpose.
var encryptionInfo = []byte("token-node/private-key-encryption/v1")

// KeyCipher encrypts private keys before they are written to a key store
type KeyCipher interface {
	Encrypt(privateKey []byte) (string, error)
	Decrypt(encrypted string) ([]byte, error)
}

type masterKeyCipher struct {
	aead cipher.AEAD
}

// NewMasterKeyCipher returns an AES-256-GCM KeyCipher keyed by an HKDF expansion of masterKey.
func NewMasterKeyCipher(masterKey []byte) (KeyCipher, error) {
	if len(masterKey) != masterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes (AES-256)", masterKeySize)
	}

	derived := make([]byte, masterKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, encryptionInfo), derived); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &masterKeyCipher{aead: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext || tag)
func (c *masterKeyCipher) Encrypt(privateKey []byte) (string, error) {
	if len(privateKey) != privateKeySize {
		return "", fmt.Errorf("private key must be %d bytes (secp256k1)", privateKeySize)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, privateKey, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt
func (c *masterKeyCipher) Decrypt(encrypted string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	if len(plaintext) != privateKeySize {
		return nil, fmt.Errorf("decrypted key has wrong size: got %d, want %d", len(plaintext), privateKeySize)
	}
	return plaintext, nil
}

// GenerateMasterKey generates a new random 32-byte master key
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, masterKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return key, nil
}

// MasterKeyFromBase64 decodes a base64-encoded master key
func MasterKeyFromBase64(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}
	if len(key) != masterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", masterKeySize, len(key))
	}
	return key, nil
}

// MasterKeyToBase64 encodes a master key as base64 for storage
func MasterKeyToBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

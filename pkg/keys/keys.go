// Package keys provides secp256k1 key generation, signing and encrypted key storage
// for well-known node identities and the fresh keys minted for anonymous identities.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	privateKeySize = 32
	signatureSize  = 64
)

// ErrInvalidPrivateKey is returned when key material is not a valid secp256k1 scalar
var ErrInvalidPrivateKey = errors.New("invalid private key")

// KeyPair is a secp256k1 signing keypair
type KeyPair struct {
	PublicKey  []byte // 33-byte compressed secp256k1 public key
	PrivateKey []byte // 32-byte secp256k1 private key
}

// GenerateKeyPair generates a new random secp256k1 keypair
func GenerateKeyPair() (*KeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 keypair: %w", err)
	}
	return &KeyPair{
		PublicKey:  crypto.CompressPubkey(&privateKey.PublicKey),
		PrivateKey: crypto.FromECDSA(privateKey),
	}, nil
}

// KeyPairFromPrivateKey rebuilds a keypair from raw private key bytes
func KeyPairFromPrivateKey(privateKey []byte) (*KeyPair, error) {
	if len(privateKey) != privateKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPrivateKey, privateKeySize, len(privateKey))
	}
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	return &KeyPair{
		PublicKey:  crypto.CompressPubkey(&key.PublicKey),
		PrivateKey: append([]byte(nil), privateKey...),
	}, nil
}

// KeyPairFromHex rebuilds a keypair from a hex private key, with or without 0x prefix
func KeyPairFromHex(s string) (*KeyPair, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	return KeyPairFromPrivateKey(raw)
}

// PublicKeyHex returns the public key as a hex string
func (kp *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.PublicKey)
}

// Fingerprint returns the hex sha256 of the compressed public key
func (kp *KeyPair) Fingerprint() string {
	return Fingerprint(kp.PublicKey)
}

// Sign hashes message with SHA-256 and signs it. The signature is R || S (64 bytes).
func (kp *KeyPair) Sign(message []byte) ([]byte, error) {
	hash := sha256.Sum256(message)
	return kp.SignHash(hash[:])
}

// SignHash signs a pre-hashed 32-byte digest
func (kp *KeyPair) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes")
	}
	privateKey, err := crypto.ToECDSA(kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key: %w", err)
	}
	signature, err := crypto.Sign(hash, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	// Drop the recovery id.
	return signature[:signatureSize], nil
}

// Verify checks a Sign signature over message against a compressed public key
func Verify(publicKey, message, signature []byte) bool {
	hash := sha256.Sum256(message)
	return VerifyHash(publicKey, hash[:], signature)
}

// VerifyHash checks a SignHash signature over a 32-byte digest
func VerifyHash(publicKey, hash, signature []byte) bool {
	if len(signature) != signatureSize || len(hash) != 32 || len(publicKey) == 0 {
		return false
	}
	return crypto.VerifySignature(publicKey, hash, signature)
}

// Fingerprint computes the hex sha256 fingerprint of a compressed public key
func Fingerprint(publicKey []byte) string {
	hash := sha256.Sum256(publicKey)
	return hex.EncodeToString(hash[:])
}

// ValidatePublicKey reports whether b is a valid compressed secp256k1 public key
func ValidatePublicKey(b []byte) error {
	if _, err := crypto.DecompressPubkey(b); err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	return nil
}

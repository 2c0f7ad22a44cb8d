package keys

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrKeyNotFound is returned when no private key is held for a public key
var ErrKeyNotFound = errors.New("key not found")

// Key purposes recorded alongside stored keys.
const (
	PurposeAnonymousIdentity = "anonymous_identity"
	PurposeNotary            = "notary"
)

// StoredKey is an encrypted private key at rest
type StoredKey struct {
	PublicKey           []byte
	EncryptedPrivateKey string
	Purpose             string
	CreatedAt           time.Time
}

// KeyStore persists encrypted private keys
type KeyStore interface {
	SaveKey(ctx context.Context, key *StoredKey) error
	GetKey(ctx context.Context, publicKey []byte) (*StoredKey, error)
	// FindByPurpose returns the oldest key stored for purpose
	FindByPurpose(ctx context.Context, purpose string) (*StoredKey, error)
}

// Wallet holds the node's well-known identity key and mints fresh keys
// for anonymous identities. Minted keys are stored encrypted.
type Wallet struct {
	identity *KeyPair
	store    KeyStore
	cipher   KeyCipher

	mu    sync.RWMutex
	cache map[string]*KeyPair
}

// NewWallet creates a wallet around the node identity key
func NewWallet(identity *KeyPair, store KeyStore, cipher KeyCipher) *Wallet {
	return &Wallet{
		identity: identity,
		store:    store,
		cipher:   cipher,
		cache:    make(map[string]*KeyPair),
	}
}

// Identity returns the well-known identity keypair
func (w *Wallet) Identity() *KeyPair {
	return w.identity
}

// FreshKey generates, encrypts and stores a new keypair. Keys are never reused.
func (w *Wallet) FreshKey(ctx context.Context, purpose string) (*KeyPair, error) {
	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	encrypted, err := w.cipher.Encrypt(kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt key: %w", err)
	}

	if err := w.store.SaveKey(ctx, &StoredKey{
		PublicKey:           kp.PublicKey,
		EncryptedPrivateKey: encrypted,
		Purpose:             purpose,
		CreatedAt:           time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("failed to store key: %w", err)
	}

	w.mu.Lock()
	w.cache[hex.EncodeToString(kp.PublicKey)] = kp
	w.mu.Unlock()

	return kp, nil
}

// PurposeKey returns the key kept for purpose, minting and storing one the first
// time. Unlike FreshKey it hands out the same key across restarts.
func (w *Wallet) PurposeKey(ctx context.Context, purpose string) (*KeyPair, error) {
	stored, err := w.store.FindByPurpose(ctx, purpose)
	if errors.Is(err, ErrKeyNotFound) {
		return w.FreshKey(ctx, purpose)
	}
	if err != nil {
		return nil, err
	}
	return w.Signer(ctx, stored.PublicKey)
}

// Signer returns the keypair for publicKey, loading it from the store if needed.
func (w *Wallet) Signer(ctx context.Context, publicKey []byte) (*KeyPair, error) {
	if bytes.Equal(publicKey, w.identity.PublicKey) {
		return w.identity, nil
	}

	id := hex.EncodeToString(publicKey)
	w.mu.RLock()
	kp, ok := w.cache[id]
	w.mu.RUnlock()
	if ok {
		return kp, nil
	}

	stored, err := w.store.GetKey(ctx, publicKey)
	if err != nil {
		return nil, err
	}
	raw, err := w.cipher.Decrypt(stored.EncryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}
	kp, err = KeyPairFromPrivateKey(raw)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(kp.PublicKey, publicKey) {
		return nil, fmt.Errorf("stored key does not match public key %s", id)
	}

	w.mu.Lock()
	w.cache[id] = kp
	w.mu.Unlock()
	return kp, nil
}

// Owns reports whether the wallet can sign for publicKey
func (w *Wallet) Owns(ctx context.Context, publicKey []byte) (bool, error) {
	_, err := w.Signer(ctx, publicKey)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryKeyStore implements KeyStore in memory (for tests and single-process networks)
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]StoredKey
}

// NewMemoryKeyStore creates a new in-memory key store
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]StoredKey)}
}

// SaveKey stores key, rejecting duplicates
func (s *MemoryKeyStore) SaveKey(_ context.Context, key *StoredKey) error {
	id := hex.EncodeToString(key.PublicKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[id]; ok {
		return fmt.Errorf("key %s already stored", id)
	}
	s.keys[id] = *key
	return nil
}

// GetKey returns the stored key for publicKey
func (s *MemoryKeyStore) GetKey(_ context.Context, publicKey []byte) (*StoredKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[hex.EncodeToString(publicKey)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return &key, nil
}

// FindByPurpose returns the oldest key stored for purpose
func (s *MemoryKeyStore) FindByPurpose(_ context.Context, purpose string) (*StoredKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *StoredKey
	for _, key := range s.keys {
		if key.Purpose != purpose {
			continue
		}
		if found == nil || key.CreatedAt.Before(found.CreatedAt) {
			k := key
			found = &k
		}
	}
	if found == nil {
		return nil, ErrKeyNotFound
	}
	return found, nil
}

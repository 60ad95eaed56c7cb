package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// KeyPrefix starts every generated API key
const KeyPrefix = "fc_"

var (
	ErrInvalidAPIKey  = errors.New("invalid API key")
	ErrAPIKeyRevoked  = errors.New("API key has been revoked")
	ErrAPIKeyExpired  = errors.New("API key has expired")
	ErrAPIKeyNotFound = errors.New("API key not found")
)

// APIKey represents an API key. Key is only filled in on the value
// Generate returns; the manager keeps a digest.
type APIKey struct {
	Key       string     `json:"key,omitempty"`
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"` // Friendly name for the key
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Revoked   bool       `json:"revoked"`
}

// APIKeyManager manages API keys
type APIKeyManager struct {
	keys map[string]*APIKey // digest -> APIKey
	mu   sync.RWMutex
}

// NewAPIKeyManager creates a new API key manager
func NewAPIKeyManager() *APIKeyManager {
	return &APIKeyManager{
		keys: make(map[string]*APIKey),
	}
}

func digest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Generate creates a new random API key
func (m *APIKeyManager) Generate(userID, name string, expiresAt *time.Time) (*APIKey, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	return m.Register(KeyPrefix+base64.RawURLEncoding.EncodeToString(keyBytes), userID, name, expiresAt)
}

// Register adds a key chosen by the operator, e.g. one loaded from
// configuration
func (m *APIKeyManager) Register(key, userID, name string, expiresAt *time.Time) (*APIKey, error) {
	if key == "" || userID == "" {
		return nil, fmt.Errorf("API key and user are required")
	}

	d := digest(key)
	stored := &APIKey{
		ID:        d[:12],
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.keys[d]; exists {
		return nil, fmt.Errorf("API key already registered")
	}
	m.keys[d] = stored

	out := *stored
	out.Key = key
	return &out, nil
}

// Verify checks if an API key is valid
func (m *APIKeyManager) Verify(key string) (*APIKey, error) {
	m.mu.RLock()
	apiKey, exists := m.keys[digest(key)]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrInvalidAPIKey
	}

	if apiKey.Revoked {
		return nil, ErrAPIKeyRevoked
	}

	if apiKey.ExpiresAt != nil && time.Now().After(*apiKey.ExpiresAt) {
		return nil, ErrAPIKeyExpired
	}

	out := *apiKey
	return &out, nil
}

// Revoke marks an API key as revoked
func (m *APIKeyManager) Revoke(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	apiKey, exists := m.keys[digest(key)]
	if !exists {
		return ErrAPIKeyNotFound
	}

	apiKey.Revoked = true
	return nil
}

// Delete removes an API key
func (m *APIKeyManager) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := digest(key)
	if _, exists := m.keys[d]; !exists {
		return ErrAPIKeyNotFound
	}

	delete(m.keys, d)
	return nil
}

// List returns all API keys for a user, without their secret
func (m *APIKeyManager) List(userID string) []*APIKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []*APIKey
	for _, apiKey := range m.keys {
		if apiKey.UserID == userID {
			k := *apiKey
			keys = append(keys, &k)
		}
	}

	return keys
}

// Count returns the total number of active keys
func (m *APIKeyManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, apiKey := range m.keys {
		if !apiKey.Revoked {
			count++
		}
	}

	return count
}

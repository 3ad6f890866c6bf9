// Package encryption provides at-rest encryption for node and edge payloads
// stored by pkg/storage, including the raw vector embeddings inside them.
//
// It implements AES-256-GCM authenticated encryption with versioned keys so
// a key can be rotated without invalidating data encrypted under an older
// version: every ciphertext carries its key version as a 4-byte header, and
// decryption looks that version up in the KeyManager rather than assuming
// the current key.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// versionHeaderSize is the width of the key-version header prepended to
// every ciphertext produced by encrypt.
const versionHeaderSize = 4

var (
	ErrInvalidKey       = errors.New("encryption: invalid key length (must be 32 bytes)")
	ErrInvalidData      = errors.New("encryption: invalid encrypted data")
	ErrDecryptionFailed = errors.New("encryption: decryption failed (authentication error)")
	ErrNoKey            = errors.New("encryption: no encryption key available")
	ErrKeyNotFound      = errors.New("encryption: key version not found")
	ErrKeyExpired       = errors.New("encryption: key has expired")
)

// Key is a single versioned AES-256 key.
type Key struct {
	ID        uint32
	Material  []byte
	CreatedAt time.Time
	ExpiresAt time.Time // zero means never
	Active    bool
}

// IsExpired reports whether the key has passed its expiration time.
func (k *Key) IsExpired() bool {
	if k.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(k.ExpiresAt)
}

// Validate checks that the key's material is the right length and it
// hasn't expired.
func (k *Key) Validate() error {
	if len(k.Material) != 32 {
		return ErrInvalidKey
	}
	if k.IsExpired() {
		return ErrKeyExpired
	}
	return nil
}

// Config holds encryption configuration for a BadgerEngine or MemoryEngine.
type Config struct {
	Enabled       bool
	KeyDerivation KeyDerivationConfig
	Rotation      KeyRotationConfig
}

// KeyDerivationConfig configures deriving a key from an operator-supplied
// password, used by NewEncryptorWithPassword.
type KeyDerivationConfig struct {
	Salt       []byte
	Iterations int // default 600000, OWASP 2023 recommendation for PBKDF2-HMAC-SHA256
}

// KeyRotationConfig configures automatic key rotation in KeyManager.
type KeyRotationConfig struct {
	Enabled     bool
	Interval    time.Duration
	RetainCount int // old keys kept around so data under them stays decryptable
}

// DefaultConfig returns a secure default: encryption on, PBKDF2 at the
// OWASP-recommended iteration count, and quarterly key rotation retaining
// the last five keys.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		KeyDerivation: KeyDerivationConfig{
			Iterations: 600000,
		},
		Rotation: KeyRotationConfig{
			Enabled:     true,
			Interval:    90 * 24 * time.Hour,
			RetainCount: 5,
		},
	}
}

// KeyManager holds the set of keys an Encryptor may decrypt under, plus the
// one currently used for new encryptions.
type KeyManager struct {
	mu      sync.RWMutex
	keys    map[uint32]*Key
	current uint32
	config  Config
}

// NewKeyManager creates an empty key manager. Callers add at least one key
// with AddKey, or call RotateKey to generate one, before encrypting.
func NewKeyManager(config Config) *KeyManager {
	return &KeyManager{
		keys:   make(map[uint32]*Key),
		config: config,
	}
}

// AddKey registers a key, making it current if it's marked Active.
func (km *KeyManager) AddKey(key *Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	km.keys[key.ID] = key
	if key.Active {
		km.current = key.ID
	}
	return nil
}

// GetKey retrieves a key by version, used when decrypting data written
// under an older key than the current one.
func (km *KeyManager) GetKey(version uint32) (*Key, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	key, ok := km.keys[version]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// CurrentKey returns the key used for new encryptions.
func (km *KeyManager) CurrentKey() (*Key, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if km.current == 0 {
		return nil, ErrNoKey
	}

	key, ok := km.keys[km.current]
	if !ok {
		return nil, ErrNoKey
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

// RotateKey generates a new key and makes it current, deactivating the
// previous one. Older keys stay around (up to Rotation.RetainCount) so
// data encrypted under them can still be decrypted.
func (km *KeyManager) RotateKey() (*Key, error) {
	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("encryption: failed to generate key: %w", err)
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if current, ok := km.keys[km.current]; ok {
		current.Active = false
	}

	newID := km.current + 1
	key := &Key{
		ID:        newID,
		Material:  material,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}

	if km.config.Rotation.Enabled && km.config.Rotation.Interval > 0 {
		key.ExpiresAt = key.CreatedAt.Add(km.config.Rotation.Interval * 2)
	}

	km.keys[newID] = key
	km.current = newID

	km.cleanupOldKeys()

	return key, nil
}

// cleanupOldKeys drops keys beyond the configured retention count.
func (km *KeyManager) cleanupOldKeys() {
	if !km.config.Rotation.Enabled || km.config.Rotation.RetainCount <= 0 {
		return
	}

	keep := km.config.Rotation.RetainCount + 1
	if len(km.keys) <= keep {
		return
	}

	minVersion := km.current
	for version := range km.keys {
		if version < minVersion {
			minVersion = version
		}
	}

	for len(km.keys) > keep {
		delete(km.keys, minVersion)
		minVersion++
	}
}

// KeyCount returns the number of keys currently retained.
func (km *KeyManager) KeyCount() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.keys)
}

// Encryptor wraps a KeyManager with the encode/decode operations
// pkg/storage calls on every node and edge payload before it hits disk.
// When disabled it's a pass-through so encryption can be toggled per
// engine without branching in the storage layer.
type Encryptor struct {
	km      *KeyManager
	enabled bool
}

// NewEncryptor wraps an existing KeyManager.
func NewEncryptor(km *KeyManager, enabled bool) *Encryptor {
	return &Encryptor{
		km:      km,
		enabled: enabled,
	}
}

// NewEncryptorWithPassword derives a key from an operator-supplied password
// via PBKDF2 and wraps it in a fresh KeyManager as key version 1. Intended
// for single-operator deployments where running an external key management
// service would be overkill.
func NewEncryptorWithPassword(password string, config Config) (*Encryptor, error) {
	if !config.Enabled {
		return &Encryptor{enabled: false}, nil
	}

	salt := config.KeyDerivation.Salt
	if len(salt) == 0 {
		salt = []byte("helixdb-default-salt-change-me")
	}

	iterations := config.KeyDerivation.Iterations
	if iterations <= 0 {
		iterations = 600000
	}

	material := pbkdf2.Key([]byte(password), salt, iterations, 32, sha256.New)

	km := NewKeyManager(config)
	key := &Key{
		ID:        1,
		Material:  material,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}
	if err := km.AddKey(key); err != nil {
		return nil, err
	}

	return &Encryptor{
		km:      km,
		enabled: true,
	}, nil
}

// Encrypt encrypts plaintext with AES-256-GCM under the current key and
// returns base64-encoded ciphertext with a key-version header. When the
// encryptor is disabled, plaintext passes through base64-encoded only, so
// callers always get a string back regardless of config.
func (e *Encryptor) Encrypt(plaintext []byte) (string, error) {
	if !e.enabled {
		return base64.StdEncoding.EncodeToString(plaintext), nil
	}

	key, err := e.km.CurrentKey()
	if err != nil {
		return "", err
	}

	ciphertext, err := encrypt(plaintext, key)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt, looking up whichever key version the
// ciphertext's header names rather than assuming the current one, so data
// written before a RotateKey call still decrypts.
func (e *Encryptor) Decrypt(ciphertext string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrInvalidData
	}

	if !e.enabled {
		return data, nil
	}

	if len(data) < versionHeaderSize {
		return nil, ErrInvalidData
	}

	version := binary.BigEndian.Uint32(data[:versionHeaderSize])

	key, err := e.km.GetKey(version)
	if err != nil {
		return nil, err
	}

	return decrypt(data[versionHeaderSize:], key)
}

// EncryptString is Encrypt for a string payload, used for node/edge JSON.
func (e *Encryptor) EncryptString(plaintext string) (string, error) {
	return e.Encrypt([]byte(plaintext))
}

// DecryptString is Decrypt for a string payload.
func (e *Encryptor) DecryptString(ciphertext string) (string, error) {
	data, err := e.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsEnabled reports whether this encryptor actually encrypts, or just
// passes data through. pkg/storage checks this before paying for the
// base64 round-trip on reads of unencrypted data.
func (e *Encryptor) IsEnabled() bool {
	return e.enabled
}

// KeyManager returns the underlying key manager, e.g. for triggering
// RotateKey from an administrative path.
func (e *Encryptor) KeyManager() *KeyManager {
	return e.km
}

// encrypt performs AES-256-GCM encryption, prepending the key's version
// and a random nonce ahead of the ciphertext.
func encrypt(plaintext []byte, key *Key) ([]byte, error) {
	block, err := aes.NewCipher(key.Material)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	// Format: [4 bytes version][nonce][ciphertext]
	result := make([]byte, versionHeaderSize+len(nonce)+len(ciphertext))
	binary.BigEndian.PutUint32(result[:versionHeaderSize], key.ID)
	copy(result[versionHeaderSize:], nonce)
	copy(result[versionHeaderSize+len(nonce):], ciphertext)

	return result, nil
}

// decrypt performs AES-256-GCM decryption on data with its version header
// already stripped by the caller.
func decrypt(data []byte, key *Key) ([]byte, error) {
	block, err := aes.NewCipher(key.Material)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrInvalidData
	}

	nonce := data[:nonceSize]
	ciphertext := data[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// DeriveKey derives a 32-byte AES-256 key from a password and salt using
// PBKDF2-HMAC-SHA256. An iterations value of 0 uses the OWASP 2023
// recommendation of 600,000.
func DeriveKey(password, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = 600000
	}
	return pbkdf2.Key(password, salt, iterations, 32, sha256.New)
}

// GenerateKey generates a random 32-byte AES-256 key using crypto/rand.
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateSalt generates a random 32-byte salt for use with DeriveKey or
// NewEncryptorWithPassword. Should be generated once per installation and
// stored alongside the encrypted data; it doesn't need to be kept secret.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// HashKey returns a short, non-reversible fingerprint of key material
// suitable for logging which key was used without exposing it.
func HashKey(key []byte) string {
	hash := sha256.Sum256(key)
	return hex.EncodeToString(hash[:16])
}

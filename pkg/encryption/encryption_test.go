package encryption

import (
	"testing"
	"time"
)

func newTestEncryptor(t *testing.T) *Encryptor {
	t.Helper()
	km := NewKeyManager(DefaultConfig())
	if _, err := km.RotateKey(); err != nil {
		t.Fatalf("RotateKey: %v", err)
	}
	return NewEncryptor(km, true)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e := newTestEncryptor(t)

	plaintext := `{"id":"node-1","labels":["Document"],"embedding":[0.1,0.2,0.3]}`
	ciphertext, err := e.EncryptString(plaintext)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("ciphertext should not equal plaintext")
	}

	got, err := e.DecryptString(ciphertext)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if got != plaintext {
		t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestEncryptorDisabledPassesThrough(t *testing.T) {
	e := NewEncryptor(NewKeyManager(DefaultConfig()), false)

	plaintext := "unencrypted payload"
	encoded, err := e.EncryptString(plaintext)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}

	got, err := e.DecryptString(encoded)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if got != plaintext {
		t.Fatalf("disabled encryptor should round-trip unchanged: got %q", got)
	}
	if e.IsEnabled() {
		t.Fatal("expected IsEnabled to be false")
	}
}

func TestDecryptAfterKeyRotationUsesOriginalVersion(t *testing.T) {
	km := NewKeyManager(DefaultConfig())
	if _, err := km.RotateKey(); err != nil {
		t.Fatalf("RotateKey: %v", err)
	}
	e := NewEncryptor(km, true)

	ciphertext, err := e.EncryptString("payload under key v1")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}

	if _, err := km.RotateKey(); err != nil {
		t.Fatalf("second RotateKey: %v", err)
	}

	got, err := e.DecryptString(ciphertext)
	if err != nil {
		t.Fatalf("DecryptString after rotation: %v", err)
	}
	if got != "payload under key v1" {
		t.Fatalf("got %q", got)
	}
}

func TestDecryptRejectsCorruptedCiphertext(t *testing.T) {
	e := newTestEncryptor(t)

	ciphertext, err := e.EncryptString("some payload")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}

	corrupted := ciphertext[:len(ciphertext)-4] + "abcd"
	if _, err := e.DecryptString(corrupted); err == nil {
		t.Fatal("expected decryption of corrupted ciphertext to fail")
	}
}

func TestDecryptUnknownKeyVersion(t *testing.T) {
	e := newTestEncryptor(t)

	ciphertext, err := e.EncryptString("some payload")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}

	other := NewEncryptor(NewKeyManager(DefaultConfig()), true)
	if _, err := other.DecryptString(ciphertext); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKeyManagerRetainsKeysWithinRetentionCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rotation.RetainCount = 2
	km := NewKeyManager(cfg)

	for i := 0; i < 5; i++ {
		if _, err := km.RotateKey(); err != nil {
			t.Fatalf("RotateKey %d: %v", i, err)
		}
	}

	if got, want := km.KeyCount(), cfg.Rotation.RetainCount+1; got != want {
		t.Fatalf("KeyCount = %d, want %d", got, want)
	}
}

func TestKeyValidateRejectsWrongLength(t *testing.T) {
	key := &Key{ID: 1, Material: []byte("too-short"), Active: true}
	if err := key.Validate(); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestKeyValidateRejectsExpired(t *testing.T) {
	material, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	key := &Key{
		ID:        1,
		Material:  material,
		ExpiresAt: time.Now().Add(-time.Hour),
		Active:    true,
	}
	if err := key.Validate(); err != ErrKeyExpired {
		t.Fatalf("expected ErrKeyExpired, got %v", err)
	}
}

func TestNewEncryptorWithPasswordRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}

	cfg := DefaultConfig()
	cfg.KeyDerivation.Salt = salt
	cfg.KeyDerivation.Iterations = 1000 // keep the test fast

	e, err := NewEncryptorWithPassword("correct horse battery staple", cfg)
	if err != nil {
		t.Fatalf("NewEncryptorWithPassword: %v", err)
	}

	ciphertext, err := e.EncryptString("vector payload")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	got, err := e.DecryptString(ciphertext)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if got != "vector payload" {
		t.Fatalf("got %q", got)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("fixed-salt-for-test-purposes-xx")
	k1 := DeriveKey([]byte("password"), salt, 1000)
	k2 := DeriveKey([]byte("password"), salt, 1000)
	if string(k1) != string(k2) {
		t.Fatal("DeriveKey should be deterministic for the same inputs")
	}
	if len(k1) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(k1))
	}
}

func TestHashKeyIsStableAndNonReversing(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	h1 := HashKey(key)
	h2 := HashKey(key)
	if h1 != h2 {
		t.Fatal("HashKey should be deterministic for the same key")
	}
	if h1 == string(key) {
		t.Fatal("HashKey must not return the raw key material")
	}
}

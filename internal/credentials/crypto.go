package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the required length of the process-wide encryption key in bytes.
const KeySize = 32

// ErrNotConfigured is returned when a tenant has no stored App Store
// Connect credentials. It is distinct from a decryption failure.
var ErrNotConfigured = errors.New("credentials: not configured")

// KeyFromHex parses the hex-encoded 256-bit encryption key supplied via
// configuration. A missing or wrongly sized key is a startup error.
func KeyFromHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("KeyFromHex: encryption key is not set")
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("KeyFromHex: decoding key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("KeyFromHex: key is %d bytes, want %d", len(key), KeySize)
	}
	return key, nil
}

// EncryptedField is a single AES-256-GCM encrypted value stored as
// "hex(iv):hex(ciphertext):hex(tag)". Each field carries its own IV and
// authentication tag so fields can be decrypted independently.
type EncryptedField string

// Encrypt seals plaintext under key and returns the stored representation.
// Used at tenant onboarding and in tests; the sync pipeline only decrypts.
func Encrypt(key []byte, plaintext string) (EncryptedField, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("Encrypt: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("Encrypt: creating GCM: %w", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("Encrypt: generating IV: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	tagStart := len(sealed) - gcm.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return EncryptedField(fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext),
		hex.EncodeToString(tag),
	)), nil
}

// Decrypt opens the field with the process-wide key. Any corruption of
// the IV, ciphertext or tag fails authentication and returns an error.
func (f EncryptedField) Decrypt(key []byte) (string, error) {
	parts := strings.Split(string(f), ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("Decrypt: malformed field, %d segments, want 3", len(parts))
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("Decrypt: decoding IV: %w", err)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("Decrypt: decoding ciphertext: %w", err)
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("Decrypt: decoding tag: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("Decrypt: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("Decrypt: creating GCM: %w", err)
	}
	if len(iv) != gcm.NonceSize() {
		return "", fmt.Errorf("Decrypt: IV is %d bytes, want %d", len(iv), gcm.NonceSize())
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("Decrypt: opening ciphertext: %w", err)
	}

	return string(plaintext), nil
}

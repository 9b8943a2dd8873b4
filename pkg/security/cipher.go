package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Cipher seals cart and order-summary snapshots before they enter the shared
// cache. AES-GCM with a random per-call nonce; the key is process-wide
// configuration.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from the configured secret. The secret is either
// a hex-encoded key or the raw key bytes; the decoded key must be a valid AES
// length (16, 24 or 32 bytes).
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("cipher secret is required")
	}

	key := []byte(secret)
	if decoded, err := hex.DecodeString(secret); err == nil {
		key = decoded
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a payload produced by Encrypt.
func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return nil, errors.New("payload too short")
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("opening payload: %w", err)
	}
	return plaintext, nil
}

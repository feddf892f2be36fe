package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	keyBytes   = 32
	nonceBytes = 12
	tagBytes   = 16
)

// ErrCryptoAuth is returned when decryption fails authentication: a tampered
// ciphertext, iv, or tag, or the wrong key.
var ErrCryptoAuth = errors.New("CRYPTO_AUTH: ciphertext authentication failed")

// Vault encrypts refresh tokens with AES-256-GCM. Ciphertext, nonce (iv) and
// auth tag are stored as separate base64 columns.
type Vault struct {
	aead cipher.AEAD
}

// NewVault builds a vault from a 64-hex-character key (32 bytes).
func NewVault(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != keyBytes {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keyBytes, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random 12-byte nonce and returns
// (ciphertext, iv, tag), each base64 encoded.
func (v *Vault) Encrypt(plaintext string) (ct, iv, tag string, err error) {
	nonce := make([]byte, nonceBytes)
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", "", err
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	body := sealed[:len(sealed)-tagBytes]
	authTag := sealed[len(sealed)-tagBytes:]

	enc := base64.StdEncoding
	return enc.EncodeToString(body), enc.EncodeToString(nonce), enc.EncodeToString(authTag), nil
}

// Decrypt opens (ct, iv, tag); ErrCryptoAuth on any authentication failure.
func (v *Vault) Decrypt(ct, iv, tag string) (string, error) {
	enc := base64.StdEncoding
	body, err := enc.DecodeString(ct)
	if err != nil {
		return "", ErrCryptoAuth
	}
	nonce, err := enc.DecodeString(iv)
	if err != nil || len(nonce) != nonceBytes {
		return "", ErrCryptoAuth
	}
	authTag, err := enc.DecodeString(tag)
	if err != nil || len(authTag) != tagBytes {
		return "", ErrCryptoAuth
	}

	plaintext, err := v.aead.Open(nil, nonce, append(body, authTag...), nil)
	if err != nil {
		return "", ErrCryptoAuth
	}
	return string(plaintext), nil
}

// Package vault protects exchange API credentials at rest using
// authenticated symmetric encryption (AES-256-GCM).
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const nonceSize = 12 // 96 bits, the GCM standard nonce size

var ErrInvalidMasterKey = errors.New("master key must be 32 bytes of base64-encoded data")

// CryptoError wraps any encryption or decryption failure. Callers must treat
// it as fatal for the operation using the credential: a credential that fails
// authentication must never be used to sign exchange requests.
type CryptoError struct {
	Op  string // "encrypt" or "decrypt"
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("vault: %s failed: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// Vault encrypts and decrypts credential strings with a 256-bit master key
// provided out-of-band. The key is never generated or persisted here.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault from a base64-encoded 256-bit master key.
func New(masterKeyB64 string) (*Vault, error) {
	key, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMasterKey, err)
	}
	if len(key) != 32 {
		return nil, ErrInvalidMasterKey
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

// Encrypt seals the plaintext under a fresh random 96-bit nonce. The nonce is
// prepended to the ciphertext and the whole blob is base64-encoded, so two
// encryptions of the same plaintext never produce the same output.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &CryptoError{Op: "encrypt", Err: err}
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. It fails with a CryptoError when
// the input is not valid base64, is too short to hold a nonce, or does not
// authenticate (tampering, corruption, or a wrong master key).
func (v *Vault) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: fmt.Errorf("invalid base64: %w", err)}
	}
	if len(raw) < nonceSize {
		return "", &CryptoError{Op: "decrypt", Err: errors.New("ciphertext shorter than nonce")}
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: err}
	}

	return string(plaintext), nil
}

// Package cryptobox provides authenticated symmetric encryption for tenant
// credentials at rest (§4.2). AES-256-GCM via the standard library: no pack
// repo reaches for a third-party AEAD, and golang.org/x/crypto (already an
// indirect dependency via bcrypt) does not offer a GCM implementation the
// stdlib lacks, so this stays on crypto/aes + crypto/cipher.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	ivSize  = 12 // 96-bit IV
	tagSize = 16 // 128-bit authentication tag
	keySize = 32 // 256-bit key
)

// ErrInvalidCiphertext is the single opaque error returned for every
// malformed-input or failed-verification case, so callers can never
// distinguish "tampered" from "malformed" (§4.2).
var ErrInvalidCiphertext = errors.New("cryptobox: invalid ciphertext")

// Box performs authenticated encryption with a single process-wide key.
type Box struct {
	key []byte
}

// New constructs a Box from a 32-byte key. The key is fetched once by the
// caller (typically from config.Config.EncryptionKey) on first use.
func New(key []byte) (*Box, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("cryptobox: key must be %d bytes, got %d", keySize, len(key))
	}
	return &Box{key: key}, nil
}

// Encrypt returns the wire format "iv.tag.ciphertext", each field base64-std
// encoded, separated by a single '.'.
func (b *Box) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", fmt.Errorf("cryptobox: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, tagSize)
	if err != nil {
		return "", fmt.Errorf("cryptobox: new gcm: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("cryptobox: generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}, "."), nil
}

// Decrypt parses the "iv.tag.ciphertext" wire format and verifies the tag.
// Any malformed field count, wrong IV/tag length, or failed verification
// returns ErrInvalidCiphertext — never a more specific error.
func (b *Box) Decrypt(wire string) ([]byte, error) {
	parts := strings.Split(wire, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidCiphertext
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return nil, ErrInvalidCiphertext
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return nil, ErrInvalidCiphertext
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	gcm, err := cipher.NewGCMWithTagSize(block, tagSize)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	sealed := append(ciphertext, tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return plaintext, nil
}

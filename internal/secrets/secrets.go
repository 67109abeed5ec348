// Package secrets seals customer-supplied credentials at rest.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealedPrefix = "sbx:"
	keySize      = 32
	nonceSize    = 24
)

// ErrInvalidKey indicates a malformed sealing key.
var ErrInvalidKey = errors.New("secrets: key must be 32 bytes (hex or base64)")

// Box seals and opens short secrets. A Box without a key passes values through unchanged.
type Box struct {
	key *[keySize]byte
}

// NewBox parses a hex or base64 encoded 32-byte key. An empty key yields a pass-through Box.
func NewBox(encodedKey string) (*Box, error) {
	encodedKey = strings.TrimSpace(encodedKey)
	if encodedKey == "" {
		return &Box{}, nil
	}
	raw, errDecode := decodeKey(encodedKey)
	if errDecode != nil {
		return nil, errDecode
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &Box{key: &key}, nil
}

func decodeKey(encoded string) ([]byte, error) {
	if raw, errHex := hex.DecodeString(encoded); errHex == nil && len(raw) == keySize {
		return raw, nil
	}
	if raw, errB64 := base64.StdEncoding.DecodeString(encoded); errB64 == nil && len(raw) == keySize {
		return raw, nil
	}
	return nil, ErrInvalidKey
}

// Enabled reports whether values are actually sealed.
func (b *Box) Enabled() bool {
	return b != nil && b.key != nil
}

// Seal encrypts plaintext. Empty input stays empty.
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" || !b.Enabled() {
		return plaintext, nil
	}
	var nonce [nonceSize]byte
	if _, errRead := io.ReadFull(rand.Reader, nonce[:]); errRead != nil {
		return "", fmt.Errorf("secrets: read nonce: %w", errRead)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, b.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix are returned as-is.
func (b *Box) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if !b.Enabled() {
		return "", fmt.Errorf("secrets: sealed value but no key configured")
	}
	raw, errDecode := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if errDecode != nil {
		return "", fmt.Errorf("secrets: decode: %w", errDecode)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("secrets: sealed value too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	opened, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, b.key)
	if !ok {
		return "", fmt.Errorf("secrets: authentication failed")
	}
	return string(opened), nil
}

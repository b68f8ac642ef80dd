// Package tee implements the simulated Trusted Execution Environment
// decorator: a transparent encrypt/decrypt wrapper around Get/Set that
// composes around a cache engine without altering its semantics. Per the
// documented non-goal, this is a simulation of confidential-compute value
// protection, not a cryptographically hardened attestation path -- it
// exists so the Instance Router has a concrete TEE variant to resolve to.
package tee

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/edgecache/edgecache/domain/engine"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
	"golang.org/x/crypto/sha3"
)

// Decorator wraps a CacheEngine, AES-GCM sealing values before Set and
// opening them after Get. The engine underneath is unmodified and unaware
// of the wrapping -- it still sees and size-accounts for the sealed
// ciphertext bytes, since the decorator is positioned above the engine
// boundary, not inside it.
type Decorator struct {
	inner Inner
	aead  cipher.AEAD
}

// Inner is the narrow surface the decorator wraps; satisfied directly by
// *engine.Engine.
type Inner interface {
	Get(namespace, key string) (string, bool, error)
	Set(namespace, key, value string, opts engine.SetOptions) (bool, error)
}

// NewDecorator derives a symmetric key from keyMaterial via SHA3-256 and
// constructs an AES-GCM decorator around inner. keyMaterial stands in for
// whatever attestation-bound key a real TEE provider would hand back.
func NewDecorator(inner Inner, keyMaterial string) (*Decorator, error) {
	key := sha3.Sum256([]byte(keyMaterial))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, apperrors.EncryptionFailed(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.EncryptionFailed(err)
	}
	return &Decorator{inner: inner, aead: aead}, nil
}

// Get decrypts the sealed value returned by the inner engine. A miss
// passes through unchanged.
func (d *Decorator) Get(namespace, key string) (string, bool, error) {
	sealed, found, err := d.inner.Get(namespace, key)
	if err != nil || !found {
		return "", found, err
	}
	plain, err := d.open(sealed)
	if err != nil {
		return "", false, apperrors.DecryptionFailed(err)
	}
	return plain, true, nil
}

// Set seals value before handing it to the inner engine. The inner engine
// sees only ciphertext and accounts memory against the sealed size, which
// is larger than the plaintext by the nonce and authentication tag.
func (d *Decorator) Set(namespace, key, value string, opts engine.SetOptions) (bool, error) {
	sealed, err := d.seal(value)
	if err != nil {
		return false, apperrors.EncryptionFailed(err)
	}
	return d.inner.Set(namespace, key, sealed, opts)
}

func (d *Decorator) seal(plaintext string) (string, error) {
	nonce := make([]byte, d.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ciphertext := d.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (d *Decorator) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	nonceSize := d.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("sealed value shorter than nonce")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plain, err := d.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

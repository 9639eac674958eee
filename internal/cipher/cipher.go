// Package cipher implements the credential envelope: a global key that
// protects each user's salt, and per-user keys derived from that salt that
// protect git tokens. All ciphertexts are AES-256-GCM, nonce-prefixed and
// base64url encoded.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/ericfisherdev/gitvault/internal/apperror"
)

const (
	// PBKDF2Iterations and KeyLength are part of the stored-data contract:
	// changing either makes every existing ciphertext undecryptable.
	PBKDF2Iterations = 100_000
	KeyLength        = 32
	SaltLength       = 32

	globalKeyInfo = "gitvault/global"
)

// ErrSecretNotSet is returned by New when the global secret is empty.
var ErrSecretNotSet = errors.New("global secret not configured: set GITVAULT_SECRET_KEY")

var keyEncoding = base64.URLEncoding

// DeriveKey runs PBKDF2-HMAC-SHA256 over secret and salt and returns the
// 32-byte key base64url encoded. It is pure: equal inputs give equal keys.
func DeriveKey(secret, salt []byte) string {
	key := deriveKeyBytes(secret, salt)
	defer clear(key)
	return keyEncoding.EncodeToString(key)
}

func deriveKeyBytes(secret, salt []byte) []byte {
	return pbkdf2.Key(secret, salt, PBKDF2Iterations, KeyLength, sha256.New)
}

// Encrypt seals plaintext with a base64url key as produced by DeriveKey.
func Encrypt(plaintext, key string) (string, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return "", err
	}
	defer clear(raw)
	return seal(raw, []byte(plaintext))
}

// Decrypt opens a ciphertext produced by Encrypt with the same key.
// Tampered input or a different key yields an apperror.ErrDecryption.
func Decrypt(ciphertext, key string) (string, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return "", err
	}
	defer clear(raw)

	plaintext, err := open(raw, ciphertext)
	if err != nil {
		return "", err
	}
	defer clear(plaintext)
	return string(plaintext), nil
}

// Cipher holds the global secret. It is built once at startup and shared by
// every service that needs to encrypt or decrypt; it has no mutable state.
type Cipher struct {
	secret    []byte
	globalKey []byte
}

// New builds a Cipher. An empty secret is a configuration error reported here
// rather than on first use.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrSecretNotSet
	}

	globalKey := make([]byte, KeyLength)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(globalKeyInfo))
	if _, err := io.ReadFull(kdf, globalKey); err != nil {
		return nil, fmt.Errorf("derive global key: %w", err)
	}

	return &Cipher{secret: []byte(secret), globalKey: globalKey}, nil
}

// Encrypt seals plaintext under the global key. It is used only for the
// per-user salt.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	return seal(c.globalKey, []byte(plaintext))
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	plaintext, err := open(c.globalKey, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// NewSalt returns a fresh random salt, base64url encoded, suitable for
// EncryptForUser.
func (c *Cipher) NewSalt() (string, error) {
	salt := make([]byte, SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("rand salt: %w", err)
	}
	return keyEncoding.EncodeToString(salt), nil
}

// EncryptForUser derives the per-user key from saltB64 and seals plaintext.
func (c *Cipher) EncryptForUser(plaintext, saltB64 string) (string, error) {
	key, err := c.userKey(saltB64)
	if err != nil {
		return "", err
	}
	defer clear(key)
	return seal(key, []byte(plaintext))
}

// DecryptForUser is the inverse of EncryptForUser. A salt other than the one
// used to encrypt yields an apperror.ErrDecryption.
func (c *Cipher) DecryptForUser(ciphertext, saltB64 string) (string, error) {
	var out string
	err := c.WithUserToken(ciphertext, saltB64, func(token string) error {
		out = token
		return nil
	})
	return out, err
}

// WithUserToken decrypts ciphertext, hands the plaintext to fn and zeroes the
// key and plaintext buffers once fn returns.
func (c *Cipher) WithUserToken(ciphertext, saltB64 string, fn func(token string) error) error {
	key, err := c.userKey(saltB64)
	if err != nil {
		return err
	}
	defer clear(key)

	plaintext, err := open(key, ciphertext)
	if err != nil {
		return err
	}
	defer clear(plaintext)

	return fn(string(plaintext))
}

// FingerprintForUser returns a keyed digest of plaintext under the owner's
// key. Equal tokens for the same owner always produce the same fingerprint,
// which lets the store reject duplicates without decrypting anything.
func (c *Cipher) FingerprintForUser(plaintext, saltB64 string) (string, error) {
	key, err := c.userKey(saltB64)
	if err != nil {
		return "", err
	}
	defer clear(key)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(plaintext))
	return keyEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (c *Cipher) userKey(saltB64 string) ([]byte, error) {
	if saltB64 == "" {
		return nil, apperror.Decryption(errors.New("empty salt"))
	}
	salt, err := keyEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, apperror.Decryption(fmt.Errorf("decode salt: %w", err))
	}
	return deriveKeyBytes(c.secret, salt), nil
}

func decodeKey(key string) ([]byte, error) {
	raw, err := keyEncoding.DecodeString(key)
	if err != nil {
		return nil, apperror.Decryption(fmt.Errorf("decode key: %w", err))
	}
	if len(raw) != KeyLength {
		clear(raw)
		return nil, apperror.Decryption(fmt.Errorf("key is %d bytes, want %d", len(raw), KeyLength))
	}
	return raw, nil
}

// seal returns base64url(nonce || ciphertext || tag).
func seal(key, plaintext []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return keyEncoding.EncodeToString(sealed), nil
}

func open(key []byte, encoded string) ([]byte, error) {
	data, err := keyEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperror.Decryption(fmt.Errorf("base64 decode: %w", err))
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize+gcm.Overhead() {
		return nil, apperror.Decryption(errors.New("ciphertext too short"))
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, apperror.Decryption(fmt.Errorf("gcm.Open: %w", err))
	}
	return plaintext, nil
}

func newGCM(key []byte) (gocipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

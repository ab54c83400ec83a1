// Package vault provides custodial key management for the exchange: Solana
// keypair generation, AES-GCM encryption of private key material at rest,
// and ed25519 signing scoped to a single operation.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// aesKeyLen is the derived AES-256 key length.
	aesKeyLen = 32
	// currentVersion is the encrypted-key JSON schema version.
	currentVersion = 1
	// keypairLen is the Solana keypair size: 32-byte seed followed by the
	// 32-byte public key, which is exactly Go's ed25519.PrivateKey layout.
	keypairLen = 64
)

// encryptedKeyJSON is the stored format for an encrypted private keypair.
// The whole blob is base64-encoded before persistence.
type encryptedKeyJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// GenerateKeypair produces a fresh ed25519 keypair and returns the base58
// public key (the chain address) together with the raw 64-byte keypair.
func GenerateKeypair() (string, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, fmt.Errorf("vault: generate keypair: %w", err)
	}
	return base58.Encode(pub), priv, nil
}

// EncryptKeypair encrypts a 64-byte keypair with a secret using
// PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM authenticated
// encryption. It returns a base64 blob suitable for column storage.
func EncryptKeypair(keypair []byte, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("vault: encryption secret must not be empty")
	}
	if len(keypair) != keypairLen {
		return "", fmt.Errorf("vault: expected %d-byte keypair, got %d bytes", keypairLen, len(keypair))
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("vault: generating salt: %w", err)
	}

	gcm, err := newGCM(secret, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, keypair, nil)

	blob, err := json.Marshal(encryptedKeyJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return "", fmt.Errorf("vault: marshal encrypted key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(blob), nil
}

// DecryptKeypair decrypts a blob produced by EncryptKeypair. The caller owns
// the returned bytes and must zero them as soon as the signing scope ends.
func DecryptKeypair(encrypted, secret string) (ed25519.PrivateKey, error) {
	if secret == "" {
		return nil, errors.New("vault: encryption secret must not be empty")
	}

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("vault: decoding encrypted key blob: %w", err)
	}

	var stored encryptedKeyJSON
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("vault: parsing encrypted key JSON: %w", err)
	}
	if stored.Version != currentVersion {
		return nil, fmt.Errorf("vault: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("vault: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("vault: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("vault: decoding ciphertext: %w", err)
	}

	gcm, err := newGCM(secret, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("vault: decryption failed (wrong secret?): %w", err)
	}
	if len(plaintext) != keypairLen {
		zero(plaintext)
		return nil, fmt.Errorf("vault: decrypted keypair has %d bytes, want %d", len(plaintext), keypairLen)
	}

	return ed25519.PrivateKey(plaintext), nil
}

func newGCM(secret string, salt []byte) (cipher.AEAD, error) {
	derivedKey := pbkdf2.Key([]byte(secret), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("vault: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: creating GCM: %w", err)
	}
	return gcm, nil
}

// zero overwrites key material in place.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

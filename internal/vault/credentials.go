package vault

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// Credentials holds the exchange's own operator keypair, decrypted once at
// startup and injected into the services that move funds on its behalf.
type Credentials struct {
	publicKey string
	keypair   ed25519.PrivateKey
}

// LoadCredentials decrypts the operator keypair and verifies that it matches
// the configured public key, catching a mismatched secret or a stale blob
// before any transfer is attempted.
func LoadCredentials(publicKey, encryptedKeypair, secret string) (*Credentials, error) {
	keypair, err := DecryptKeypair(encryptedKeypair, secret)
	if err != nil {
		return nil, fmt.Errorf("vault: loading operator credentials: %w", err)
	}

	expected, err := base58.Decode(publicKey)
	if err != nil {
		zero(keypair)
		return nil, fmt.Errorf("vault: decoding operator public key: %w", err)
	}
	if !bytes.Equal(expected, keypair.Public().(ed25519.PublicKey)) {
		zero(keypair)
		return nil, fmt.Errorf("vault: operator keypair does not match public key %s", publicKey)
	}

	return &Credentials{publicKey: publicKey, keypair: keypair}, nil
}

// PublicKey returns the operator's base58 chain address.
func (c *Credentials) PublicKey() string {
	return c.publicKey
}

// UseKeypair passes the operator keypair to fn. The keypair stays resident
// for the process lifetime; fn must not mutate or retain the slice.
func (c *Credentials) UseKeypair(fn func(keypair ed25519.PrivateKey) error) error {
	return fn(c.keypair)
}

// Close zeroes the operator keypair. The Credentials must not be used after.
func (c *Credentials) Close() {
	zero(c.keypair)
}

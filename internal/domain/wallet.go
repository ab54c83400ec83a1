package domain

import "time"

// WalletRecord is a custodial wallet owned by the platform on behalf of one
// user. EncryptedPrivateKey is the AES-GCM blob produced by the vault; the
// plaintext keypair never leaves a signing scope.
type WalletRecord struct {
	ID                  string
	UserID              string
	PublicKey           string
	EncryptedPrivateKey string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

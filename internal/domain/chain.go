package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChainClient is the custodial wallet capability consumed by the ledger. The
// ledger never owns the wire format; it only requires balance reads and
// signed transfers. A timeout on any call is treated like any other transfer
// failure.
type ChainClient interface {
	// GetBalance returns the LLL token balance of the wallet.
	GetBalance(ctx context.Context, publicKey string) (decimal.Decimal, error)
	// GetLatestBlockhash returns a recent blockhash handle, a transfer
	// precondition on the target chain.
	GetLatestBlockhash(ctx context.Context) (string, error)
	// Transfer moves amount from one wallet to another, signing with the
	// given 64-byte keypair. It returns the transaction signature.
	Transfer(ctx context.Context, signerKey []byte, fromPublicKey, toPublicKey string, amount decimal.Decimal) (string, error)
}

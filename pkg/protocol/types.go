// Package protocol defines the wire types for the x-agentgate 402
// challenge/settle protocol: payment requirements, settlement references,
// memo derivation, and header encoding. It has no dependency on the ledger
// RPC or on any HTTP routing framework — it is pure data plus the pure
// functions needed to build and parse that data.
package protocol

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Version is the protocol version advertised by the discovery document.
const Version = "1"

// HeaderName is the request header clients attach a settlement reference to.
const HeaderName = "X-Payment"

// PaymentRequirement is the 402 challenge issued by the server when a
// priced endpoint is called without a settlement reference.
type PaymentRequirement struct {
	RecipientAddress common.Address `json:"recipientAddress"`
	TokenAddress     common.Address `json:"tokenAddress"`
	TokenSymbol      string         `json:"tokenSymbol"`
	AmountRequired   string         `json:"amountRequired"`
	AmountHuman      string         `json:"amountHuman"`
	Endpoint         string         `json:"endpoint"`
	Nonce            string         `json:"nonce"`
	Expiry           int64          `json:"expiry"`
	ChainID          uint64         `json:"chainId"`
	Memo             common.Hash    `json:"memo"`
	Description      string         `json:"description,omitempty"`
}

// AmountRequiredInt parses AmountRequired back into a *big.Int. It never
// fails for a requirement this package built itself; it is provided for
// callers that only hold the JSON-decoded struct.
func (p *PaymentRequirement) AmountRequiredInt() (*big.Int, error) {
	v, ok := new(big.Int).SetString(p.AmountRequired, 10)
	if !ok {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

// ExpiryTime returns Expiry as a time.Time for comparisons against wall time.
func (p *PaymentRequirement) ExpiryTime() time.Time {
	return time.Unix(p.Expiry, 0)
}

// Instructions is the human-readable companion to a PaymentRequirement,
// telling a client unfamiliar with the protocol what to do next.
type Instructions struct {
	Header string   `json:"header"`
	Format string   `json:"format"`
	Steps  []string `json:"steps"`
}

// ChallengeBody is the full JSON body of a 402 response.
type ChallengeBody struct {
	Error        string              `json:"error"`
	Payment      PaymentRequirement  `json:"payment"`
	Instructions Instructions        `json:"instructions"`
	ErrorCode    string              `json:"errorCode,omitempty"`
}

// DefaultInstructions builds the standard three-step instructions block.
// It takes no requirement: the block is the same for every challenge.
func DefaultInstructions() Instructions {
	return Instructions{
		Header: HeaderName,
		Format: "<txHash>:<chainId>",
		Steps: []string{
			"Transfer the required amount of the token to the recipient address on the specified chain.",
			"Include the header " + HeaderName + ": <txHash>:<chainId> on the retried request.",
			"Retry the original request; the gateway verifies the transfer on-chain before admitting it.",
		},
	}
}

// SettlementReference identifies the on-chain transfer a client claims pays
// for one priced call. It is transmitted in the X-Payment header as
// "<txHash>:<chainId>" and carries no further fields — the verifier
// rediscovers recipient/amount/token by reading the transaction's events.
type SettlementReference struct {
	TxHash  common.Hash
	ChainID uint64
}

// TokenInfo describes a token accepted by the gateway, keyed by symbol in
// the pricing table and discovery document.
type TokenInfo struct {
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals int            `json:"decimals"`
}

// DiscoveryChain describes the chain the gateway settles on.
type DiscoveryChain struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// DiscoveryEndpoint describes one priced endpoint in the discovery document.
type DiscoveryEndpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Price       string `json:"price"`
	Description string `json:"description,omitempty"`
}

// DiscoveryDocument is served at GET /.well-known/x-agentgate.json.
type DiscoveryDocument struct {
	Name      string              `json:"name"`
	Version   string              `json:"version"`
	Chain     DiscoveryChain      `json:"chain"`
	Token     TokenInfo           `json:"token"`
	Recipient common.Address      `json:"recipient"`
	Endpoints []DiscoveryEndpoint `json:"endpoints"`
}

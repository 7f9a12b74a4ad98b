package protocol

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BuildRequirementParams collects the inputs needed to build a
// PaymentRequirement. BodyHash is the hash of the retried request's body
// (or the zero hash for bodyless requests); it feeds the memo, not the
// requirement JSON directly.
type BuildRequirementParams struct {
	Recipient   common.Address
	Token       TokenInfo
	HumanAmount string // decimal string, e.g. "0.01"
	Endpoint    string // "METHOD path"
	BodyHash    [32]byte
	Nonce       string
	ExpirySecs  time.Duration
	ChainID     uint64
	Description string
	IssuedAt    time.Time
}

// BuildRequirement scales HumanAmount to the token's smallest units using
// integer math, computes the request memo, and returns the fully
// populated PaymentRequirement.
//
// Fails with ErrInvalidAmount when HumanAmount is non-positive or has more
// fractional digits than Token.Decimals, ErrEmptyNonce when Nonce is
// empty, and ErrInvalidExpiry when ExpirySecs is not positive.
func BuildRequirement(p BuildRequirementParams) (*PaymentRequirement, error) {
	if p.Nonce == "" {
		return nil, ErrEmptyNonce
	}
	if p.ExpirySecs <= 0 {
		return nil, ErrInvalidExpiry
	}

	smallest, err := ScaleAmount(p.HumanAmount, p.Token.Decimals)
	if err != nil {
		return nil, err
	}

	issuedAt := p.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	expiry := issuedAt.Add(p.ExpirySecs).Unix()

	memo := ComputeMemo(p.Endpoint, p.BodyHash, p.Nonce, expiry)

	return &PaymentRequirement{
		RecipientAddress: p.Recipient,
		TokenAddress:     p.Token.Address,
		TokenSymbol:      p.Token.Symbol,
		AmountRequired:   smallest.String(),
		AmountHuman:      DisplayAmount(smallest, p.Token.Decimals),
		Endpoint:         p.Endpoint,
		Nonce:            p.Nonce,
		Expiry:           expiry,
		ChainID:          p.ChainID,
		Memo:             memo,
		Description:      p.Description,
	}, nil
}

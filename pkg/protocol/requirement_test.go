package protocol

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func testToken() TokenInfo {
	return TokenInfo{
		Symbol:   "USDC",
		Address:  common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		Decimals: 6,
	}
}

func TestBuildRequirement(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	req, err := BuildRequirement(BuildRequirementParams{
		Recipient:   common.HexToAddress("0x1234567890123456789012345678901234567890"),
		Token:       testToken(),
		HumanAmount: "0.005",
		Endpoint:    "POST /api/chat",
		Nonce:       "nonce-abc",
		ExpirySecs:  5 * time.Minute,
		ChainID:     8453,
		IssuedAt:    issuedAt,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.AmountRequired != "5000" {
		t.Errorf("AmountRequired = %s, want 5000", req.AmountRequired)
	}
	if req.AmountHuman != "0.005" {
		t.Errorf("AmountHuman = %s, want 0.005", req.AmountHuman)
	}
	wantExpiry := issuedAt.Add(5 * time.Minute).Unix()
	if req.Expiry != wantExpiry {
		t.Errorf("Expiry = %d, want %d", req.Expiry, wantExpiry)
	}
	if req.Memo == (common.Hash{}) {
		t.Errorf("expected non-zero memo")
	}
}

func TestBuildRequirementRejectsBadInputs(t *testing.T) {
	base := BuildRequirementParams{
		Recipient:   common.HexToAddress("0x1234567890123456789012345678901234567890"),
		Token:       testToken(),
		HumanAmount: "0.005",
		Endpoint:    "POST /api/chat",
		Nonce:       "nonce-abc",
		ExpirySecs:  5 * time.Minute,
		ChainID:     8453,
	}

	noNonce := base
	noNonce.Nonce = ""
	if _, err := BuildRequirement(noNonce); err != ErrEmptyNonce {
		t.Errorf("expected ErrEmptyNonce, got %v", err)
	}

	noExpiry := base
	noExpiry.ExpirySecs = 0
	if _, err := BuildRequirement(noExpiry); err != ErrInvalidExpiry {
		t.Errorf("expected ErrInvalidExpiry, got %v", err)
	}

	badAmount := base
	badAmount.HumanAmount = "0"
	if _, err := BuildRequirement(badAmount); err != ErrInvalidAmount {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

package paywall

import (
	"bytes"
	"context"
	"crypto/sha256"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/agentgate/paygate/pkg/ledger"
	"github.com/agentgate/paygate/pkg/protocol"
	"github.com/ethereum/go-ethereum/common"
	goccyjson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentObservedFunc is invoked once per admitted settlement, after the
// reference has been claimed in the replay store but before the downstream
// handler runs. A non-nil return is logged and otherwise ignored — the
// hook never blocks admission (spec §7).
type PaymentObservedFunc func(ctx context.Context, s Settlement) error

// Middleware implements the 402 challenge/verify/admit state machine from
// spec §4.3. One Middleware wraps every priced route behind a single
// recipient address and token; a gateway accepting several tokens runs one
// Middleware per token, each with its own Pricing table slice.
type Middleware struct {
	Recipient common.Address
	Token     protocol.TokenInfo
	ChainID   uint64
	ChainName string

	Pricing      *PricingTable
	Verifier     *ledger.Verifier
	ReplayStore  ReplayStore
	Revenue      *RevenueCounters
	ExpiryWindow time.Duration

	// Hook fires after a settlement is claimed and before the request is
	// admitted downstream. Optional.
	Hook PaymentObservedFunc

	Logger *slog.Logger

	// nonce and now are overridable for deterministic tests.
	nonce func() string
	now   func() time.Time
}

func (m *Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Middleware) nonceFunc() string {
	if m.nonce != nil {
		return m.nonce()
	}
	return uuid.NewString()
}

func (m *Middleware) nowFunc() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *Middleware) expiryWindow() time.Duration {
	if m.ExpiryWindow > 0 {
		return m.ExpiryWindow
	}
	return 5 * time.Minute
}

// Wrap returns an http.Handler implementing the paywall in front of next.
// Routes with no pricing entry pass through untouched (UNPRICED); priced
// routes without a valid settlement reference receive a 402 challenge.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry, priced := m.Pricing.Lookup(r.Method, r.URL.Path)
		if !priced {
			next.ServeHTTP(w, r)
			return
		}

		if m.Revenue != nil {
			m.Revenue.RecordRequest()
		}

		endpoint := EndpointKey(r.Method, r.URL.Path)
		headerValue := r.Header.Get(protocol.HeaderName)

		if headerValue == "" {
			m.issueChallenge(w, r, endpoint, entry)
			return
		}

		ref, ok := protocol.ParseSettlementHeader(headerValue)
		if !ok {
			m.writeError(w, CodeHeaderMalformed, "Invalid "+protocol.HeaderName+" header")
			return
		}
		if ref.ChainID != m.ChainID {
			m.writeError(w, CodeNoMatch, "settlement reference targets a different chain")
			return
		}

		token := m.Token
		if entry.TokenOverride != "" {
			token.Symbol = entry.TokenOverride
		}

		req, err := protocol.BuildRequirement(protocol.BuildRequirementParams{
			Recipient:   m.Recipient,
			Token:       token,
			HumanAmount: entry.Amount,
			Endpoint:    endpoint,
			Nonce:       m.nonceFunc(),
			ExpirySecs:  m.expiryWindow(),
			ChainID:     m.ChainID,
			Description: entry.Description,
			IssuedAt:    m.nowFunc(),
		})
		if err != nil {
			m.logger().Error("failed to build ephemeral requirement", "endpoint", endpoint, "error", err)
			m.writeError(w, CodeNoMatch, "gateway could not evaluate this payment")
			return
		}
		// The requirement built on retry is ephemeral: it exists only to
		// drive the verifier's amount/expiry checks, not to reproduce the
		// nonce the client originally received. Its memo is never
		// checked against a real transfer, so it is zeroed to disable
		// the verifier's memo comparison entirely — replay defense is
		// the used-reference set, not the memo (spec §9 open question).
		req.Memo = common.Hash{}

		candidates, err := m.Verifier.VerifyAll(r.Context(), ref.TxHash, req)
		if err != nil {
			m.writeVerificationError(w, err)
			return
		}

		// A receipt can carry several logs that each satisfy this
		// requirement, most commonly a batch settlement's transfers to
		// the same recipient sharing one txHash. Bind this request to
		// the earliest candidate log that is not already claimed,
		// rather than always the single best match, so sibling batch
		// requests each land on a distinct (txHash, logIndex) instead
		// of colliding on one (spec §4.5).
		var verification *ledger.Verification
		var reference Reference
		for _, candidate := range candidates {
			candidateRef := Reference{
				TxHash:   candidate.TxHash,
				ChainID:  ref.ChainID,
				LogIndex: candidate.LogIndex,
			}
			claimed, err := m.ReplayStore.Claim(r.Context(), candidateRef, req.ExpiryTime())
			if err != nil {
				m.logger().Error("replay store claim failed", "reference", candidateRef, "error", err)
				m.writeError(w, CodeRPCUnavailable, "gateway could not record this settlement")
				return
			}
			if claimed {
				verification = candidate
				reference = candidateRef
				break
			}
		}
		if verification == nil {
			m.writeError(w, CodeReplay, "settlement reference already used")
			return
		}

		settlement := Settlement{
			Reference: reference,
			From:      verification.From,
			Endpoint:  endpoint,
			Amount:    amountToDecimal(verification.Amount, token.Decimals),
			At:        m.nowFunc(),
		}
		if m.Revenue != nil {
			m.Revenue.RecordSettlement(settlement)
		}
		if m.Hook != nil {
			if err := m.Hook(r.Context(), settlement); err != nil {
				m.logger().Error("payment-observed hook failed", "reference", reference, "error", err)
			}
		}

		w.Header().Set("X-Payment-Settled", protocol.FormatSettlementHeader(protocol.SettlementReference{
			TxHash: reference.TxHash, ChainID: reference.ChainID,
		}))
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) issueChallenge(w http.ResponseWriter, r *http.Request, endpoint string, entry PricingEntry) {
	bodyHash := hashBody(r)

	token := m.Token
	if entry.TokenOverride != "" {
		token.Symbol = entry.TokenOverride
	}

	req, err := protocol.BuildRequirement(protocol.BuildRequirementParams{
		Recipient:   m.Recipient,
		Token:       token,
		HumanAmount: entry.Amount,
		Endpoint:    endpoint,
		BodyHash:    bodyHash,
		Nonce:       m.nonceFunc(),
		ExpirySecs:  m.expiryWindow(),
		ChainID:     m.ChainID,
		Description: entry.Description,
		IssuedAt:    m.nowFunc(),
	})
	if err != nil {
		m.logger().Error("failed to build payment requirement", "endpoint", endpoint, "error", err)
		http.Error(w, "gateway misconfigured for this endpoint", http.StatusInternalServerError)
		return
	}

	body := protocol.ChallengeBody{
		Error:        "payment required",
		Payment:      *req,
		Instructions: protocol.DefaultInstructions(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Payment-Amount", req.AmountHuman)
	w.Header().Set("X-Payment-Token", req.TokenSymbol)
	w.Header().Set("X-Payment-Recipient", req.RecipientAddress.Hex())
	w.WriteHeader(http.StatusPaymentRequired)
	if err := goccyjson.NewEncoder(w).Encode(body); err != nil {
		m.logger().Error("failed to encode challenge body", "error", err)
	}
}

func (m *Middleware) writeVerificationError(w http.ResponseWriter, err error) {
	verr, ok := err.(*ledger.VerificationError)
	if !ok {
		m.writeError(w, CodeRPCUnavailable, err.Error())
		return
	}
	m.writeError(w, ErrorCode(verr.Code), verr.Error())
}

func (m *Middleware) writeError(w http.ResponseWriter, code ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(code))
	_ = goccyjson.NewEncoder(w).Encode(map[string]string{
		"error":     message,
		"errorCode": string(code),
	})
}

func hashBody(r *http.Request) [32]byte {
	if r.Body == nil {
		return sha256.Sum256(nil)
	}
	data, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		return sha256.Sum256(nil)
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return sha256.Sum256(data)
}

func amountToDecimal(smallest *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(smallest, int32(-decimals))
}

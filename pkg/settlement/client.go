// Package settlement implements the client side of the x-agentgate
// protocol: submitting requests, detecting 402 challenges, paying them
// via a signer.Signer, and retrying with the resulting settlement
// reference (spec §4.5).
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentgate/paygate/pkg/protocol"
	"github.com/agentgate/paygate/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
	maxBackoff        = 10 * time.Second
)

// Client wraps a plain net/http client with the settle-and-retry state
// machine described in spec §4.5.
type Client struct {
	HTTP            *http.Client
	Signer          signer.Signer
	ChainID         uint64
	MaxRetries      int
	Timeout         time.Duration
	PrecheckBalance bool
	OnEvent         Callback

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return defaultMaxRetries
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

func (c *Client) nowFunc() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Client) sleepFunc(ctx context.Context, d time.Duration) {
	if c.sleep != nil {
		c.sleep(ctx, d)
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Fetch implements the single-request settle loop from spec §4.5.
func (c *Client) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	deadline := c.nowFunc().Add(c.timeout())

	for attempt := 0; attempt <= c.maxRetries(); attempt++ {
		if c.nowFunc().After(deadline) {
			return nil, ErrTimeout
		}

		attemptReq, err := cloneRequest(req)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient().Do(attemptReq)
		if err != nil {
			emit(c.OnEvent, Event{Type: EventRetrying, Timestamp: c.nowFunc(), URL: req.URL.String(), Attempt: attempt, Err: err})
			if !c.backoff(ctx, attempt, deadline) {
				return nil, ErrTimeout
			}
			continue
		}
		if resp.StatusCode != http.StatusPaymentRequired {
			return resp, nil
		}

		payment, err := decodeChallenge(resp)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidChallenge, err)
		}

		emit(c.OnEvent, Event{
			Type: EventPaymentRequired, Timestamp: c.nowFunc(), URL: req.URL.String(), Attempt: attempt,
			Amount: payment.AmountHuman, Token: payment.TokenAddress, Recipient: payment.RecipientAddress,
		})

		txHash, err := c.settle(ctx, payment)
		if err != nil {
			if errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrInvalidChallenge) {
				return nil, err
			}
			emit(c.OnEvent, Event{Type: EventRetrying, Timestamp: c.nowFunc(), URL: req.URL.String(), Attempt: attempt, Err: err})
			if !c.backoff(ctx, attempt, deadline) {
				return nil, ErrTimeout
			}
			continue
		}

		retryReq, err := cloneRequest(req)
		if err != nil {
			return nil, err
		}
		retryReq.Header.Set(protocol.HeaderName, protocol.FormatSettlementHeader(protocol.SettlementReference{
			TxHash: txHash, ChainID: c.ChainID,
		}))
		return c.httpClient().Do(retryReq)
	}

	return nil, ErrExhausted
}

// settle runs the balance precheck (if enabled) and submits the transfer
// for one payment requirement, emitting the sending/confirmed events.
func (c *Client) settle(ctx context.Context, payment *protocol.PaymentRequirement) (common.Hash, error) {
	amount, err := payment.AmountRequiredInt()
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidChallenge, err)
	}

	if c.PrecheckBalance {
		balance, err := c.Signer.GetBalance(ctx, payment.TokenAddress)
		if err != nil {
			return common.Hash{}, err
		}
		if balance.Cmp(amount) < 0 {
			return common.Hash{}, ErrInsufficientBalance
		}
	}

	emit(c.OnEvent, Event{
		Type: EventPaymentSending, Timestamp: c.nowFunc(), Amount: payment.AmountHuman,
		Token: payment.TokenAddress, Recipient: payment.RecipientAddress,
	})

	memo := payment.Memo
	txHash, err := c.Signer.SubmitTransfer(ctx, signer.Transfer{
		Token:     payment.TokenAddress,
		Recipient: payment.RecipientAddress,
		Amount:    amount,
		Memo:      &memo,
	})
	if err != nil {
		return common.Hash{}, err
	}

	emit(c.OnEvent, Event{Type: EventPaymentConfirmed, Timestamp: c.nowFunc(), TxHash: txHash})
	return txHash, nil
}

// backoff sleeps min(1000*2^attempt, 10000) ms, or returns false if doing
// so would cross the deadline.
func (c *Client) backoff(ctx context.Context, attempt int, deadline time.Time) bool {
	delay := time.Duration(1000<<uint(attempt)) * time.Millisecond
	if delay > maxBackoff {
		delay = maxBackoff
	}
	if c.nowFunc().Add(delay).After(deadline) {
		return false
	}
	c.sleepFunc(ctx, delay)
	return true
}

func decodeChallenge(resp *http.Response) (*protocol.PaymentRequirement, error) {
	defer resp.Body.Close()
	var body protocol.ChallengeBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Payment.RecipientAddress == (common.Address{}) || body.Payment.AmountRequired == "" {
		return nil, fmt.Errorf("challenge body missing recipientAddress or amountRequired")
	}
	return &body.Payment, nil
}

// cloneRequest rebuilds req so it can be submitted again: the standard
// library's Request.Clone does not re-arm a body, so GetBody (which
// http.NewRequest populates for common body types) is used instead.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody == nil {
		return clone, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("settlement: rewind request body: %w", err)
	}
	clone.Body = io.NopCloser(body)
	return clone, nil
}

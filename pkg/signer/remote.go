package signer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/valyala/fasthttp"
)

// RemoteSigner delegates signing to an external HTTPS custody API
// identified by an app id, app secret and wallet id (spec §4.4, "Remote
// custody signer"). It authenticates with HTTP basic credentials and
// never supports batching.
type RemoteSigner struct {
	client      *fasthttp.Client
	baseURL     string
	appID       string
	appSecret   string
	walletID    string
	address     common.Address
	sponsorFees bool
	timeout     time.Duration
}

// RemoteSignerOption customizes a RemoteSigner at construction.
type RemoteSignerOption func(*RemoteSigner)

// WithSponsorFees requests the custody service cover gas for every
// transfer. If the service rejects sponsorship, SubmitTransfer retries
// once without it (spec §4.4).
func WithSponsorFees() RemoteSignerOption {
	return func(s *RemoteSigner) { s.sponsorFees = true }
}

// NewRemoteSigner constructs a RemoteSigner. address is the wallet's
// on-chain address, supplied by the caller rather than discovered, since
// the custody API's wallet-lookup endpoint is out of scope here.
func NewRemoteSigner(baseURL, appID, appSecret, walletID string, address common.Address, opts ...RemoteSignerOption) *RemoteSigner {
	s := &RemoteSigner{
		client: &fasthttp.Client{
			MaxConnsPerHost:     50,
			MaxIdleConnDuration: 30 * time.Second,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		appID:     appID,
		appSecret: appSecret,
		walletID:  walletID,
		address:   address,
		timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RemoteSigner) ResolveAddress() common.Address {
	return s.address
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

func (s *RemoteSigner) GetBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	url := fmt.Sprintf("%s/wallets/%s/balances/%s", s.baseURL, s.walletID, token.Hex())

	var out balanceResponse
	if err := s.doJSON(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(out.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("signer: custody service returned malformed balance %q", out.Balance)
	}
	return balance, nil
}

type transferRequest struct {
	Token       string `json:"token"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	Memo        string `json:"memo,omitempty"`
	SponsorFees bool   `json:"sponsorFees"`
}

type transferResponse struct {
	TxHash string `json:"txHash"`
	Error  string `json:"error,omitempty"`
}

const sponsorshipRejected = "SPONSORSHIP_REJECTED"

// SubmitTransfer posts the transfer to the custody API and returns the
// transaction hash it reports. When sponsorship is requested and the
// service rejects it, the request is retried once without sponsorship
// (spec §4.4). It does not poll the chain for a receipt before returning.
func (s *RemoteSigner) SubmitTransfer(ctx context.Context, t Transfer) (common.Hash, error) {
	txHash, rejected, err := s.submitTransfer(ctx, t, s.sponsorFees)
	if err != nil {
		return common.Hash{}, err
	}
	if rejected && s.sponsorFees {
		txHash, _, err = s.submitTransfer(ctx, t, false)
		if err != nil {
			return common.Hash{}, err
		}
	}
	return txHash, nil
}

func (s *RemoteSigner) submitTransfer(ctx context.Context, t Transfer, sponsor bool) (common.Hash, bool, error) {
	body := transferRequest{
		Token:       t.Token.Hex(),
		Recipient:   t.Recipient.Hex(),
		Amount:      t.Amount.String(),
		SponsorFees: sponsor,
	}
	if t.Memo != nil {
		body.Memo = t.Memo.Hex()
	}

	url := fmt.Sprintf("%s/wallets/%s/transfers", s.baseURL, s.walletID)

	var out transferResponse
	if err := s.doJSON(ctx, http.MethodPost, url, body, &out); err != nil {
		return common.Hash{}, false, err
	}
	if out.Error == sponsorshipRejected {
		return common.Hash{}, true, nil
	}
	if out.Error != "" {
		return common.Hash{}, false, fmt.Errorf("signer: custody service rejected transfer: %s", out.Error)
	}
	return common.HexToHash(out.TxHash), false, nil
}

func (s *RemoteSigner) SupportsBatch() bool {
	return false
}

func (s *RemoteSigner) SubmitBatch(context.Context, []Transfer) (common.Hash, error) {
	return common.Hash{}, ErrBatchUnsupported
}

func (s *RemoteSigner) doJSON(ctx context.Context, method, url string, body interface{}, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.Set("Authorization", "Basic "+basicAuth(s.appID, s.appSecret))

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("signer: marshal request body: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if err := s.client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("signer: custody request failed: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("signer: custody service returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("signer: decode custody response: %w", err)
		}
	}
	return nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

package settlement

import (
	"context"
	"net/http"
	"sync"

	"github.com/agentgate/paygate/pkg/protocol"
	"github.com/agentgate/paygate/pkg/signer"
)

// FetchBatch implements spec §4.5's batch fetch: phases 1–2 are shared
// with FetchMany. Phase 3 packs every pending settlement into one
// transaction when the signer supports it, retrying every pending
// request with the same settlement reference; otherwise it falls back
// to FetchMany's concurrent individual settlement.
func (c *Client) FetchBatch(ctx context.Context, reqs []*http.Request) ([]Result, error) {
	results := c.fireInitial(reqs)
	pending := partitionPending(reqs, results)

	if len(pending) == 0 {
		return results, nil
	}

	if !c.Signer.SupportsBatch() {
		var wg sync.WaitGroup
		for _, task := range pending {
			wg.Add(1)
			go func(task pendingTask) {
				defer wg.Done()
				results[task.index] = c.settleAndRetry(ctx, task.request, task.payment)
			}(task)
		}
		wg.Wait()
		return results, nil
	}

	transfers := make([]signer.Transfer, len(pending))
	for i, task := range pending {
		amount, err := task.payment.AmountRequiredInt()
		if err != nil {
			results[task.index] = Result{Err: ErrInvalidChallenge}
			continue
		}
		memo := task.payment.Memo
		transfers[i] = signer.Transfer{
			Token:     task.payment.TokenAddress,
			Recipient: task.payment.RecipientAddress,
			Amount:    amount,
			Memo:      &memo,
		}
	}

	emit(c.OnEvent, Event{Type: EventPaymentSending, Timestamp: c.nowFunc()})
	txHash, err := c.Signer.SubmitBatch(ctx, transfers)
	if err != nil {
		for _, task := range pending {
			results[task.index] = Result{Err: err}
		}
		return results, nil
	}
	emit(c.OnEvent, Event{Type: EventPaymentConfirmed, Timestamp: c.nowFunc(), TxHash: txHash})

	// Atomicity contract (spec §4.5): either all settlements land or
	// none do, so every pending request is retried with the same
	// reference. The verifier is expected to accept distinct requests
	// bearing the same txHash, keying replay defense on (txHash,
	// logIndex) rather than txHash alone.
	var wg sync.WaitGroup
	for _, task := range pending {
		wg.Add(1)
		go func(task pendingTask) {
			defer wg.Done()
			retryReq, err := cloneRequest(task.request)
			if err != nil {
				results[task.index] = Result{Err: err}
				return
			}
			retryReq.Header.Set(protocol.HeaderName, protocol.FormatSettlementHeader(protocol.SettlementReference{
				TxHash: txHash, ChainID: c.ChainID,
			}))
			resp, err := c.httpClient().Do(retryReq)
			results[task.index] = Result{Response: resp, Err: err}
		}(task)
	}
	wg.Wait()

	return results, nil
}

package settlement

import (
	"context"
	"net/http"
	"sync"

	"github.com/agentgate/paygate/pkg/protocol"
)

// Result pairs one input request's outcome, keeping FetchMany/FetchBatch
// output index-aligned with their input slice (spec §4.5, "Ordering
// guarantee").
type Result struct {
	Response *http.Response
	Err      error
}

// pendingTask is one 402 response awaiting settlement.
type pendingTask struct {
	index   int
	request *http.Request
	payment *protocol.PaymentRequirement
}

// fireInitial runs phase 1 of fetchMany/fetchBatch: every request is
// submitted concurrently, with no payment handling yet.
func (c *Client) fireInitial(reqs []*http.Request) []Result {
	results := make([]Result, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *http.Request) {
			defer wg.Done()
			attemptReq, err := cloneRequest(req)
			if err != nil {
				results[i] = Result{Err: err}
				return
			}
			resp, err := c.httpClient().Do(attemptReq)
			results[i] = Result{Response: resp, Err: err}
		}(i, req)
	}
	wg.Wait()
	return results
}

// partitionPending runs phase 2: responses that are not a 402 are left
// as-is in results; 402 responses are parsed into pendingTasks.
func partitionPending(reqs []*http.Request, results []Result) []pendingTask {
	var pending []pendingTask
	for i, res := range results {
		if res.Err != nil || res.Response == nil || res.Response.StatusCode != http.StatusPaymentRequired {
			continue
		}
		payment, err := decodeChallenge(res.Response)
		if err != nil {
			results[i] = Result{Err: err}
			continue
		}
		pending = append(pending, pendingTask{index: i, request: reqs[i], payment: payment})
	}
	return pending
}

// FetchMany implements spec §4.5's parallel fetch: initial requests run
// concurrently, then every pending 402 is settled concurrently and
// retried, relying on the ledger admitting more than one pending
// transaction per sender in a short window.
func (c *Client) FetchMany(ctx context.Context, reqs []*http.Request) ([]Result, error) {
	results := c.fireInitial(reqs)
	pending := partitionPending(reqs, results)

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

// settleAndRetry submits the transfer for one pending task's payment
// requirement and resubmits the original request with the resulting
// settlement header, returning the result regardless of the retry's
// status (spec §4.5, "submit and return the result regardless of
// status").
func (c *Client) settleAndRetry(ctx context.Context, req *http.Request, payment *protocol.PaymentRequirement) Result {
	txHash, err := c.settle(ctx, payment)
	if err != nil {
		return Result{Err: err}
	}

	retryReq, err := cloneRequest(req)
	if err != nil {
		return Result{Err: err}
	}
	retryReq.Header.Set(protocol.HeaderName, protocol.FormatSettlementHeader(protocol.SettlementReference{
		TxHash: txHash, ChainID: c.ChainID,
	}))
	resp, err := c.httpClient().Do(retryReq)
	return Result{Response: resp, Err: err}
}

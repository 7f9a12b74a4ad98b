package settlement

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies a point in the settlement lifecycle a client can
// observe (spec §4.5: payment_required, payment_sending,
// payment_confirmed, retrying).
type EventType string

const (
	EventPaymentRequired  EventType = "payment_required"
	EventPaymentSending   EventType = "payment_sending"
	EventPaymentConfirmed EventType = "payment_confirmed"
	EventRetrying         EventType = "retrying"
)

// Event describes one settlement-lifecycle occurrence, passed to a
// Callback. Fields not relevant to Type are left zero.
type Event struct {
	Type      EventType
	Timestamp time.Time
	URL       string
	Attempt   int
	Amount    string
	Token     common.Address
	Recipient common.Address
	TxHash    common.Hash
	Err       error
}

// Callback observes settlement lifecycle events. It must not block for
// long; it runs inline on the settlement goroutine.
type Callback func(Event)

func emit(cb Callback, ev Event) {
	if cb != nil {
		cb(ev)
	}
}

package nats

import (
	"time"

	"github.com/brojonat/solxr/service/engine"
	"github.com/brojonat/solxr/service/strategy"
)

// ReceiptEvent is the message published for every committed operation, on
// the subject "solxr.{operation}".
type ReceiptEvent struct {
	ID        string           `json:"id"`
	Operation engine.Operation `json:"operation"`
	Caller    string           `json:"caller,omitempty"`
	At        time.Time        `json:"at"`

	// Headline figures, repeated from the outcome for consumers that only
	// need them.
	Minted        uint64 `json:"minted"`
	Fee           uint64 `json:"fee,omitempty"`
	SolInTreasury uint64 `json:"sol_in_treasury"`

	Outcome *strategy.Outcome `json:"outcome"`

	PublishedAt time.Time `json:"published_at"`
}

// FromReceipt converts an engine receipt to an event for publishing.
func FromReceipt(r *engine.Receipt) *ReceiptEvent {
	event := &ReceiptEvent{
		ID:          r.ID,
		Operation:   r.Operation,
		At:          r.At,
		Outcome:     r.Outcome,
		PublishedAt: time.Now().UTC(),
	}
	if !r.Caller.IsZero() {
		event.Caller = r.Caller.String()
	}
	if r.Outcome != nil {
		event.Minted = r.Outcome.Minted
		event.Fee = r.Outcome.Fee
		event.SolInTreasury = r.Outcome.State.SolInTreasury
	}
	return event
}

// internal/notify/types.go
package notify

import (
	"time"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
	"github.com/rovshanmuradov/solana-transfer/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-transfer/internal/blockchain/solbc/transaction"
)

// Результат прогона, как он уходит в NATS.
const (
	ResultConfirmed = "confirmed"
	ResultDiagnosed = "diagnosed"
	ResultFailed    = "failed"
)

// OutcomeEvent describes one finished transfer.
type OutcomeEvent struct {
	Result         string           `json:"result"`
	Signature      string           `json:"signature,omitempty"`
	Source         string           `json:"source"`
	Destination    string           `json:"destination"`
	AmountLamports uint64           `json:"amount_lamports"`
	Commitment     string           `json:"commitment,omitempty"`
	Slot           uint64           `json:"slot,omitempty"`
	ComputeUnits   uint32           `json:"compute_units,omitempty"`
	PriorityFee    uint64           `json:"priority_fee_micro_lamports,omitempty"`
	Diagnosis      *solbc.Diagnosis `json:"diagnosis,omitempty"`
	ErrorKind      string           `json:"error_kind,omitempty"`
	Error          string           `json:"error,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// NewOutcomeEvent builds the event from what Manager.Transfer returned.
func NewOutcomeEvent(source, destination string, lamports uint64, outcome *transaction.Outcome, err error) *OutcomeEvent {
	event := &OutcomeEvent{
		Source:         source,
		Destination:    destination,
		AmountLamports: lamports,
		Timestamp:      time.Now().UTC(),
	}

	if err != nil {
		event.Result = ResultFailed
		event.ErrorKind = blockchain.KindOf(err).String()
		event.Error = err.Error()
		return event
	}

	event.Signature = outcome.Signature
	event.ComputeUnits = outcome.ComputeUnits
	event.PriorityFee = outcome.PriorityFee
	if outcome.Diagnosis != nil {
		event.Result = ResultDiagnosed
		event.Diagnosis = outcome.Diagnosis
		event.ErrorKind = outcome.Diagnosis.Kind.String()
		return event
	}

	event.Result = ResultConfirmed
	if outcome.Status != nil {
		event.Commitment = outcome.Status.Status
		event.Slot = outcome.Status.Slot
	}
	return event
}

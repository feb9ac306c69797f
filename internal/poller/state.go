package poller

import (
	"time"

	"farepay/internal/domain"
)

type State string

const (
	StateIdle            State = "idle"
	StatePolling         State = "polling"
	StateResolvedSuccess State = "resolved-success"
	StateResolvedFailure State = "resolved-failure"
	StateCancelled       State = "cancelled"
)

func (s State) IsFinal() bool {
	return s == StateResolvedSuccess || s == StateResolvedFailure || s == StateCancelled
}

// Outcome is what a finished poll reports. Receipt is set only for
// StateResolvedSuccess and FailureReason only for StateResolvedFailure.
type Outcome struct {
	State              State
	MerchantReference  string
	Receipt            *domain.Receipt
	FailureReason      domain.FailureReason
	FailureDescription string
	// TimedOut marks the synthetic failure produced when the deadline elapsed
	// before the server reported a terminal status.
	TimedOut bool
	Polls    int
	Elapsed  time.Duration
}

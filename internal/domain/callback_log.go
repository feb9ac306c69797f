package domain

import "time"

type CallbackOutcome string

const (
	CallbackOutcomeReceived         CallbackOutcome = "RECEIVED"
	CallbackOutcomeApplied          CallbackOutcome = "APPLIED"
	CallbackOutcomeDuplicate        CallbackOutcome = "DUPLICATE"
	CallbackOutcomeUnknownReference CallbackOutcome = "UNKNOWN_REFERENCE"
	CallbackOutcomeMalformed        CallbackOutcome = "MALFORMED"
	CallbackOutcomeError            CallbackOutcome = "ERROR"
)

// CallbackLogEntry is the audit record of one provider callback delivery.
// Deliveries are at-least-once, so several entries may share a merchant reference.
type CallbackLogEntry struct {
	ID                string
	MerchantReference string
	ResultCode        *int
	Payload           []byte
	Outcome           CallbackOutcome
	ReceivedAt        time.Time
	ProcessedAt       *time.Time
}

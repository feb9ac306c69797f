package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionResolvedEvent is published once per session when it reaches a terminal status.
type SessionResolvedEvent struct {
	MerchantReference  string          `json:"merchant_reference"`
	SubjectID          string          `json:"subject_id"`
	Amount             decimal.Decimal `json:"amount"`
	Status             SessionStatus   `json:"status"`
	ReceiptNumber      string          `json:"receipt_number,omitempty"`
	SettledAt          *time.Time      `json:"settled_at,omitempty"`
	FailureReason      FailureReason   `json:"failure_reason,omitempty"`
	FailureDescription string          `json:"failure_description,omitempty"`
	ResolvedAt         time.Time       `json:"resolved_at"`
}

func NewSessionResolvedEvent(s *PaymentSession) SessionResolvedEvent {
	event := SessionResolvedEvent{
		MerchantReference:  s.MerchantReference,
		SubjectID:          s.SubjectID,
		Amount:             s.Amount,
		Status:             s.Status,
		FailureReason:      s.FailureReason,
		FailureDescription: s.FailureDescription,
	}
	if s.ResolvedAt != nil {
		event.ResolvedAt = *s.ResolvedAt
	}
	if s.Receipt != nil {
		settledAt := s.Receipt.SettledAt
		event.ReceiptNumber = s.Receipt.ReceiptNumber
		event.SettledAt = &settledAt
	}
	return event
}

// StatusView rebuilds the polling view carried by the event.
func (e SessionResolvedEvent) StatusView() StatusView {
	resolvedAt := e.ResolvedAt
	view := StatusView{
		MerchantReference: e.MerchantReference,
		Status:            QueryStatus(e.Status),
		Amount:            e.Amount,
		ResolvedAt:        &resolvedAt,
	}
	if e.Status == SessionStatusSuccess {
		receipt := &Receipt{ReceiptNumber: e.ReceiptNumber}
		if e.SettledAt != nil {
			receipt.SettledAt = *e.SettledAt
		}
		view.Receipt = receipt
		return view
	}
	view.FailureReason = e.FailureReason
	view.FailureDescription = e.FailureDescription
	return view
}

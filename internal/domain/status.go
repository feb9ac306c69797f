package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QueryStatus is what a polling client sees. It extends SessionStatus with not_found.
type QueryStatus string

const (
	QueryStatusPending  QueryStatus = "pending"
	QueryStatusSuccess  QueryStatus = "success"
	QueryStatusFailed   QueryStatus = "failed"
	QueryStatusNotFound QueryStatus = "not_found"
)

func (s QueryStatus) IsTerminal() bool {
	return s == QueryStatusSuccess || s == QueryStatusFailed
}

// StatusView is the read model served to polling clients.
type StatusView struct {
	MerchantReference  string          `json:"merchantReference"`
	Status             QueryStatus     `json:"status"`
	Amount             decimal.Decimal `json:"amount"`
	Receipt            *Receipt        `json:"receipt,omitempty"`
	FailureReason      FailureReason   `json:"failureReason,omitempty"`
	FailureDescription string          `json:"failureDescription,omitempty"`
	ResolvedAt         *time.Time      `json:"resolvedAt,omitempty"`
}

func (v StatusView) IsTerminal() bool {
	return v.Status.IsTerminal()
}

func NotFoundView(merchantReference string) StatusView {
	return StatusView{MerchantReference: merchantReference, Status: QueryStatusNotFound}
}

// NewStatusView exposes terminal fields only once the session is terminal.
func NewStatusView(s *PaymentSession) StatusView {
	view := StatusView{
		MerchantReference: s.MerchantReference,
		Status:            QueryStatus(s.Status),
		Amount:            s.Amount,
	}
	switch s.Status {
	case SessionStatusSuccess:
		if s.Receipt != nil {
			r := *s.Receipt
			view.Receipt = &r
		}
		view.ResolvedAt = s.ResolvedAt
	case SessionStatusFailed:
		view.FailureReason = s.FailureReason
		view.FailureDescription = s.FailureDescription
		view.ResolvedAt = s.ResolvedAt
	}
	return view
}

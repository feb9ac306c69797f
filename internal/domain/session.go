package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionStatusPending SessionStatus = "pending"
	SessionStatusSuccess SessionStatus = "success"
	SessionStatusFailed  SessionStatus = "failed"
)

func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusSuccess || s == SessionStatusFailed
}

func (s SessionStatus) Valid() bool {
	return s == SessionStatusPending || s.IsTerminal()
}

// IsValidTransition reports whether a session may move from one status to another.
// Only pending sessions move, and only to a terminal status.
func IsValidTransition(from, to SessionStatus) bool {
	return from == SessionStatusPending && to.IsTerminal()
}

type FailureReason string

const (
	FailureReasonProviderDeclined FailureReason = "provider-declined"
	FailureReasonUserCancelled    FailureReason = "user-cancelled"
	FailureReasonTimeout          FailureReason = "timeout"
	FailureReasonInternalError    FailureReason = "internal-error"
)

type LineItem struct {
	ItemID      string          `json:"itemId"`
	Description string          `json:"description"`
	UnitFare    decimal.Decimal `json:"unitFare"`
	Quantity    int             `json:"quantity"`
}

type Receipt struct {
	ReceiptNumber string              `json:"receiptNumber"`
	SettledAt     time.Time           `json:"settledAt"`
	PaidAmount    decimal.NullDecimal `json:"paidAmount,omitempty"`
	PaidBy        string              `json:"paidBy,omitempty"`
}

// PaymentSession tracks one push-payment attempt, keyed by the provider's merchant reference.
type PaymentSession struct {
	MerchantReference  string
	ProviderRequestID  string
	SubjectID          string
	PayerContact       string
	LineItems          []LineItem
	Amount             decimal.Decimal
	Status             SessionStatus
	Receipt            *Receipt
	FailureReason      FailureReason
	FailureDescription string
	ResultCode         *int
	CreatedAt          time.Time
	ResolvedAt         *time.Time
}

func NewPaymentSession(merchantReference, providerRequestID, subjectID, payerContact string, items []LineItem, amount decimal.Decimal, now time.Time) (*PaymentSession, error) {
	if strings.TrimSpace(merchantReference) == "" {
		return nil, fmt.Errorf("%w: merchant reference is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(subjectID) == "" || strings.TrimSpace(payerContact) == "" {
		return nil, fmt.Errorf("%w: subject and payer contact are required", ErrInvalidRequest)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one line item is required", ErrInvalidRequest)
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	lineItems := make([]LineItem, len(items))
	copy(lineItems, items)

	return &PaymentSession{
		MerchantReference: merchantReference,
		ProviderRequestID: providerRequestID,
		SubjectID:         subjectID,
		PayerContact:      payerContact,
		LineItems:         lineItems,
		Amount:            amount,
		Status:            SessionStatusPending,
		CreatedAt:         now,
	}, nil
}

// Resolution is the terminal outcome applied to a pending session.
type Resolution struct {
	Status             SessionStatus
	Receipt            *Receipt
	FailureReason      FailureReason
	FailureDescription string
	ResultCode         *int
	ResolvedAt         time.Time
}

func (r Resolution) Validate() error {
	switch r.Status {
	case SessionStatusSuccess:
		if r.Receipt == nil || r.Receipt.ReceiptNumber == "" {
			return fmt.Errorf("success resolution requires a receipt")
		}
		if r.FailureReason != "" {
			return fmt.Errorf("success resolution cannot carry a failure reason")
		}
	case SessionStatusFailed:
		if r.FailureReason == "" {
			return fmt.Errorf("failed resolution requires a failure reason")
		}
		if r.Receipt != nil {
			return fmt.Errorf("failed resolution cannot carry a receipt")
		}
	default:
		return fmt.Errorf("resolution status %q is not terminal", r.Status)
	}
	if r.ResolvedAt.IsZero() {
		return fmt.Errorf("resolution requires a resolution time")
	}
	return nil
}

// Resolve applies a terminal outcome. It fails with ErrSessionAlreadyResolved
// when the session has left pending.
func (s *PaymentSession) Resolve(res Resolution) error {
	if err := res.Validate(); err != nil {
		return err
	}
	if !IsValidTransition(s.Status, res.Status) {
		return ErrSessionAlreadyResolved
	}

	resolvedAt := res.ResolvedAt
	s.Status = res.Status
	s.ResolvedAt = &resolvedAt
	s.ResultCode = res.ResultCode
	if res.Status == SessionStatusSuccess {
		receipt := *res.Receipt
		s.Receipt = &receipt
		return nil
	}
	s.FailureReason = res.FailureReason
	s.FailureDescription = res.FailureDescription
	return nil
}

// Clone returns a deep copy safe to hand out of a store.
func (s *PaymentSession) Clone() *PaymentSession {
	c := *s
	c.LineItems = make([]LineItem, len(s.LineItems))
	copy(c.LineItems, s.LineItems)
	if s.Receipt != nil {
		r := *s.Receipt
		c.Receipt = &r
	}
	if s.ResolvedAt != nil {
		t := *s.ResolvedAt
		c.ResolvedAt = &t
	}
	if s.ResultCode != nil {
		code := *s.ResultCode
		c.ResultCode = &code
	}
	return &c
}

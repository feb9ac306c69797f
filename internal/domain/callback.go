package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResultCode is the provider's outcome code for a push-payment attempt.
type ResultCode int

const (
	ResultCodeSuccess            ResultCode = 0
	ResultCodeInsufficientFunds  ResultCode = 1
	ResultCodeTransactionExpired ResultCode = 1019
	ResultCodeUserCancelled      ResultCode = 1032
	ResultCodePayerUnreachable   ResultCode = 1037
	ResultCodeInvalidPIN         ResultCode = 2001
)

func (c ResultCode) Succeeded() bool {
	return c == ResultCodeSuccess
}

// FailureReason maps a non-success code onto the session failure taxonomy.
func (c ResultCode) FailureReason() FailureReason {
	switch c {
	case ResultCodeUserCancelled:
		return FailureReasonUserCancelled
	case ResultCodePayerUnreachable, ResultCodeTransactionExpired:
		return FailureReasonTimeout
	default:
		return FailureReasonProviderDeclined
	}
}

// CallbackResult is a provider callback that passed boundary validation.
// Success results always carry a receipt number.
type CallbackResult struct {
	MerchantReference string
	ProviderRequestID string
	ResultCode        ResultCode
	ResultDescription string

	ReceiptNumber   string
	PaidAmount      decimal.NullDecimal
	TransactionTime *time.Time
	PaidBy          string

	// Metadata holds every name/value pair the provider sent, stringified.
	Metadata map[string]string
}

// Resolution converts the callback into the terminal outcome for its session.
// receivedAt stands in for the settlement time when the provider omits one.
func (c CallbackResult) Resolution(receivedAt time.Time) Resolution {
	code := int(c.ResultCode)
	if c.ResultCode.Succeeded() {
		settledAt := receivedAt
		if c.TransactionTime != nil {
			settledAt = *c.TransactionTime
		}
		return Resolution{
			Status: SessionStatusSuccess,
			Receipt: &Receipt{
				ReceiptNumber: c.ReceiptNumber,
				SettledAt:     settledAt,
				PaidAmount:    c.PaidAmount,
				PaidBy:        c.PaidBy,
			},
			ResultCode: &code,
			ResolvedAt: receivedAt,
		}
	}
	return Resolution{
		Status:             SessionStatusFailed,
		FailureReason:      c.ResultCode.FailureReason(),
		FailureDescription: c.ResultDescription,
		ResultCode:         &code,
		ResolvedAt:         receivedAt,
	}
}

package domain

import "github.com/shopspring/decimal"

// PushRequest asks the provider to prompt the payer's phone for a payment.
type PushRequest struct {
	PayerContact     string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

// PushResult identifies the pending provider transaction.
// MerchantReference is the key every later callback carries.
type PushResult struct {
	MerchantReference string
	ProviderRequestID string
	CustomerMessage   string
}

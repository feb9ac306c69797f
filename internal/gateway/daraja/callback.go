package daraja

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"farepay/internal/domain"
)

const (
	itemReceiptNumber   = "MpesaReceiptNumber"
	itemAmount          = "Amount"
	itemTransactionDate = "TransactionDate"
	itemPhoneNumber     = "PhoneNumber"
)

type callbackEnvelope struct {
	Body *struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string       `json:"MerchantRequestID"`
	CheckoutRequestID string       `json:"CheckoutRequestID"`
	ResultCode        *json.Number `json:"ResultCode"`
	ResultDesc        string       `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []metadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type metadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// ParseCallback validates an STK callback body. Every failure wraps
// domain.ErrMalformedCallback; a result that passes always names its session.
func ParseCallback(body []byte) (domain.CallbackResult, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.CallbackResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedCallback, err)
	}
	if env.Body == nil || env.Body.StkCallback == nil {
		return domain.CallbackResult{}, fmt.Errorf("%w: missing Body.stkCallback", domain.ErrMalformedCallback)
	}
	cb := env.Body.StkCallback

	reference := strings.TrimSpace(cb.CheckoutRequestID)
	if reference == "" {
		return domain.CallbackResult{}, fmt.Errorf("%w: missing CheckoutRequestID", domain.ErrMalformedCallback)
	}
	if cb.ResultCode == nil {
		return domain.CallbackResult{}, fmt.Errorf("%w: missing ResultCode for %s", domain.ErrMalformedCallback, reference)
	}
	code, err := cb.ResultCode.Int64()
	if err != nil {
		return domain.CallbackResult{}, fmt.Errorf("%w: ResultCode %q for %s", domain.ErrMalformedCallback, cb.ResultCode.String(), reference)
	}

	result := domain.CallbackResult{
		MerchantReference: reference,
		ProviderRequestID: cb.MerchantRequestID,
		ResultCode:        domain.ResultCode(code),
		ResultDescription: cb.ResultDesc,
		Metadata:          map[string]string{},
	}
	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			if item.Name == "" {
				continue
			}
			result.Metadata[item.Name] = metadataValue(item.Value)
		}
	}

	if !result.ResultCode.Succeeded() {
		return result, nil
	}

	result.ReceiptNumber = result.Metadata[itemReceiptNumber]
	if result.ReceiptNumber == "" {
		return domain.CallbackResult{}, &domain.ReceiptMissingError{MerchantReference: reference}
	}
	if v := result.Metadata[itemAmount]; v != "" {
		if amount, err := decimal.NewFromString(v); err == nil {
			result.PaidAmount = decimal.NewNullDecimal(amount)
		}
	}
	if v := result.Metadata[itemTransactionDate]; v != "" {
		if t, err := time.ParseInLocation(timestampLayout, v, EastAfricaTime); err == nil {
			result.TransactionTime = &t
		}
	}
	result.PaidBy = result.Metadata[itemPhoneNumber]
	return result, nil
}

// metadataValue renders a metadata value as text. Numbers keep their literal form
// so long receipt dates and phone numbers do not pass through float64.
func metadataValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return string(raw)
}

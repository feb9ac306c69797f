package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"farepay/internal/domain"
)

// InitiatePaymentRequest is the body of POST /api/pay. A client-sent total is
// not part of the contract and is dropped by the decoder.
type InitiatePaymentRequest struct {
	SubjectID    string            `json:"subjectId"`
	PayerContact string            `json:"payerContact"`
	LineItems    []domain.LineItem `json:"lineItems"`
}

type InitiatePaymentResponse struct {
	MerchantReference string `json:"merchantReference"`
}

// StatusResponse is the body of GET /api/status/{merchantReference}.
// Data is present only for terminal sessions.
type StatusResponse struct {
	Status domain.QueryStatus `json:"status"`
	Data   *StatusData        `json:"data,omitempty"`
}

type StatusData struct {
	MerchantReference  string               `json:"merchantReference"`
	Amount             decimal.Decimal      `json:"amount"`
	Receipt            *domain.Receipt      `json:"receipt,omitempty"`
	FailureReason      domain.FailureReason `json:"failureReason,omitempty"`
	FailureDescription string               `json:"failureDescription,omitempty"`
	ResolvedAt         *time.Time           `json:"resolvedAt,omitempty"`
}

func NewStatusResponse(view domain.StatusView) StatusResponse {
	resp := StatusResponse{Status: view.Status}
	if !view.IsTerminal() {
		return resp
	}
	resp.Data = &StatusData{
		MerchantReference:  view.MerchantReference,
		Amount:             view.Amount,
		Receipt:            view.Receipt,
		FailureReason:      view.FailureReason,
		FailureDescription: view.FailureDescription,
		ResolvedAt:         view.ResolvedAt,
	}
	return resp
}

// View rebuilds the domain view on the client side.
func (r StatusResponse) View(merchantReference string) domain.StatusView {
	view := domain.StatusView{MerchantReference: merchantReference, Status: r.Status}
	if r.Data == nil {
		return view
	}
	view.Amount = r.Data.Amount
	view.Receipt = r.Data.Receipt
	view.FailureReason = r.Data.FailureReason
	view.FailureDescription = r.Data.FailureDescription
	view.ResolvedAt = r.Data.ResolvedAt
	return view
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// CallbackAck is what the provider expects back from every callback delivery.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var AcceptedAck = CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}

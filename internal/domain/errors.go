package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidRequest = errors.New("invalid request")
var ErrInvalidAmount = errors.New("invalid payment amount")
var ErrSessionNotFound = errors.New("payment session not found")
var ErrSessionAlreadyExists = errors.New("payment session already exists")
var ErrSessionAlreadyResolved = errors.New("payment session already resolved")
var ErrMalformedCallback = errors.New("malformed callback")
var ErrInternal = errors.New("internal server error")

// ReceiptMissingError is a success callback without a receipt number. The payer
// may have been charged, so the session needs manual reconciliation.
type ReceiptMissingError struct {
	MerchantReference string
}

func (e *ReceiptMissingError) Error() string {
	return fmt.Sprintf("%s: success for %s without receipt number", ErrMalformedCallback, e.MerchantReference)
}

func (e *ReceiptMissingError) Unwrap() error {
	return ErrMalformedCallback
}

// ErrGateway matches any *GatewayError through errors.Is.
var ErrGateway = errors.New("payment gateway error")

const genericGatewayMessage = "Payment request could not be sent. Please try again."

// GatewayError is returned when the push-payment provider is unreachable or rejects the push.
// Message is the provider's own text when it sent one.
type GatewayError struct {
	Message string
	Err     error
}

func NewGatewayError(message string, err error) *GatewayError {
	return &GatewayError{Message: message, Err: err}
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %s: %v", e.PublicMessage(), e.Err)
	}
	return fmt.Sprintf("payment gateway: %s", e.PublicMessage())
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

// PublicMessage is safe to return to the caller.
func (e *GatewayError) PublicMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return genericGatewayMessage
}

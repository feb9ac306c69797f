package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
	OutboxStatusFailed  OutboxMessageStatus = "FAILED"
)

const (
	AggregateTypePaymentSession = "payment_session"
	MessageTypeSessionResolved  = "session.resolved"
)

// OutboxMessage is written in the same transaction as the state change it announces.
type OutboxMessage struct {
	ID            string
	AggregateID   string
	AggregateType string
	MessageType   string
	Topic         string
	Key           string
	Payload       []byte
	Status        OutboxMessageStatus
	CreatedAt     time.Time
	SentAt        *time.Time
}

func NewSessionResolvedMessage(id, topic string, session *PaymentSession) (*OutboxMessage, error) {
	payload, err := json.Marshal(NewSessionResolvedEvent(session))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session resolved event for %s: %w", session.MerchantReference, err)
	}
	return &OutboxMessage{
		ID:            id,
		AggregateID:   session.MerchantReference,
		AggregateType: AggregateTypePaymentSession,
		MessageType:   MessageTypeSessionResolved,
		Topic:         topic,
		Key:           session.MerchantReference,
		Payload:       payload,
		Status:        OutboxStatusPending,
		CreatedAt:     *session.ResolvedAt,
	}, nil
}

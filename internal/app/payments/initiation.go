package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"farepay/internal/domain"
	"farepay/internal/repository/session_repo"
)

const (
	pushDescription = "Fare payment"
	persistTimeout  = 5 * time.Second
)

type PaymentGateway interface {
	InitiatePush(ctx context.Context, req domain.PushRequest) (*domain.PushResult, error)
}

type AmountCalculator interface {
	Total(items []domain.LineItem) (decimal.Decimal, error)
}

type InitiationService interface {
	Initiate(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResponse, error)
}

type initiationService struct {
	calculator AmountCalculator
	gateway    PaymentGateway
	store      session_repo.SessionRepository
	now        func() time.Time
	logger     *zap.Logger
}

func NewInitiationService(
	calculator AmountCalculator,
	gateway PaymentGateway,
	store session_repo.SessionRepository,
	logger *zap.Logger,
) InitiationService {
	return &initiationService{
		calculator: calculator,
		gateway:    gateway,
		store:      store,
		now:        time.Now,
		logger:     logger,
	}
}

// Initiate sends exactly one push prompt and, when the provider accepts it, stores
// the pending session before returning its merchant reference.
func (s *initiationService) Initiate(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	subjectID := strings.TrimSpace(req.SubjectID)
	payerContact := strings.TrimSpace(req.PayerContact)
	if subjectID == "" || payerContact == "" {
		return nil, fmt.Errorf("%w: subjectId and payerContact are required", domain.ErrInvalidRequest)
	}
	if len(req.LineItems) == 0 {
		return nil, fmt.Errorf("%w: at least one line item is required", domain.ErrInvalidRequest)
	}

	amount, err := s.calculator.Total(req.LineItems)
	if err != nil {
		return nil, err
	}

	push, err := s.gateway.InitiatePush(ctx, domain.PushRequest{
		PayerContact:     payerContact,
		Amount:           amount,
		AccountReference: subjectID,
		Description:      pushDescription,
	})
	if err != nil {
		s.logger.Warn("Push request failed, no session created",
			zap.String("subject_id", subjectID),
			zap.String("amount", amount.String()),
			zap.Error(err))
		if errors.Is(err, domain.ErrInvalidRequest) || errors.Is(err, domain.ErrGateway) {
			return nil, err
		}
		return nil, domain.NewGatewayError("", err)
	}

	session, err := domain.NewPaymentSession(push.MerchantReference, push.ProviderRequestID, subjectID, payerContact, req.LineItems, amount, s.now())
	if err != nil {
		s.logAnomaly(push.MerchantReference, subjectID, amount, err)
		return nil, fmt.Errorf("%w: invalid session for %q", domain.ErrInternal, push.MerchantReference)
	}

	// The prompt is already on the payer's phone, so the write must not be
	// abandoned because the caller went away.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.store.Create(persistCtx, session); err != nil {
		s.logAnomaly(push.MerchantReference, subjectID, amount, err)
		return nil, fmt.Errorf("%w: failed to store session %s", domain.ErrInternal, push.MerchantReference)
	}

	s.logger.Info("Payment session created",
		zap.String("merchant_reference", session.MerchantReference),
		zap.String("subject_id", subjectID),
		zap.String("amount", amount.String()))

	return &InitiatePaymentResponse{MerchantReference: session.MerchantReference}, nil
}

func (s *initiationService) logAnomaly(merchantReference, subjectID string, amount decimal.Decimal, err error) {
	s.logger.Error("Push accepted by provider but session was not stored, manual reconciliation required",
		zap.String("anomaly", "storage-failure-after-push"),
		zap.String("merchant_reference", merchantReference),
		zap.String("subject_id", subjectID),
		zap.String("amount", amount.String()),
		zap.Error(err))
}

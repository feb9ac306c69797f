package payments

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"farepay/internal/domain"
	"farepay/internal/repository/callback_repo"
	"farepay/internal/repository/session_repo"
	"farepay/internal/util"
)

const reconcileTimeout = 10 * time.Second

// CallbackReconciler applies provider results to sessions. It never returns an
// error: the provider is acknowledged whatever happens here.
type CallbackReconciler interface {
	Reconcile(ctx context.Context, result domain.CallbackResult, raw []byte) domain.CallbackOutcome
	RejectMalformed(ctx context.Context, raw []byte, cause error)
}

type callbackReconciler struct {
	store  session_repo.SessionRepository
	audit  callback_repo.CallbackRepository
	newID  util.IDGenerator
	now    func() time.Time
	logger *zap.Logger
}

func NewCallbackReconciler(store session_repo.SessionRepository, audit callback_repo.CallbackRepository, logger *zap.Logger) CallbackReconciler {
	return &callbackReconciler{
		store:  store,
		audit:  audit,
		newID:  util.GenerateUUID,
		now:    time.Now,
		logger: logger,
	}
}

func (r *callbackReconciler) Reconcile(ctx context.Context, result domain.CallbackResult, raw []byte) domain.CallbackOutcome {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()

	receivedAt := r.now()
	code := int(result.ResultCode)
	entryID := r.newID()
	recorded := r.record(ctx, &domain.CallbackLogEntry{
		ID:                entryID,
		MerchantReference: result.MerchantReference,
		ResultCode:        &code,
		Payload:           raw,
		Outcome:           domain.CallbackOutcomeReceived,
		ReceivedAt:        receivedAt,
	})

	fields := []zap.Field{
		zap.String("merchant_reference", result.MerchantReference),
		zap.Int("result_code", code),
	}

	var outcome domain.CallbackOutcome
	session, err := r.store.Resolve(ctx, result.MerchantReference, result.Resolution(receivedAt))
	switch {
	case err == nil:
		outcome = domain.CallbackOutcomeApplied
		r.logger.Info("Payment session resolved", append(fields, zap.String("status", string(session.Status)))...)
		r.checkPaidAmount(session, result, fields)
	case errors.Is(err, domain.ErrSessionNotFound):
		outcome = domain.CallbackOutcomeUnknownReference
		r.logger.Error("Callback for unknown merchant reference",
			append(fields, zap.String("anomaly", "unknown-merchant-reference"))...)
	case errors.Is(err, domain.ErrSessionAlreadyResolved):
		outcome = domain.CallbackOutcomeDuplicate
		r.logger.Info("Callback for already resolved session ignored", fields...)
	default:
		outcome = domain.CallbackOutcomeError
		r.logger.Error("Failed to apply callback", append(fields, zap.Error(err))...)
	}

	if recorded {
		if err := r.audit.UpdateOutcome(ctx, entryID, outcome, r.now()); err != nil {
			r.logger.Warn("Failed to update callback audit entry", append(fields, zap.Error(err))...)
		}
	}
	return outcome
}

func (r *callbackReconciler) RejectMalformed(ctx context.Context, raw []byte, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()

	now := r.now()
	entry := &domain.CallbackLogEntry{
		ID:          r.newID(),
		Payload:     raw,
		Outcome:     domain.CallbackOutcomeMalformed,
		ReceivedAt:  now,
		ProcessedAt: &now,
	}

	var missing *domain.ReceiptMissingError
	if errors.As(cause, &missing) {
		entry.MerchantReference = missing.MerchantReference
		r.logger.Error("Success callback without receipt, manual reconciliation required",
			zap.String("anomaly", "success-without-receipt"),
			zap.String("merchant_reference", missing.MerchantReference),
			zap.Error(cause))
	} else {
		r.logger.Warn("Malformed callback rejected", zap.Error(cause), zap.Int("payload_bytes", len(raw)))
	}
	r.record(ctx, entry)
}

func (r *callbackReconciler) record(ctx context.Context, entry *domain.CallbackLogEntry) bool {
	if err := r.audit.Record(ctx, entry); err != nil {
		r.logger.Warn("Failed to record callback audit entry",
			zap.String("merchant_reference", entry.MerchantReference),
			zap.Error(err))
		return false
	}
	return true
}

// checkPaidAmount only logs. The stored amount is authoritative and is never
// re-derived from the provider's figure.
func (r *callbackReconciler) checkPaidAmount(session *domain.PaymentSession, result domain.CallbackResult, fields []zap.Field) {
	if session.Status != domain.SessionStatusSuccess || !result.PaidAmount.Valid {
		return
	}
	if !result.PaidAmount.Decimal.Equal(session.Amount) {
		r.logger.Warn("Provider paid amount differs from session amount",
			append(fields,
				zap.String("anomaly", "paid-amount-mismatch"),
				zap.String("amount", session.Amount.String()),
				zap.String("paid_amount", result.PaidAmount.Decimal.String()))...)
	}
}

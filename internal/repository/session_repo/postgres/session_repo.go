package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"farepay/internal/domain"
	"farepay/internal/repository/outbox_repo"
	"farepay/internal/util"
)

const sessionColumns = `merchant_reference, provider_request_id, subject_id, payer_contact, line_items, amount, status,
		receipt_number, settled_at, paid_amount, paid_by, failure_reason, failure_description, result_code,
		created_at, resolved_at`

type pgSessionRepository struct {
	db          *sql.DB
	outboxRepo  outbox_repo.OutboxRepository
	outboxTopic string
	newID       util.IDGenerator
	logger      *zap.Logger
}

// NewSessionRepository returns a store whose Resolve also writes a session.resolved
// outbox message for outboxTopic in the same transaction.
func NewSessionRepository(db *sql.DB, outboxRepo outbox_repo.OutboxRepository, outboxTopic string, l *zap.Logger) *pgSessionRepository {
	return &pgSessionRepository{
		db:          db,
		outboxRepo:  outboxRepo,
		outboxTopic: outboxTopic,
		newID:       util.GenerateUUID,
		logger:      l,
	}
}

func (r *pgSessionRepository) Create(ctx context.Context, session *domain.PaymentSession) error {
	lineItems, err := json.Marshal(session.LineItems)
	if err != nil {
		return fmt.Errorf("failed to marshal line items for %s: %w", session.MerchantReference, err)
	}

	query := `
		INSERT INTO payment_sessions (merchant_reference, provider_request_id, subject_id, payer_contact, line_items, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		session.MerchantReference,
		session.ProviderRequestID,
		session.SubjectID,
		session.PayerContact,
		lineItems,
		session.Amount,
		string(session.Status),
		session.CreatedAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrSessionAlreadyExists
		}
		return fmt.Errorf("failed to create payment session %s: %w", session.MerchantReference, err)
	}
	return nil
}

func (r *pgSessionRepository) GetByMerchantReference(ctx context.Context, merchantReference string) (*domain.PaymentSession, error) {
	return r.getTx(ctx, r.db, merchantReference)
}

func (r *pgSessionRepository) getTx(ctx context.Context, querier domain.Querier, merchantReference string) (*domain.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE merchant_reference = $1`
	session, err := scanSession(querier.QueryRowContext(ctx, query, merchantReference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get payment session %s: %w", merchantReference, err)
	}
	return session, nil
}

func (r *pgSessionRepository) Resolve(ctx context.Context, merchantReference string, resolution domain.Resolution) (session *domain.PaymentSession, err error) {
	if err := resolution.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resolution for %s: %w", merchantReference, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic while resolving payment session, rolling back", zap.String("merchant_reference", merchantReference))
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				session = nil
				err = fmt.Errorf("failed to commit resolution for %s: %w", merchantReference, err)
			}
		}
	}()

	var (
		receiptNumber sql.NullString
		settledAt     sql.NullTime
		paidAmount    decimal.NullDecimal
		paidBy        sql.NullString
		failure       sql.NullString
		description   sql.NullString
		resultCode    sql.NullInt64
	)
	if resolution.Receipt != nil {
		receiptNumber = sql.NullString{String: resolution.Receipt.ReceiptNumber, Valid: true}
		settledAt = sql.NullTime{Time: resolution.Receipt.SettledAt, Valid: !resolution.Receipt.SettledAt.IsZero()}
		paidAmount = resolution.Receipt.PaidAmount
		paidBy = sql.NullString{String: resolution.Receipt.PaidBy, Valid: resolution.Receipt.PaidBy != ""}
	}
	if resolution.FailureReason != "" {
		failure = sql.NullString{String: string(resolution.FailureReason), Valid: true}
		description = sql.NullString{String: resolution.FailureDescription, Valid: true}
	}
	if resolution.ResultCode != nil {
		resultCode = sql.NullInt64{Int64: int64(*resolution.ResultCode), Valid: true}
	}

	// The status predicate is the compare-and-set: duplicate or out-of-order
	// deliveries match zero rows once the first one has committed.
	query := `
		UPDATE payment_sessions
		SET status = $2, receipt_number = $3, settled_at = $4, paid_amount = $5, paid_by = $6,
			failure_reason = $7, failure_description = $8, result_code = $9, resolved_at = $10
		WHERE merchant_reference = $1 AND status = $11
		RETURNING ` + sessionColumns
	session, err = scanSession(tx.QueryRowContext(ctx, query,
		merchantReference,
		string(resolution.Status),
		receiptNumber,
		settledAt,
		paidAmount,
		paidBy,
		failure,
		description,
		resultCode,
		resolution.ResolvedAt,
		string(domain.SessionStatusPending),
	))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to resolve payment session %s: %w", merchantReference, err)
		}
		if _, getErr := r.getTx(ctx, tx, merchantReference); getErr != nil {
			err = getErr
			return nil, err
		}
		err = domain.ErrSessionAlreadyResolved
		return nil, err
	}

	msg, err := domain.NewSessionResolvedMessage(r.newID(), r.outboxTopic, session)
	if err != nil {
		return nil, err
	}
	if err = r.outboxRepo.CreateMessageTx(ctx, tx, msg); err != nil {
		return nil, fmt.Errorf("failed to enqueue resolved event for %s: %w", merchantReference, err)
	}

	r.logger.Debug("Payment session resolved in transaction",
		zap.String("merchant_reference", merchantReference),
		zap.String("status", string(session.Status)))
	return session, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.PaymentSession, error) {
	var (
		s             domain.PaymentSession
		lineItems     []byte
		status        string
		receiptNumber sql.NullString
		settledAt     sql.NullTime
		paidAmount    decimal.NullDecimal
		paidBy        sql.NullString
		failure       sql.NullString
		description   sql.NullString
		resultCode    sql.NullInt64
		resolvedAt    sql.NullTime
	)
	err := row.Scan(
		&s.MerchantReference,
		&s.ProviderRequestID,
		&s.SubjectID,
		&s.PayerContact,
		&lineItems,
		&s.Amount,
		&status,
		&receiptNumber,
		&settledAt,
		&paidAmount,
		&paidBy,
		&failure,
		&description,
		&resultCode,
		&s.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(lineItems, &s.LineItems); err != nil {
		return nil, fmt.Errorf("failed to unmarshal line items for %s: %w", s.MerchantReference, err)
	}
	s.Status = domain.SessionStatus(status)
	if !s.Status.Valid() {
		return nil, fmt.Errorf("payment session %s has unknown status %q", s.MerchantReference, status)
	}
	if receiptNumber.Valid {
		s.Receipt = &domain.Receipt{
			ReceiptNumber: receiptNumber.String,
			SettledAt:     settledAt.Time,
			PaidAmount:    paidAmount,
			PaidBy:        paidBy.String,
		}
	}
	if failure.Valid {
		s.FailureReason = domain.FailureReason(failure.String)
		s.FailureDescription = description.String
	}
	if resultCode.Valid {
		code := int(resultCode.Int64)
		s.ResultCode = &code
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		s.ResolvedAt = &t
	}
	return &s, nil
}

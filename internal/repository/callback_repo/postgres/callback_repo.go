package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"farepay/internal/domain"
	"farepay/internal/repository/callback_repo"
)

type CallbackRepository struct {
	db *sql.DB
}

func NewCallbackRepository(db *sql.DB) *CallbackRepository {
	return &CallbackRepository{db: db}
}

func (r *CallbackRepository) Record(ctx context.Context, entry *domain.CallbackLogEntry) error {
	query := `
		INSERT INTO callback_log (id, merchant_reference, result_code, payload, outcome, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var merchantReference sql.NullString
	if entry.MerchantReference != "" {
		merchantReference = sql.NullString{String: entry.MerchantReference, Valid: true}
	}
	var resultCode sql.NullInt64
	if entry.ResultCode != nil {
		resultCode = sql.NullInt64{Int64: int64(*entry.ResultCode), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		merchantReference,
		resultCode,
		entry.Payload,
		string(entry.Outcome),
		entry.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record callback %s: %w", entry.ID, err)
	}
	return nil
}

func (r *CallbackRepository) UpdateOutcome(ctx context.Context, id string, outcome domain.CallbackOutcome, processedAt time.Time) error {
	query := `
		UPDATE callback_log
		SET outcome = $1, processed_at = $2
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, string(outcome), processedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update callback outcome %s: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for callback update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", callback_repo.ErrEntryNotFound, id)
	}
	return nil
}

func (r *CallbackRepository) ListByMerchantReference(ctx context.Context, merchantReference string) ([]domain.CallbackLogEntry, error) {
	query := `
		SELECT id, merchant_reference, result_code, payload, outcome, received_at, processed_at
		FROM callback_log
		WHERE merchant_reference = $1
		ORDER BY received_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, merchantReference)
	if err != nil {
		return nil, fmt.Errorf("failed to list callbacks for %s: %w", merchantReference, err)
	}
	defer rows.Close()

	var entries []domain.CallbackLogEntry
	for rows.Next() {
		var (
			entry       domain.CallbackLogEntry
			reference   sql.NullString
			resultCode  sql.NullInt64
			outcome     string
			processedAt sql.NullTime
		)
		if err := rows.Scan(&entry.ID, &reference, &resultCode, &entry.Payload, &outcome, &entry.ReceivedAt, &processedAt); err != nil {
			return nil, fmt.Errorf("failed to scan callback log entry: %w", err)
		}
		entry.MerchantReference = reference.String
		entry.Outcome = domain.CallbackOutcome(outcome)
		if resultCode.Valid {
			code := int(resultCode.Int64)
			entry.ResultCode = &code
		}
		if processedAt.Valid {
			entry.ProcessedAt = &processedAt.Time
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating callback log: %w", err)
	}
	return entries, nil
}

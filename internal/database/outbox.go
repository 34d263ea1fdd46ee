package database

import (
	"context"
	"fmt"
	"time"

	"barberbook/internal/models"
)

const outboxColumns = `id, event_type, barber_id, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) scanOutbox(ctx context.Context, query string, args ...any) ([]models.OutboxEvent, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		err := rows.Scan(
			&e.ID, &e.EventType, &e.BarberID, &e.BookingID, &e.Payload, &e.Status, &e.RetryCount, &e.LastError, &e.CreatedAt, &e.ProcessedAt, &e.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetPendingOutbox returns events that are due for delivery, oldest first.
func (db *DB) GetPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	return db.scanOutbox(ctx,
		`SELECT `+outboxColumns+` FROM outbox
         WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
         ORDER BY id ASC LIMIT ?`,
		db.now(), limit,
	)
}

func (db *DB) GetFailedOutbox(ctx context.Context) ([]models.OutboxEvent, error) {
	return db.scanOutbox(ctx, `SELECT `+outboxColumns+` FROM outbox WHERE status = 'failed' ORDER BY id DESC`)
}

func (db *DB) UpdateOutboxStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := db.now()

	var lastErr *string
	if errMsg != "" {
		lastErr = &errMsg
	}
	if nextRetryAt != nil {
		utc := nextRetryAt.UTC()
		nextRetryAt = &utc
	}

	switch status {
	case models.OutboxRetry:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, lastErr, nextRetryAt, id}
	case models.OutboxCompleted, models.OutboxFailed:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, lastErr, nextRetryAt, now, id}
	default:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, lastErr, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox status: %w", err)
	}
	return nil
}

// PurgeOutbox drops delivered events older than the cutoff.
func (db *DB) PurgeOutbox(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM outbox WHERE status = 'completed' AND processed_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge outbox: %w", err)
	}
	return res.RowsAffected()
}

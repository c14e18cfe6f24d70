package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/logger"
)

func (c *Client) UpsertFreshness(ctx context.Context, r *models.FreshnessRecord) error {
	query := `
		INSERT INTO data_freshness (data_type, last_attempt, last_success, next_scheduled, status,
			records_updated, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(data_type) DO UPDATE SET
			last_attempt = excluded.last_attempt,
			last_success = excluded.last_success,
			next_scheduled = excluded.next_scheduled,
			status = excluded.status,
			records_updated = excluded.records_updated,
			error_message = excluded.error_message
	`

	_, err := c.db.ExecContext(
		ctx,
		query,
		r.DataType,
		toUnix(r.LastAttempt),
		toUnix(r.LastSuccess),
		toUnix(r.NextScheduled),
		r.Status,
		r.RecordsUpdated,
		r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert freshness: %w", err)
	}

	logger.Debug("Freshness updated", zap.String("data_type", r.DataType), zap.String("status", r.Status))
	return nil
}

func (c *Client) GetFreshness(ctx context.Context, dataType string) (*models.FreshnessRecord, error) {
	query := `
		SELECT data_type, last_attempt, last_success, next_scheduled, status, records_updated, error_message
		FROM data_freshness WHERE data_type = ?
	`

	var r models.FreshnessRecord
	var attempt, success, next int64

	err := c.db.QueryRowContext(ctx, query, dataType).Scan(
		&r.DataType,
		&attempt,
		&success,
		&next,
		&r.Status,
		&r.RecordsUpdated,
		&r.ErrorMessage,
	)
	if err != nil {
		return nil, notFound(err, "freshness record")
	}

	r.LastAttempt = fromUnix(attempt)
	r.LastSuccess = fromUnix(success)
	r.NextScheduled = fromUnix(next)
	return &r, nil
}

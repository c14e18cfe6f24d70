package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/apperrors"
	"github.com/golf-qa/backend/pkg/logger"
)

func (c *Client) InsertQueryRecord(ctx context.Context, record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, question, query_type, passage_ids, answer, model,
			input_tokens, output_tokens, total_tokens, cost_usd, latency_ms, feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	passageIDs, err := json.Marshal(record.PassageIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal passage ids: %w", err)
	}

	queryType := record.QueryType
	if queryType == "" {
		queryType = "rules"
	}

	_, err = c.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.Question,
		queryType,
		string(passageIDs),
		record.Answer,
		record.Model,
		record.InputTokens,
		record.OutputTokens,
		record.TotalTokens,
		record.CostUSD,
		record.LatencyMS,
		record.Feedback,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Info("Query recorded",
		zap.String("query_id", record.ID),
		zap.Int("passages", len(record.PassageIDs)),
		zap.Float64("cost_usd", record.CostUSD),
	)

	return nil
}

const queryRecordColumns = `id, question, query_type, passage_ids, answer, model, input_tokens,
	output_tokens, total_tokens, cost_usd, latency_ms, feedback, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanQueryRecord(s scanner) (*models.QueryRecord, error) {
	var r models.QueryRecord
	var passageIDs string
	var createdAt int64

	err := s.Scan(
		&r.ID,
		&r.Question,
		&r.QueryType,
		&passageIDs,
		&r.Answer,
		&r.Model,
		&r.InputTokens,
		&r.OutputTokens,
		&r.TotalTokens,
		&r.CostUSD,
		&r.LatencyMS,
		&r.Feedback,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	decodeJSON(passageIDs, &r.PassageIDs)
	r.CreatedAt = time.Unix(createdAt, 0)
	return &r, nil
}

func (c *Client) GetQueryRecord(ctx context.Context, id string) (*models.QueryRecord, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+queryRecordColumns+` FROM query_history WHERE id = ?`, id)

	record, err := scanQueryRecord(row)
	if err != nil {
		return nil, notFound(err, "query record")
	}
	return record, nil
}

func (c *Client) ListQueryHistory(ctx context.Context, limit int) ([]models.QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT `+queryRecordColumns+` FROM query_history ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	records := make([]models.QueryRecord, 0)
	for rows.Next() {
		r, err := scanQueryRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate query history: %w", err)
	}

	return records, nil
}

// UpdateFeedback sets the feedback flag of a query record. Repeating the same value is a no-op.
func (c *Client) UpdateFeedback(ctx context.Context, id string, value int) error {
	if value < -1 || value > 1 {
		return fmt.Errorf("feedback %d: %w", value, apperrors.ErrInvalidFeedback)
	}

	result, err := c.db.ExecContext(ctx, `UPDATE query_history SET feedback = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("query record %s: %w", id, apperrors.ErrNotFound)
	}

	logger.Info("Feedback stored", zap.String("query_id", id), zap.Int("feedback", value))
	return nil
}

func (c *Client) InsertMetricRecord(ctx context.Context, m *models.MetricRecord) error {
	query := `
		INSERT INTO rag_metrics (query_id, context_relevancy, context_precision, answer_relevancy,
			faithfulness, cosine_similarity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := c.db.ExecContext(
		ctx,
		query,
		m.QueryID,
		m.ContextRelevancy,
		m.ContextPrecision,
		m.AnswerRelevancy,
		m.Faithfulness,
		m.CosineSimilarity,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert metric record: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		m.ID = id
	}
	m.CreatedAt = createdAt

	logger.Debug("RAG metrics stored",
		zap.String("query_id", m.QueryID),
		zap.Float64("context_relevancy", m.ContextRelevancy),
		zap.Float64("faithfulness", m.Faithfulness),
	)

	return nil
}

func (c *Client) GetMetricsForQuery(ctx context.Context, queryID string) ([]models.MetricRecord, error) {
	query := `
		SELECT id, query_id, context_relevancy, context_precision, answer_relevancy,
			faithfulness, cosine_similarity, created_at
		FROM rag_metrics WHERE query_id = ? ORDER BY id
	`

	rows, err := c.db.QueryContext(ctx, query, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	defer rows.Close()

	var metrics []models.MetricRecord
	for rows.Next() {
		var m models.MetricRecord
		var createdAt int64
		err := rows.Scan(&m.ID, &m.QueryID, &m.ContextRelevancy, &m.ContextPrecision,
			&m.AnswerRelevancy, &m.Faithfulness, &m.CosineSimilarity, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		metrics = append(metrics, m)
	}

	return metrics, rows.Err()
}

func (c *Client) InsertAPIUsage(ctx context.Context, usage *models.APIUsage) error {
	query := `
		INSERT INTO api_usage (api_name, operation, tokens_input, tokens_output, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	createdAt := usage.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := c.db.ExecContext(
		ctx,
		query,
		usage.APIName,
		usage.Operation,
		usage.TokensInput,
		usage.TokensOutput,
		usage.CostUSD,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert api usage: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		usage.ID = id
	}

	return nil
}

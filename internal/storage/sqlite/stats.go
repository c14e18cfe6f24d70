package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/golf-qa/backend/internal/storage/models"
)

func (c *Client) GetQueryStats(ctx context.Context, since time.Time) (*models.QueryStats, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(AVG(latency_ms), 0),
			COALESCE(SUM(cost_usd), 0),
			COALESCE(SUM(CASE WHEN feedback = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN feedback = -1 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(total_tokens), 0),
			COALESCE(SUM(total_tokens), 0)
		FROM query_history WHERE created_at >= ?
	`

	stats := &models.QueryStats{QueriesByType: map[string]int{}}

	err := c.db.QueryRowContext(ctx, query, since.Unix()).Scan(
		&stats.TotalQueries,
		&stats.AvgLatencyMS,
		&stats.TotalCostUSD,
		&stats.PositiveCount,
		&stats.NegativeCount,
		&stats.AvgTotalTokens,
		&stats.TotalTokensUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get query stats: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT query_type, COUNT(*) FROM query_history WHERE created_at >= ? GROUP BY query_type`,
		since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get query types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var queryType string
		var count int
		if err := rows.Scan(&queryType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		stats.QueriesByType[queryType] = count
	}

	return stats, rows.Err()
}

func (c *Client) GetAvgRAGMetrics(ctx context.Context, since time.Time) (*models.MetricAverages, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(AVG(context_relevancy), 0),
			COALESCE(AVG(context_precision), 0),
			COALESCE(AVG(answer_relevancy), 0),
			COALESCE(AVG(faithfulness), 0),
			COALESCE(AVG(cosine_similarity), 0)
		FROM rag_metrics WHERE created_at >= ?
	`

	var avg models.MetricAverages
	err := c.db.QueryRowContext(ctx, query, since.Unix()).Scan(
		&avg.Count,
		&avg.ContextRelevancy,
		&avg.ContextPrecision,
		&avg.AnswerRelevancy,
		&avg.Faithfulness,
		&avg.CosineSimilarity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get rag metrics: %w", err)
	}

	return &avg, nil
}

func (c *Client) GetAPICosts(ctx context.Context, since time.Time) ([]models.APICost, error) {
	query := `
		SELECT api_name, COUNT(*), COALESCE(SUM(tokens_input), 0), COALESCE(SUM(tokens_output), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM api_usage WHERE created_at >= ?
		GROUP BY api_name ORDER BY api_name
	`

	rows, err := c.db.QueryContext(ctx, query, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get api costs: %w", err)
	}
	defer rows.Close()

	costs := make([]models.APICost, 0)
	for rows.Next() {
		var cost models.APICost
		if err := rows.Scan(&cost.APIName, &cost.Calls, &cost.TokensInput, &cost.TokensOutput, &cost.CostUSD); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		costs = append(costs, cost)
	}

	return costs, rows.Err()
}

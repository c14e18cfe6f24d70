package sqlite

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/logger"
)

// UpsertPassage inserts a passage or replaces its content in place. The row keeps its rowid,
// so ListPassages order is stable across refreshes.
func (c *Client) UpsertPassage(ctx context.Context, p *models.Passage) error {
	query := `
		INSERT INTO passages (id, rule_id, section, title, content, effective_date, source_url,
			content_hash, embedding, embedding_model, last_refreshed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rule_id = excluded.rule_id,
			section = excluded.section,
			title = excluded.title,
			content = excluded.content,
			effective_date = excluded.effective_date,
			source_url = excluded.source_url,
			content_hash = excluded.content_hash,
			embedding = excluded.embedding,
			embedding_model = excluded.embedding_model,
			last_refreshed = excluded.last_refreshed
	`

	_, err := c.db.ExecContext(
		ctx,
		query,
		p.ID,
		p.RuleID,
		p.Section,
		p.Title,
		p.Text,
		p.EffectiveDate,
		p.SourceURL,
		p.ContentHash,
		encodeEmbedding(p.Embedding),
		p.EmbeddingModel,
		toUnix(p.LastRefreshed),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert passage: %w", err)
	}

	logger.Debug("Passage upserted", zap.String("passage_id", p.ID), zap.String("rule_id", p.RuleID))
	return nil
}

func (c *Client) TouchPassage(ctx context.Context, id string, at time.Time) error {
	_, err := c.db.ExecContext(ctx, `UPDATE passages SET last_refreshed = ? WHERE id = ?`, toUnix(at), id)
	if err != nil {
		return fmt.Errorf("failed to touch passage: %w", err)
	}
	return nil
}

func (c *Client) ListPassages(ctx context.Context) ([]models.Passage, error) {
	query := `
		SELECT id, rule_id, section, title, content, effective_date, source_url,
			content_hash, embedding, embedding_model, last_refreshed
		FROM passages
		ORDER BY rowid
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list passages: %w", err)
	}
	defer rows.Close()

	var passages []models.Passage
	for rows.Next() {
		var p models.Passage
		var embedding []byte
		var refreshed int64

		err := rows.Scan(
			&p.ID,
			&p.RuleID,
			&p.Section,
			&p.Title,
			&p.Text,
			&p.EffectiveDate,
			&p.SourceURL,
			&p.ContentHash,
			&embedding,
			&p.EmbeddingModel,
			&refreshed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		p.Embedding = decodeEmbedding(embedding)
		p.LastRefreshed = fromUnix(refreshed)
		passages = append(passages, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate passages: %w", err)
	}

	return passages, nil
}

func (c *Client) GetPassage(ctx context.Context, id string) (*models.Passage, error) {
	query := `
		SELECT id, rule_id, section, title, content, effective_date, source_url,
			content_hash, embedding, embedding_model, last_refreshed
		FROM passages WHERE id = ?
	`

	var p models.Passage
	var embedding []byte
	var refreshed int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.RuleID,
		&p.Section,
		&p.Title,
		&p.Text,
		&p.EffectiveDate,
		&p.SourceURL,
		&p.ContentHash,
		&embedding,
		&p.EmbeddingModel,
		&refreshed,
	)
	if err != nil {
		return nil, notFound(err, "passage")
	}

	p.Embedding = decodeEmbedding(embedding)
	p.LastRefreshed = fromUnix(refreshed)
	return &p, nil
}

func (c *Client) CountPassages(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count passages: %w", err)
	}
	return count, nil
}

// MissingPassages returns the ids from the list that have no stored passage.
func (c *Client) MissingPassages(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM passages WHERE id IN (%s)`, placeholders(len(ids))),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check passages: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		present[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate passages: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// DeletePassagesExcept removes every passage whose id is not in keep and returns how many
// rows were deleted.
func (c *Client) DeletePassagesExcept(ctx context.Context, keep []string) (int, error) {
	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}

	rows, err := c.db.QueryContext(ctx, `SELECT id FROM passages`)
	if err != nil {
		return 0, fmt.Errorf("failed to list passage ids: %w", err)
	}

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan row: %w", err)
		}
		if !keepSet[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate passage ids: %w", err)
	}

	removed := 0
	for _, id := range stale {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM passages WHERE id = ?`, id); err != nil {
			return removed, fmt.Errorf("failed to delete passage %s: %w", id, err)
		}
		removed++
	}

	if removed > 0 {
		logger.Info("Stale passages removed", zap.Int("count", removed))
	}

	return removed, nil
}

package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/utils"
)

// Source delivers raw rules and course data to the update scheduler.
type Source interface {
	Name() string
	FetchRules(ctx context.Context) ([]models.Rule, error)
	FetchCourses(ctx context.Context) ([]models.Course, error)
}

// Processor turns rules into passages.
type Processor struct {
	chunkSize    int
	chunkOverlap int
}

func NewProcessor(chunkSize, chunkOverlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Processor{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Passages chunks title and content of a rule. Passage ids are <rule_id>_chunk_<n>. The
// embedding fields are left empty for the caller to fill.
func (p *Processor) Passages(rule models.Rule) []models.Passage {
	text := rule.Content
	if rule.Title != "" {
		text = rule.Title + "\n\n" + rule.Content
	}

	chunks := Chunk(text, p.chunkSize, p.chunkOverlap)
	passages := make([]models.Passage, 0, len(chunks))

	for i, chunk := range chunks {
		passages = append(passages, models.Passage{
			ID:            fmt.Sprintf("%s_chunk_%d", rule.RuleID, i),
			RuleID:        rule.RuleID,
			Section:       rule.Section,
			Title:         rule.Title,
			Text:          chunk,
			EffectiveDate: rule.EffectiveDate,
			SourceURL:     rule.SourceURL,
			ContentHash:   utils.ContentHash(rule.RuleID, rule.Section, rule.Title, chunk, rule.EffectiveDate, rule.SourceURL),
		})
	}

	return passages
}

// Chunk splits text into windows of size words, each starting size-overlap words after the
// previous one.
func Chunk(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || size <= 0 {
		return nil
	}

	step := size - overlap
	if step <= 0 {
		step = size
	}

	var chunks []string
	for i := 0; i < len(words); i += step {
		end := min(i+size, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}

	return chunks
}

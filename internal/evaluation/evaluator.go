package evaluation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/embedding"
	"github.com/golf-qa/backend/internal/retrieval"
	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/apperrors"
	"github.com/golf-qa/backend/pkg/logger"
)

// precisionDecay is applied once per adjacent pair whose similarity increases.
const precisionDecay = 0.8

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true,
}

// Evaluator computes heuristic RAG quality scores. It only calls the embedding provider;
// storing the result is up to the caller.
type Evaluator struct {
	embedder embedding.Provider
}

type Report struct {
	Count               int     `json:"count"`
	AvgContextRelevancy float64 `json:"avg_context_relevancy"`
	AvgContextPrecision float64 `json:"avg_context_precision"`
	AvgAnswerRelevancy  float64 `json:"avg_answer_relevancy"`
	AvgFaithfulness     float64 `json:"avg_faithfulness"`
	AvgCosineSimilarity float64 `json:"avg_cosine_similarity"`
}

func NewEvaluator(embedder embedding.Provider) *Evaluator {
	return &Evaluator{embedder: embedder}
}

// Evaluate scores an answer. The question vector computed during retrieval is reused when
// the passages carry one.
func (e *Evaluator) Evaluate(ctx context.Context, question string, passages []retrieval.Result, answer string) (*models.MetricRecord, error) {
	questionVec, err := e.questionEmbedding(ctx, question, passages)
	if err != nil {
		return nil, err
	}

	similarities, err := e.contextSimilarities(ctx, questionVec, passages)
	if err != nil {
		return nil, err
	}

	answerVec, err := e.embedder.Embed(ctx, answer)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed answer: %w", apperrors.ErrProviderFailure, err)
	}
	answerRelevancy := embedding.CosineSimilarity(questionVec, answerVec)

	contexts := make([]string, len(passages))
	for i, p := range passages {
		contexts[i] = p.Passage.Text
	}

	record := &models.MetricRecord{
		ContextRelevancy: mean(similarities),
		ContextPrecision: ContextPrecision(similarities),
		AnswerRelevancy:  answerRelevancy,
		Faithfulness:     Faithfulness(answer, contexts),
		CosineSimilarity: answerRelevancy,
	}

	logger.Debug("Answer evaluated",
		zap.Int("passages", len(passages)),
		zap.Float64("context_relevancy", record.ContextRelevancy),
		zap.Float64("faithfulness", record.Faithfulness),
	)

	return record, nil
}

func (e *Evaluator) questionEmbedding(ctx context.Context, question string, passages []retrieval.Result) ([]float32, error) {
	if len(passages) > 0 && len(passages[0].QueryEmbedding) > 0 {
		return passages[0].QueryEmbedding, nil
	}

	vec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed question: %w", apperrors.ErrProviderFailure, err)
	}
	return vec, nil
}

// contextSimilarities embeds passages that were stored without a vector.
func (e *Evaluator) contextSimilarities(ctx context.Context, questionVec []float32, passages []retrieval.Result) ([]float64, error) {
	var missing []string
	for _, p := range passages {
		if len(p.Passage.Embedding) == 0 {
			missing = append(missing, p.Passage.Text)
		}
	}

	var computed [][]float32
	if len(missing) > 0 {
		var err error
		computed, err = e.embedder.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to embed passages: %w", apperrors.ErrProviderFailure, err)
		}
	}

	similarities := make([]float64, len(passages))
	next := 0
	for i, p := range passages {
		vec := p.Passage.Embedding
		if len(vec) == 0 {
			vec = computed[next]
			next++
		}
		similarities[i] = embedding.CosineSimilarity(questionVec, vec)
	}

	return similarities, nil
}

// ContextPrecision is 1.0 for a non-increasing similarity sequence, multiplied by 0.8 for
// every adjacent increase. An empty sequence scores 0.
func ContextPrecision(similarities []float64) float64 {
	if len(similarities) == 0 {
		return 0
	}

	precision := 1.0
	for i := 1; i < len(similarities); i++ {
		if similarities[i] > similarities[i-1] {
			precision *= precisionDecay
		}
	}
	return precision
}

// Faithfulness is the share of answer keywords that occur anywhere in the contexts.
func Faithfulness(answer string, contexts []string) float64 {
	keywords := make(map[string]bool)
	for _, token := range retrieval.Tokenize(answer) {
		if !stopWords[token] {
			keywords[token] = true
		}
	}
	if len(keywords) == 0 {
		return 0
	}

	contextTokens := make(map[string]bool)
	for _, text := range contexts {
		for _, token := range retrieval.Tokenize(text) {
			contextTokens[token] = true
		}
	}

	found := 0
	for keyword := range keywords {
		if contextTokens[keyword] {
			found++
		}
	}

	return float64(found) / float64(len(keywords))
}

func Summarize(records []models.MetricRecord) Report {
	report := Report{Count: len(records)}
	if len(records) == 0 {
		return report
	}

	for _, r := range records {
		report.AvgContextRelevancy += r.ContextRelevancy
		report.AvgContextPrecision += r.ContextPrecision
		report.AvgAnswerRelevancy += r.AnswerRelevancy
		report.AvgFaithfulness += r.Faithfulness
		report.AvgCosineSimilarity += r.CosineSimilarity
	}

	n := float64(len(records))
	report.AvgContextRelevancy /= n
	report.AvgContextPrecision /= n
	report.AvgAnswerRelevancy /= n
	report.AvgFaithfulness /= n
	report.AvgCosineSimilarity /= n

	return report
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/answer"
	"github.com/golf-qa/backend/internal/evaluation"
	"github.com/golf-qa/backend/internal/metrics"
	"github.com/golf-qa/backend/internal/retrieval"
	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/apperrors"
	"github.com/golf-qa/backend/pkg/logger"
)

// NoContextAnswer is returned without calling the LLM when retrieval finds nothing.
const NoContextAnswer = "I couldn't find relevant information in the Rules of Golf to answer your question. Please try rephrasing it or ask about a specific rule."

type Retriever interface {
	Search(ctx context.Context, question string, k int) ([]retrieval.Result, error)
}

type Generator interface {
	Answer(ctx context.Context, req answer.Request) (*answer.Answer, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, question string, passages []retrieval.Result, answer string) (*models.MetricRecord, error)
}

type Store interface {
	InsertMetricRecord(ctx context.Context, m *models.MetricRecord) error
	GetQueryRecord(ctx context.Context, id string) (*models.QueryRecord, error)
	ListQueryHistory(ctx context.Context, limit int) ([]models.QueryRecord, error)
	UpdateFeedback(ctx context.Context, id string, value int) error
	GetMetricsForQuery(ctx context.Context, queryID string) ([]models.MetricRecord, error)
	MissingPassages(ctx context.Context, ids []string) ([]string, error)
	GetQueryStats(ctx context.Context, since time.Time) (*models.QueryStats, error)
	GetAvgRAGMetrics(ctx context.Context, since time.Time) (*models.MetricAverages, error)
	GetAPICosts(ctx context.Context, since time.Time) ([]models.APICost, error)
}

// Engine runs a question through retrieval, generation and evaluation.
type Engine struct {
	retriever Retriever
	generator Generator
	evaluator Evaluator
	store     Store
	topK      int
	now       func() time.Time
}

type AskRequest struct {
	Question string
	TopK     int
}

type Source struct {
	PassageID     string  `json:"passage_id"`
	RuleID        string  `json:"rule_id"`
	Section       string  `json:"section"`
	Title         string  `json:"title"`
	SourceURL     string  `json:"source_url"`
	EffectiveDate string  `json:"effective_date"`
	Score         float64 `json:"score"`
	SemanticScore float64 `json:"semantic_score"`
	LexicalScore  float64 `json:"lexical_score"`
}

type Scores struct {
	ContextRelevancy float64 `json:"context_relevancy"`
	ContextPrecision float64 `json:"context_precision"`
	AnswerRelevancy  float64 `json:"answer_relevancy"`
	Faithfulness     float64 `json:"faithfulness"`
	CosineSimilarity float64 `json:"cosine_similarity"`
}

type AskResponse struct {
	QueryID   string        `json:"query_id,omitempty"`
	Question  string        `json:"question"`
	Answer    string        `json:"answer"`
	Sources   []Source      `json:"sources"`
	Model     string        `json:"model,omitempty"`
	Usage     *answer.Usage `json:"usage,omitempty"`
	CostUSD   float64       `json:"cost_usd"`
	LatencyMS int64         `json:"latency_ms"`
	Metrics   *Scores       `json:"metrics,omitempty"`
}

// QueryDetail is a stored query with its metrics and the passages that no longer exist.
type QueryDetail struct {
	Record          *models.QueryRecord
	Metrics         []models.MetricRecord
	Summary         evaluation.Report
	MissingPassages []string
}

type Analytics struct {
	Days    int
	Since   time.Time
	Stats   *models.QueryStats
	Metrics *models.MetricAverages
	Costs   []models.APICost
}

func NewEngine(retriever Retriever, generator Generator, evaluator Evaluator, store Store, topK int) *Engine {
	if topK <= 0 {
		topK = 5
	}
	return &Engine{
		retriever: retriever,
		generator: generator,
		evaluator: evaluator,
		store:     store,
		topK:      topK,
		now:       time.Now,
	}
}

func (e *Engine) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	startTime := e.now()
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	k := req.TopK
	if k <= 0 {
		k = e.topK
	}

	logger.Info("Processing question", zap.Int("top_k", k), zap.Int("length", len(question)))

	results, err := e.retriever.Search(ctx, question, k)
	metrics.QueryDuration.WithLabelValues("retrieval").Observe(e.now().Sub(startTime).Seconds())
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to retrieve passages: %w", err)
	}
	metrics.PassagesRetrieved.Observe(float64(len(results)))

	if len(results) == 0 {
		metrics.QueryTotal.WithLabelValues("no_context").Inc()
		logger.Info("No passages found for question")
		return &AskResponse{
			Question:  question,
			Answer:    NoContextAnswer,
			Sources:   []Source{},
			LatencyMS: e.now().Sub(startTime).Milliseconds(),
		}, nil
	}

	generationStart := e.now()
	ans, err := e.generator.Answer(ctx, answer.Request{
		Question:  question,
		Passages:  results,
		StartedAt: startTime,
	})
	metrics.QueryDuration.WithLabelValues("generation").Observe(e.now().Sub(generationStart).Seconds())
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	metrics.LLMTokensUsed.WithLabelValues(ans.Model, "input").Add(float64(ans.Usage.InputTokens))
	metrics.LLMTokensUsed.WithLabelValues(ans.Model, "output").Add(float64(ans.Usage.OutputTokens))
	metrics.LLMCost.WithLabelValues(ans.Model).Add(ans.CostUSD)

	resp := &AskResponse{
		QueryID:   ans.QueryID,
		Question:  question,
		Answer:    ans.Text,
		Sources:   sources(results),
		Model:     ans.Model,
		Usage:     &ans.Usage,
		CostUSD:   ans.CostUSD,
		LatencyMS: ans.LatencyMS,
	}

	resp.Metrics = e.evaluate(ctx, ans.QueryID, question, results, ans.Text)

	metrics.QueryDuration.WithLabelValues("total").Observe(e.now().Sub(startTime).Seconds())
	metrics.QueryTotal.WithLabelValues("success").Inc()

	return resp, nil
}

// evaluate scores and stores the answer. Failures are logged and yield nil.
func (e *Engine) evaluate(ctx context.Context, queryID, question string, results []retrieval.Result, text string) *Scores {
	start := e.now()
	defer func() {
		metrics.QueryDuration.WithLabelValues("evaluation").Observe(e.now().Sub(start).Seconds())
	}()

	record, err := e.evaluator.Evaluate(ctx, question, results, text)
	if err != nil {
		logger.Warn("Failed to evaluate answer", zap.String("query_id", queryID), zap.Error(err))
		return nil
	}

	record.QueryID = queryID
	if err := e.store.InsertMetricRecord(ctx, record); err != nil {
		logger.Warn("Failed to store rag metrics", zap.String("query_id", queryID), zap.Error(err))
	}

	metrics.RAGScore.WithLabelValues("context_relevancy").Observe(record.ContextRelevancy)
	metrics.RAGScore.WithLabelValues("context_precision").Observe(record.ContextPrecision)
	metrics.RAGScore.WithLabelValues("answer_relevancy").Observe(record.AnswerRelevancy)
	metrics.RAGScore.WithLabelValues("faithfulness").Observe(record.Faithfulness)

	return &Scores{
		ContextRelevancy: record.ContextRelevancy,
		ContextPrecision: record.ContextPrecision,
		AnswerRelevancy:  record.AnswerRelevancy,
		Faithfulness:     record.Faithfulness,
		CosineSimilarity: record.CosineSimilarity,
	}
}

func sources(results []retrieval.Result) []Source {
	out := make([]Source, len(results))
	for i, r := range results {
		out[i] = Source{
			PassageID:     r.Passage.ID,
			RuleID:        r.Passage.RuleID,
			Section:       r.Passage.Section,
			Title:         r.Passage.Title,
			SourceURL:     r.Passage.SourceURL,
			EffectiveDate: r.Passage.EffectiveDate,
			Score:         r.Score,
			SemanticScore: r.SemanticScore,
			LexicalScore:  r.LexicalScore,
		}
	}
	return out
}

func (e *Engine) Feedback(ctx context.Context, queryID string, value int) error {
	if err := e.store.UpdateFeedback(ctx, queryID, value); err != nil {
		return err
	}

	metrics.Feedback.WithLabelValues(fmt.Sprintf("%d", value)).Inc()
	logger.Info("Feedback recorded", zap.String("query_id", queryID), zap.Int("value", value))
	return nil
}

func (e *Engine) History(ctx context.Context, limit int) ([]models.QueryRecord, error) {
	return e.store.ListQueryHistory(ctx, limit)
}

// GetQuery loads a stored query. Passages it cites that no longer exist are logged as a
// data integrity warning and listed in the result.
func (e *Engine) GetQuery(ctx context.Context, id string) (*QueryDetail, error) {
	record, err := e.store.GetQueryRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &QueryDetail{Record: record}

	missing, err := e.store.MissingPassages(ctx, record.PassageIDs)
	if err != nil {
		logger.Warn("Failed to check referenced passages", zap.String("query_id", id), zap.Error(err))
	} else if len(missing) > 0 {
		integrityErr := fmt.Errorf("%w: query %s references %d missing passages", apperrors.ErrDataIntegrity, id, len(missing))
		logger.Warn("Data integrity warning", zap.String("query_id", id), zap.Strings("missing_passages", missing), zap.Error(integrityErr))
		detail.MissingPassages = missing
	}

	metricRecords, err := e.store.GetMetricsForQuery(ctx, id)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		logger.Warn("Failed to load rag metrics", zap.String("query_id", id), zap.Error(err))
	}
	detail.Metrics = metricRecords
	detail.Summary = evaluation.Summarize(metricRecords)

	return detail, nil
}

func (e *Engine) Analytics(ctx context.Context, days int) (*Analytics, error) {
	if days <= 0 {
		days = 30
	}
	since := e.now().AddDate(0, 0, -days)

	stats, err := e.store.GetQueryStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get query stats: %w", err)
	}

	averages, err := e.store.GetAvgRAGMetrics(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get rag metrics: %w", err)
	}

	costs, err := e.store.GetAPICosts(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get api costs: %w", err)
	}

	return &Analytics{
		Days:    days,
		Since:   since,
		Stats:   stats,
		Metrics: averages,
		Costs:   costs,
	}, nil
}

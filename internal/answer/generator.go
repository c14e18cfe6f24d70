package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/llm"
	"github.com/golf-qa/backend/internal/retrieval"
	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/apperrors"
	"github.com/golf-qa/backend/pkg/logger"
)

const systemPrompt = `You are an expert golf rules assistant. Answer questions about the Rules of Golf using only the provided context.

Guidelines:
- Cite the rule numbers you rely on, for example "According to Rule 13.1a...".
- If the context does not contain the answer, say so instead of guessing.
- Keep answers clear and concise, and mention penalties where they apply.`

// Store records answered questions and provider usage.
type Store interface {
	InsertQueryRecord(ctx context.Context, record *models.QueryRecord) error
	InsertAPIUsage(ctx context.Context, usage *models.APIUsage) error
}

type Request struct {
	Question  string
	Passages  []retrieval.Result
	StartedAt time.Time
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type Answer struct {
	QueryID    string   `json:"query_id"`
	Text       string   `json:"answer"`
	Usage      Usage    `json:"usage"`
	CostUSD    float64  `json:"cost_usd"`
	Model      string   `json:"model"`
	LatencyMS  int64    `json:"latency_ms"`
	PassageIDs []string `json:"passage_ids"`
}

// Generator produces a cited answer with one LLM call and records it.
type Generator struct {
	client    llm.Client
	store     Store
	tokens    *llm.TokenCounter
	maxTokens int
	temp      float32
	now       func() time.Time
}

func NewGenerator(client llm.Client, store Store, tokens *llm.TokenCounter, maxTokens int, temperature float32) *Generator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Generator{
		client:    client,
		store:     store,
		tokens:    tokens,
		maxTokens: maxTokens,
		temp:      temperature,
		now:       time.Now,
	}
}

func (g *Generator) Answer(ctx context.Context, req Request) (*Answer, error) {
	startedAt := req.StartedAt
	if startedAt.IsZero() {
		startedAt = g.now()
	}

	userPrompt := BuildPrompt(req.Question, req.Passages)

	resp, err := g.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  g.temp,
		MaxTokens:    g.maxTokens,
	})
	if err != nil {
		logger.Error("Answer generation failed", zap.String("model", g.client.Model()), zap.Error(err))
		if !errors.Is(err, apperrors.ErrProviderFailure) {
			err = fmt.Errorf("%w: %w", apperrors.ErrProviderFailure, err)
		}
		return nil, err
	}

	usage := resp.Usage
	if usage.InputTokens == 0 {
		usage.InputTokens = g.tokens.Count(systemPrompt) + g.tokens.Count(userPrompt)
	}
	if usage.OutputTokens == 0 {
		usage.OutputTokens = g.tokens.Count(resp.Content)
	}

	model := resp.Model
	if model == "" {
		model = g.client.Model()
	}
	cost := llm.Cost(model, usage)

	passageIDs := make([]string, len(req.Passages))
	for i, p := range req.Passages {
		passageIDs[i] = p.Passage.ID
	}

	now := g.now()
	answer := &Answer{
		QueryID: uuid.New().String(),
		Text:    resp.Content,
		Usage: Usage{
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			TotalTokens:  usage.Total(),
		},
		CostUSD:    cost,
		Model:      model,
		LatencyMS:  now.Sub(startedAt).Milliseconds(),
		PassageIDs: passageIDs,
	}

	record := &models.QueryRecord{
		ID:           answer.QueryID,
		Question:     req.Question,
		QueryType:    "rules",
		PassageIDs:   passageIDs,
		Answer:       answer.Text,
		Model:        model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.Total(),
		CostUSD:      cost,
		LatencyMS:    answer.LatencyMS,
		CreatedAt:    now,
	}
	if err := g.store.InsertQueryRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record query: %w", err)
	}

	if err := g.store.InsertAPIUsage(ctx, &models.APIUsage{
		APIName:      g.client.Provider(),
		Operation:    "answer",
		TokensInput:  usage.InputTokens,
		TokensOutput: usage.OutputTokens,
		CostUSD:      cost,
		CreatedAt:    now,
	}); err != nil {
		logger.Warn("Failed to record api usage", zap.String("query_id", answer.QueryID), zap.Error(err))
	}

	logger.Info("Answer generated",
		zap.String("query_id", answer.QueryID),
		zap.String("model", model),
		zap.Int("passages", len(passageIDs)),
		zap.Int("total_tokens", usage.Total()),
		zap.Float64("cost_usd", cost),
		zap.Int64("latency_ms", answer.LatencyMS),
	)

	return answer, nil
}

// BuildPrompt renders the retrieved passages as numbered context blocks followed by the
// question.
func BuildPrompt(question string, passages []retrieval.Result) string {
	var b strings.Builder

	b.WriteString("Context from the Rules of Golf:\n\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[Context %d]\n", i+1)
		fmt.Fprintf(&b, "Rule %s: %s\n", p.Passage.RuleID, p.Passage.Title)
		fmt.Fprintf(&b, "Section: %s\n\n", p.Passage.Section)
		b.WriteString(p.Passage.Text)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Answer the question using the context above and cite the relevant rule numbers.")

	return b.String()
}

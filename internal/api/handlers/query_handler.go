package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/query"
	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/logger"
)

type QueryHandler struct {
	queryEngine *query.Engine
}

func NewQueryHandler(queryEngine *query.Engine) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
	}
}

type askRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
	TopK     int    `json:"top_k" validate:"omitempty,min=1,max=20"`
}

type feedbackRequest struct {
	Value *int `json:"value" validate:"required,oneof=-1 0 1"`
}

func (h *QueryHandler) Ask(c *fiber.Ctx) error {
	var req askRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	response, err := h.queryEngine.Ask(c.Context(), query.AskRequest{
		Question: req.Question,
		TopK:     req.TopK,
	})
	if err != nil {
		return respondError(c, err, "Failed to answer question")
	}

	return c.JSON(response)
}

func (h *QueryHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 500",
		})
	}

	records, err := h.queryEngine.History(c.Context(), limit)
	if err != nil {
		return respondError(c, err, "Failed to load query history")
	}

	history := make([]fiber.Map, len(records))
	for i := range records {
		history[i] = queryRecordJSON(&records[i])
	}

	return c.JSON(fiber.Map{
		"history": history,
		"count":   len(history),
	})
}

func (h *QueryHandler) GetQuery(c *fiber.Ctx) error {
	detail, err := h.queryEngine.GetQuery(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Query not found")
	}

	metrics := make([]fiber.Map, len(detail.Metrics))
	for i, m := range detail.Metrics {
		metrics[i] = fiber.Map{
			"context_relevancy": m.ContextRelevancy,
			"context_precision": m.ContextPrecision,
			"answer_relevancy":  m.AnswerRelevancy,
			"faithfulness":      m.Faithfulness,
			"cosine_similarity": m.CosineSimilarity,
			"created_at":        m.CreatedAt,
		}
	}

	missing := detail.MissingPassages
	if missing == nil {
		missing = []string{}
	}

	return c.JSON(fiber.Map{
		"query":            queryRecordJSON(detail.Record),
		"metrics":          metrics,
		"summary":          detail.Summary,
		"missing_passages": missing,
	})
}

func (h *QueryHandler) Feedback(c *fiber.Ctx) error {
	var req feedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	id := c.Params("id")
	if err := h.queryEngine.Feedback(c.Context(), id, *req.Value); err != nil {
		return respondError(c, err, "Failed to record feedback")
	}

	return c.JSON(fiber.Map{
		"query_id": id,
		"feedback": *req.Value,
	})
}

func (h *QueryHandler) Analytics(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days <= 0 || days > 365 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "days must be between 1 and 365",
		})
	}

	analytics, err := h.queryEngine.Analytics(c.Context(), days)
	if err != nil {
		return respondError(c, err, "Failed to load analytics")
	}

	costs := make([]fiber.Map, len(analytics.Costs))
	for i, cost := range analytics.Costs {
		costs[i] = fiber.Map{
			"api_name":      cost.APIName,
			"calls":         cost.Calls,
			"tokens_input":  cost.TokensInput,
			"tokens_output": cost.TokensOutput,
			"cost_usd":      cost.CostUSD,
		}
	}

	stats := analytics.Stats
	avg := analytics.Metrics

	return c.JSON(fiber.Map{
		"days":  analytics.Days,
		"since": analytics.Since,
		"queries": fiber.Map{
			"total":             stats.TotalQueries,
			"avg_latency_ms":    stats.AvgLatencyMS,
			"total_cost_usd":    stats.TotalCostUSD,
			"positive_feedback": stats.PositiveCount,
			"negative_feedback": stats.NegativeCount,
			"by_type":           stats.QueriesByType,
			"avg_total_tokens":  stats.AvgTotalTokens,
			"total_tokens_used": stats.TotalTokensUsed,
		},
		"rag_metrics": fiber.Map{
			"count":             avg.Count,
			"context_relevancy": avg.ContextRelevancy,
			"context_precision": avg.ContextPrecision,
			"answer_relevancy":  avg.AnswerRelevancy,
			"faithfulness":      avg.Faithfulness,
			"cosine_similarity": avg.CosineSimilarity,
		},
		"api_costs": costs,
	})
}

func queryRecordJSON(r *models.QueryRecord) fiber.Map {
	passageIDs := r.PassageIDs
	if passageIDs == nil {
		passageIDs = []string{}
	}

	return fiber.Map{
		"id":            r.ID,
		"question":      r.Question,
		"query_type":    r.QueryType,
		"answer":        r.Answer,
		"passage_ids":   passageIDs,
		"model":         r.Model,
		"input_tokens":  r.InputTokens,
		"output_tokens": r.OutputTokens,
		"total_tokens":  r.TotalTokens,
		"cost_usd":      r.CostUSD,
		"latency_ms":    r.LatencyMS,
		"feedback":      r.Feedback,
		"created_at":    r.CreatedAt,
	}
}

package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/query"
	"github.com/golf-qa/backend/internal/middleware/validation"
	"github.com/golf-qa/backend/pkg/logger"
)

// WebSocketHandler relays questions and feedback over a websocket. Answers are sent word by
// word after generation completes, followed by a "complete" message with sources and scores.
type WebSocketHandler struct {
	queryEngine       *query.Engine
	maxQuestionLength int
	timeout           time.Duration
}

func NewWebSocketHandler(queryEngine *query.Engine, maxQuestionLength int, timeout time.Duration) *WebSocketHandler {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &WebSocketHandler{
		queryEngine:       queryEngine,
		maxQuestionLength: maxQuestionLength,
		timeout:           timeout,
	}
}

type wsMessage struct {
	Type     string `json:"type"`
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	QueryID  string `json:"query_id"`
	Value    *int   `json:"value"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		var err error
		switch msg.Type {
		case "question":
			err = h.answer(c, msg)
		case "feedback":
			err = h.feedback(c, msg)
		default:
			err = h.sendError(c, "Unknown message type")
		}
		if err != nil {
			logger.Error("Failed to write WebSocket message", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) answer(c *websocket.Conn, msg wsMessage) error {
	question := validation.Sanitize(msg.Question)
	switch {
	case question == "":
		return h.sendError(c, "Question is required")
	case h.maxQuestionLength > 0 && len(question) > h.maxQuestionLength:
		return h.sendError(c, "Question exceeds maximum length")
	case validation.ContainsXSS(question):
		return h.sendError(c, "Invalid question content")
	}

	if err := h.send(c, "status", "Searching the Rules of Golf..."); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	response, err := h.queryEngine.Ask(ctx, query.AskRequest{Question: question, TopK: msg.TopK})
	if err != nil {
		logger.Error("Failed to answer WebSocket question", zap.Error(err))
		return h.sendError(c, "Failed to answer question")
	}

	for _, chunk := range splitIntoWords(response.Answer) {
		if err := h.send(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":       "complete",
		"query_id":   response.QueryID,
		"sources":    response.Sources,
		"metrics":    response.Metrics,
		"cost_usd":   response.CostUSD,
		"latency_ms": response.LatencyMS,
	})
}

func (h *WebSocketHandler) feedback(c *websocket.Conn, msg wsMessage) error {
	if msg.QueryID == "" || msg.Value == nil {
		return h.sendError(c, "query_id and value are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.queryEngine.Feedback(ctx, msg.QueryID, *msg.Value); err != nil {
		return h.sendError(c, err.Error())
	}

	return c.WriteJSON(map[string]interface{}{
		"type":     "feedback_recorded",
		"query_id": msg.QueryID,
		"feedback": *msg.Value,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

// splitIntoWords keeps line breaks as separate chunks and a trailing space on each word.
func splitIntoWords(text string) []string {
	var chunks []string
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		words := strings.Fields(line)
		for j, word := range words {
			if j < len(words)-1 {
				word += " "
			}
			chunks = append(chunks, word)
		}
		if i < len(lines)-1 {
			chunks = append(chunks, "\n")
		}
	}
	return chunks
}

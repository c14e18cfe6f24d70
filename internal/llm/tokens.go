package llm

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/golf-qa/backend/pkg/logger"
)

// TokenCounter estimates token counts when a provider response does not report them.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding. If it cannot be loaded the counter falls
// back to four characters per token.
func NewTokenCounter() *TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("Failed to load tiktoken encoding, using character estimate", zap.Error(err))
		return &TokenCounter{}
	}
	return &TokenCounter{encoding: enc}
}

func (t *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if t == nil || t.encoding == nil {
		return max(1, len(text)/4)
	}
	return len(t.encoding.Encode(text, nil, nil))
}

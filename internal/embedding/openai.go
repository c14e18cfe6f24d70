package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/metrics"
	"github.com/golf-qa/backend/pkg/apperrors"
	"github.com/golf-qa/backend/pkg/circuitbreaker"
	"github.com/golf-qa/backend/pkg/logger"
	"github.com/golf-qa/backend/pkg/retry"
)

const openAIBatchSize = 100

type OpenAIProvider struct {
	client      *openai.Client
	model       string
	dim         int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewOpenAIProvider(apiKey, model string, dim, timeoutSec int) *OpenAIProvider {
	return newOpenAIProvider(openai.NewClient(apiKey), model, dim, timeoutSec)
}

// NewOpenAIProviderWithConfig allows pointing the client at a compatible endpoint.
func NewOpenAIProviderWithConfig(clientConfig openai.ClientConfig, model string, dim, timeoutSec int) *OpenAIProvider {
	return newOpenAIProvider(openai.NewClientWithConfig(clientConfig), model, dim, timeoutSec)
}

func newOpenAIProvider(client *openai.Client, model string, dim, timeoutSec int) *OpenAIProvider {
	if timeoutSec <= 0 {
		timeoutSec = 15
	}

	cb := circuitbreaker.NewCircuitBreaker("embedding", circuitbreaker.Config{
		MaxRequests:      2,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		IsFailure:        isServiceError,
		OnStateChange:    metrics.ObserveBreakerState,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Retryable:      isServiceError,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Embedding provider initialized",
		zap.String("provider", "openai"),
		zap.String("model", model),
	)

	return &OpenAIProvider{
		client:      client,
		model:       model,
		dim:         dim,
		timeout:     time.Duration(timeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.model
}

func (p *OpenAIProvider) Dimension() int {
	return p.dim
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += openAIBatchSize {
		end := min(i+openAIBatchSize, len(texts))
		batch, err := p.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}

	logger.Debug("Embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

func (p *OpenAIProvider) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var out [][]float32

	err := p.cb.Execute(ctx, func() error {
		return retry.Do(ctx, p.retryConfig, func() error {
			resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: batch,
				Model: openai.EmbeddingModel(p.model),
			})
			if err != nil {
				return err
			}

			if len(resp.Data) != len(batch) {
				return &retry.Permanent{Err: fmt.Errorf("embedding count mismatch: got %d, expected %d", len(resp.Data), len(batch))}
			}

			out = make([][]float32, len(resp.Data))
			for _, data := range resp.Data {
				if data.Index < 0 || data.Index >= len(out) {
					return &retry.Permanent{Err: fmt.Errorf("embedding index %d out of range", data.Index)}
				}
				out[data.Index] = data.Embedding
			}

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate embeddings: %w", apperrors.ErrProviderFailure, err)
	}

	return out, nil
}

// isServiceError reports whether err is a transient failure on the provider side: rate
// limits, 5xx responses and transport errors. Client errors such as a bad key are not.
func isServiceError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}

	var permanent *retry.Permanent
	return !errors.As(err, &permanent)
}

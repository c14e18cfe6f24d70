package retrieval

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/embedding"
	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/apperrors"
	"github.com/golf-qa/backend/pkg/logger"
)

// PassageStore is the read side of the content store used for retrieval.
type PassageStore interface {
	ListPassages(ctx context.Context) ([]models.Passage, error)
}

type Result struct {
	Passage       models.Passage
	SemanticScore float64
	LexicalScore  float64
	Score         float64
	// QueryEmbedding is the question vector the passage was scored against. It is shared
	// by all results of one search.
	QueryEmbedding []float32
}

type Weights struct {
	Semantic float64
	Lexical  float64
}

var DefaultWeights = Weights{Semantic: 0.7, Lexical: 0.3}

// Retriever ranks every stored passage against a question with a weighted sum of embedding
// cosine similarity and normalized TF-IDF.
type Retriever struct {
	store    PassageStore
	embedder embedding.Provider
	weights  Weights
}

func NewRetriever(store PassageStore, embedder embedding.Provider, weights Weights) *Retriever {
	return &Retriever{
		store:    store,
		embedder: embedder,
		weights:  weights,
	}
}

func (r *Retriever) Search(ctx context.Context, question string, k int) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}

	passages, err := r.store.ListPassages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load passages: %w", err)
	}
	if len(passages) == 0 {
		logger.Warn("Retrieval requested on empty content store")
		return []Result{}, nil
	}

	queryVec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed question: %w", apperrors.ErrProviderFailure, err)
	}

	lexical := tfidfScores(Tokenize(question), passages)

	results := make([]Result, len(passages))
	for i, p := range passages {
		semantic := embedding.CosineSimilarity(queryVec, p.Embedding)
		results[i] = Result{
			Passage:        p,
			SemanticScore:  semantic,
			LexicalScore:   lexical[i],
			Score:          r.weights.Semantic*semantic + r.weights.Lexical*lexical[i],
			QueryEmbedding: queryVec,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}

	logger.Debug("Passages retrieved",
		zap.Int("corpus", len(passages)),
		zap.Int("returned", len(results)),
	)

	return results, nil
}

// nonWord matches anything that is not a Unicode letter, digit, underscore or space.
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Tokenize lower-cases text, replaces punctuation with spaces and splits on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(nonWord.ReplaceAllString(strings.ToLower(text), " "))
}

// tfidfScores returns one score per passage, normalized so the best passage scores 1.
func tfidfScores(queryTokens []string, passages []models.Passage) []float64 {
	scores := make([]float64, len(passages))
	if len(queryTokens) == 0 {
		return scores
	}

	docs := make([]map[string]int, len(passages))
	lengths := make([]int, len(passages))
	df := make(map[string]int)

	for i, p := range passages {
		tokens := Tokenize(p.Text)
		counts := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			counts[tok]++
		}
		for tok := range counts {
			df[tok]++
		}
		docs[i] = counts
		lengths[i] = len(tokens)
	}

	n := float64(len(passages))
	var maxScore float64

	for i := range passages {
		if lengths[i] == 0 {
			continue
		}
		var score float64
		for _, term := range queryTokens {
			freq := df[term]
			if freq == 0 {
				continue
			}
			tf := float64(docs[i][term]) / float64(lengths[i])
			idf := math.Log((n + 1) / (float64(freq) + 1))
			score += tf * idf
		}
		scores[i] = score
		if score > maxScore {
			maxScore = score
		}
	}

	if maxScore > 0 {
		for i := range scores {
			scores[i] /= maxScore
		}
	}

	return scores
}

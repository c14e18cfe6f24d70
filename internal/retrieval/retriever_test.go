package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golf-qa/backend/internal/embedding"
	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/apperrors"
)

type staticStore struct {
	passages []models.Passage
	err      error
}

func (s *staticStore) ListPassages(context.Context) ([]models.Passage, error) {
	return s.passages, s.err
}

// vectorEmbedder returns a fixed vector for known texts.
type vectorEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (e *vectorEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vectors[text], nil
}

func (e *vectorEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *vectorEmbedder) Name() string   { return "fixed" }
func (e *vectorEmbedder) Dimension() int { return 2 }

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"rule", "13", "1c", "putting", "green"}, Tokenize("Rule 13.1c: Putting-Green!"))
	assert.Empty(t, Tokenize("  ?!  "))
	assert.Equal(t, []string{"règle", "13", "réparer", "la", "marque", "de", "balle"}, Tokenize("Règle 13: réparer la marque-de-balle"))
	assert.Equal(t, []string{"naïve", "caddie_fee"}, Tokenize("Naïve caddie_fee."))
}

func TestSearchEmptyCorpusSkipsEmbedding(t *testing.T) {
	embedder := &vectorEmbedder{}
	r := NewRetriever(&staticStore{}, embedder, DefaultWeights)

	results, err := r.Search(context.Background(), "what is a penalty area?", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, embedder.calls)
}

func TestSearchNonPositiveK(t *testing.T) {
	embedder := &vectorEmbedder{}
	store := &staticStore{passages: []models.Passage{{ID: "1_chunk_0", Text: "golf"}}}
	r := NewRetriever(store, embedder, DefaultWeights)

	results, err := r.Search(context.Background(), "golf", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, embedder.calls)
}

func TestSearchEmbeddingFailure(t *testing.T) {
	embedder := &vectorEmbedder{err: errors.New("rate limited")}
	store := &staticStore{passages: []models.Passage{{ID: "1_chunk_0", Text: "golf"}}}
	r := NewRetriever(store, embedder, DefaultWeights)

	_, err := r.Search(context.Background(), "golf", 3)
	assert.ErrorIs(t, err, apperrors.ErrProviderFailure)
}

func TestSearchRanksThreePassages(t *testing.T) {
	question := "how do I mark my ball on the putting green"
	passages := []models.Passage{
		{ID: "1_chunk_0", RuleID: "1", Text: "The game of golf is played by striking a ball with a club", Embedding: []float32{0, 1}},
		{ID: "2_chunk_0", RuleID: "2", Text: "The course has five defined areas", Embedding: []float32{0.6, 0.8}},
		{ID: "13_chunk_0", RuleID: "13", Text: "On the putting green you may mark lift and clean your ball", Embedding: []float32{1, 0}},
	}
	embedder := &vectorEmbedder{vectors: map[string][]float32{question: {1, 0}}}
	r := NewRetriever(&staticStore{passages: passages}, embedder, DefaultWeights)

	results, err := r.Search(context.Background(), question, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "13_chunk_0", results[0].Passage.ID)
	assert.Equal(t, "2_chunk_0", results[1].Passage.ID)
	assert.Equal(t, "1_chunk_0", results[2].Passage.ID)

	assert.Equal(t, 1, embedder.calls)
	for _, res := range results {
		assert.Equal(t, []float32{1, 0}, res.QueryEmbedding)
	}

	assert.InDelta(t, 1.0, results[0].LexicalScore, 1e-9)
	assert.InDelta(t, 1.0, results[0].SemanticScore, 1e-9)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, res := range results {
		assert.InDelta(t, 0.7*res.SemanticScore+0.3*res.LexicalScore, res.Score, 1e-9)
	}
}

func TestSearchTopKBoundAndStableTies(t *testing.T) {
	var passages []models.Passage
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		passages = append(passages, models.Passage{ID: id, Text: "identical text", Embedding: []float32{1, 1}})
	}
	embedder := &vectorEmbedder{vectors: map[string][]float32{"unrelated": {1, 1}}}
	r := NewRetriever(&staticStore{passages: passages}, embedder, DefaultWeights)

	results, err := r.Search(context.Background(), "unrelated", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{results[0].Passage.ID, results[1].Passage.ID, results[2].Passage.ID})

	results, err = r.Search(context.Background(), "unrelated", 10)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestSearchMismatchedDimensionScoresZero(t *testing.T) {
	passages := []models.Passage{{ID: "x", Text: "bunker", Embedding: []float32{1, 0, 0}}}
	embedder := &vectorEmbedder{vectors: map[string][]float32{"bunker": {1, 0}}}
	r := NewRetriever(&staticStore{passages: passages}, embedder, DefaultWeights)

	results, err := r.Search(context.Background(), "bunker", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].SemanticScore)
}

func TestSearchWithLocalEmbedder(t *testing.T) {
	ctx := context.Background()
	e := embedding.NewLocalEmbedder(384)

	texts := []string{
		"Rule 1 The Game: golf is played by striking a ball with a club from the teeing area",
		"Rule 2 The Course: the five areas of the course are the general area, teeing area, penalty areas, bunkers and putting green",
		"Rule 13 Putting Greens: a ball on the putting green may be marked, lifted and cleaned; damage may be repaired",
	}
	var passages []models.Passage
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		require.NoError(t, err)
		passages = append(passages, models.Passage{ID: []string{"1_chunk_0", "2_chunk_0", "13_chunk_0"}[i], Text: text, Embedding: vec})
	}

	r := NewRetriever(&staticStore{passages: passages}, e, DefaultWeights)
	results, err := r.Search(ctx, "Can I repair damage on the putting green?", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "13_chunk_0", results[0].Passage.ID)
}

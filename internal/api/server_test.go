package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golf-qa/backend/internal/answer"
	"github.com/golf-qa/backend/internal/embedding"
	"github.com/golf-qa/backend/internal/evaluation"
	"github.com/golf-qa/backend/internal/ingestion"
	"github.com/golf-qa/backend/internal/llm"
	"github.com/golf-qa/backend/internal/query"
	"github.com/golf-qa/backend/internal/retrieval"
	"github.com/golf-qa/backend/internal/scheduler"
	"github.com/golf-qa/backend/internal/storage/sqlite"
	"github.com/golf-qa/backend/pkg/apperrors"
	"github.com/golf-qa/backend/pkg/config"
)

type stubLLM struct {
	err error
}

func (s *stubLLM) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{
		Content: "According to Rule 13.1c you may repair damage on the putting green.",
		Model:   "claude-sonnet-4-5-20250929",
		Usage:   llm.Usage{InputTokens: 500, OutputTokens: 40},
	}, nil
}

func (s *stubLLM) Provider() string { return "anthropic" }
func (s *stubLLM) Model() string    { return "claude-sonnet-4-5-20250929" }

type testServer struct {
	server *Server
	llm    *stubLLM
}

func newTestServer(t *testing.T, load bool) *testServer {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "golf.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())

	embedder := embedding.NewLocalEmbedder(128)
	updater := scheduler.NewUpdater(store, ingestion.NewSampleSource(), ingestion.NewProcessor(512, 50), embedder)
	if load {
		require.True(t, updater.RunOnce(context.Background()).Success)
	}

	client := &stubLLM{}
	engine := query.NewEngine(
		retrieval.NewRetriever(store, embedder, retrieval.DefaultWeights),
		answer.NewGenerator(client, store, nil, 1024, 0.2),
		evaluation.NewEvaluator(embedder),
		store,
		5,
	)

	server := NewServer(config.ServerConfig{
		RateLimitPerMin:   1000,
		MaxQuestionLength: 2000,
		BodyLimit:         1 << 20,
		Development:       true,
	}, Dependencies{
		Engine:  engine,
		Updater: updater,
		Courses: store,
		Store:   store,
	})

	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testServer{server: server, llm: client}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.server.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func TestAskAndFeedbackFlow(t *testing.T) {
	ts := newTestServer(t, true)

	status, body := ts.do(t, http.MethodPost, "/api/v1/ask", `{"question":"Can I repair a ball-mark on the putting green?","top_k":3}`)
	require.Equal(t, http.StatusOK, status)

	queryID, _ := body["query_id"].(string)
	require.NotEmpty(t, queryID)
	sources := body["sources"].([]interface{})
	require.Len(t, sources, 3)
	assert.Equal(t, "13_chunk_0", sources[0].(map[string]interface{})["passage_id"])
	assert.NotNil(t, body["metrics"])

	status, _ = ts.do(t, http.MethodPost, "/api/v1/queries/"+queryID+"/feedback", `{"value":1}`)
	assert.Equal(t, http.StatusOK, status)

	status, body = ts.do(t, http.MethodGet, "/api/v1/queries/"+queryID, "")
	require.Equal(t, http.StatusOK, status)
	record := body["query"].(map[string]interface{})
	assert.Equal(t, float64(1), record["feedback"])
	assert.Len(t, body["metrics"], 1)
	assert.Empty(t, body["missing_passages"])

	status, body = ts.do(t, http.MethodGet, "/api/v1/queries?limit=10", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, body = ts.do(t, http.MethodGet, "/api/v1/analytics?days=7", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["queries"].(map[string]interface{})["total"])
	assert.Equal(t, float64(1), body["queries"].(map[string]interface{})["positive_feedback"])
}

func TestFeedbackValidation(t *testing.T) {
	ts := newTestServer(t, true)

	status, body := ts.do(t, http.MethodPost, "/api/v1/ask", `{"question":"What are the five areas of the course?"}`)
	require.Equal(t, http.StatusOK, status)
	queryID := body["query_id"].(string)

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{name: "out of range", id: queryID, body: `{"value":5}`, want: http.StatusBadRequest},
		{name: "missing value", id: queryID, body: `{}`, want: http.StatusBadRequest},
		{name: "reset to neutral", id: queryID, body: `{"value":0}`, want: http.StatusOK},
		{name: "negative", id: queryID, body: `{"value":-1}`, want: http.StatusOK},
		{name: "unknown query", id: "does-not-exist", body: `{"value":1}`, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := ts.do(t, http.MethodPost, "/api/v1/queries/"+tt.id+"/feedback", tt.body)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestAskEmptyCorpus(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPost, "/api/v1/ask", `{"question":"What is a penalty area?"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, query.NoContextAnswer, body["answer"])
	assert.Empty(t, body["sources"])
}

func TestAskProviderFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t, true)
	ts.llm.err = apperrors.ErrProviderFailure

	status, body := ts.do(t, http.MethodPost, "/api/v1/ask", `{"question":"What is a bunker?"}`)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "Failed to answer question", body["error"])
}

func TestAskValidation(t *testing.T) {
	ts := newTestServer(t, true)

	status, _ := ts.do(t, http.MethodPost, "/api/v1/ask", `{"question":"   "}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodPost, "/api/v1/ask", `{"question":"bunker","top_k":50}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodPost, "/api/v1/ask", `{"question":"<script>alert(1)</script>"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCoursesAndFreshness(t *testing.T) {
	ts := newTestServer(t, true)

	status, body := ts.do(t, http.MethodGet, "/api/v1/courses?state=ca", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])

	status, _ = ts.do(t, http.MethodGet, "/api/v1/courses?state=California", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = ts.do(t, http.MethodGet, "/api/v1/courses?city=Pebble", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), body["count"])
	course := body["courses"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Pebble Beach Golf Links", course["name"])

	status, body = ts.do(t, http.MethodGet, "/api/v1/courses?city=Beach", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])

	status, body = ts.do(t, http.MethodGet, "/api/v1/freshness", "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].([]interface{})
	require.Len(t, data, 2)
	rules := data[0].(map[string]interface{})
	assert.Equal(t, "rules", rules["data_type"])
	assert.Equal(t, "green", rules["color"])
	assert.Equal(t, "success", rules["status"])
}

func TestTriggerUpdate(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPost, "/api/v1/updates", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["passages_updated"])
	assert.Equal(t, float64(10), body["courses_updated"])
}

func TestHealthReadyAndMetrics(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = ts.do(t, http.MethodGet, "/api/v1/ready", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, _ = ts.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

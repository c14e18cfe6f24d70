package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/golf-qa/backend/pkg/circuitbreaker"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "golf_qa_query_duration_seconds",
			Help:    "Question answering duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golf_qa_query_total",
			Help: "Total number of questions processed",
		},
		[]string{"status"},
	)

	PassagesRetrieved = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "golf_qa_passages_retrieved",
			Help:    "Number of passages retrieved per question",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golf_qa_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	LLMCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golf_qa_llm_cost_usd",
			Help: "Estimated LLM API cost in USD",
		},
		[]string{"model"},
	)

	RAGScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "golf_qa_rag_score",
			Help:    "Heuristic RAG quality scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"metric"},
	)

	Feedback = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golf_qa_feedback_total",
			Help: "User feedback submissions",
		},
		[]string{"value"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golf_qa_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golf_qa_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	UpdateRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golf_qa_update_runs_total",
			Help: "Data update runs by data type and final status",
		},
		[]string{"data_type", "status"},
	)

	PassagesStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "golf_qa_passages_stored",
			Help: "Number of rule passages in the content store",
		},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "golf_qa_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(QueryDuration)
		prometheus.MustRegister(QueryTotal)
		prometheus.MustRegister(PassagesRetrieved)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(LLMCost)
		prometheus.MustRegister(RAGScore)
		prometheus.MustRegister(Feedback)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(UpdateRuns)
		prometheus.MustRegister(PassagesStored)
		prometheus.MustRegister(BreakerState)
	})
}

// ObserveBreakerState matches circuitbreaker.Config.OnStateChange.
func ObserveBreakerState(name string, _ circuitbreaker.State, to circuitbreaker.State) {
	BreakerState.WithLabelValues(name).Set(float64(to))
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

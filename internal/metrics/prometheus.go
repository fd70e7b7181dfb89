package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QuestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docchat_question_duration_seconds",
			Help:    "End-to-end question answering duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	QuestionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_question_total",
			Help: "Total number of questions processed",
		},
		[]string{"status"},
	)

	IndexBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docchat_index_build_duration_seconds",
			Help:    "Index build duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	IndexBuildTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_index_build_total",
			Help: "Total number of index builds",
		},
		[]string{"status"},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docchat_documents_processed_total",
			Help: "Total uploaded documents stored",
		},
	)

	PassagesIndexed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docchat_passages_indexed",
			Help:    "Passages per index build",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
		},
	)

	RetrievedPassages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docchat_retrieved_passages",
			Help:    "Passages returned per retrieval",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 10, 20},
		},
	)

	EmbeddingCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docchat_embedding_cache_hits_total",
			Help: "Query embedding cache hits",
		},
	)

	EmbeddingCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docchat_embedding_cache_misses_total",
			Help: "Query embedding cache misses",
		},
	)
)

func Init() {
	prometheus.MustRegister(QuestionDuration)
	prometheus.MustRegister(QuestionTotal)
	prometheus.MustRegister(IndexBuildDuration)
	prometheus.MustRegister(IndexBuildTotal)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(PassagesIndexed)
	prometheus.MustRegister(RetrievedPassages)
	prometheus.MustRegister(EmbeddingCacheHits)
	prometheus.MustRegister(EmbeddingCacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

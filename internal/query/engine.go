package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docchat/backend/internal/cache/redis"
	"github.com/docchat/backend/internal/index"
	"github.com/docchat/backend/internal/metrics"
	"github.com/docchat/backend/internal/session"
	"github.com/docchat/backend/internal/storage/sqlite"
	"github.com/docchat/backend/pkg/config"
	"github.com/docchat/backend/pkg/logger"
	"github.com/docchat/backend/pkg/utils"
)

// FallbackAnswer is returned verbatim whenever the question cannot be
// answered from the retrieved context.
const FallbackAnswer = "Answer is not available in the provided documents."

const promptTemplate = `You are an AI assistant tasked with answering questions using only the information provided in the context (extracted from the user's documents).

Instructions:
- Analyze the Context to extract all relevant information.
- Use the context to answer the Question as thoroughly and accurately as possible.
- Do not use any external knowledge or assumptions.
- If the answer is not present in the context, respond with: "Answer is not available in the provided documents."

Formatting Guidelines:
1. Use clear and concise language.
2. Organize the answer into paragraphs for readability.
3. Use bullet points or numbered lists when explaining complex information.
4. Add headings or subheadings if needed for structure.
5. Ensure proper grammar, punctuation, and spelling.
6. Do not include greetings, explanations, or meta-commentary - just the answer.

Context:
%s

Question:
%s

Answer:`

// LLM is the slice of the model client the engine needs: one embedding call
// for the query and one generation call for the answer.
type LLM interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// Engine retrieves relevant passages for a question and produces a grounded
// answer. Exactly one retrieval and one generation call per question.
type Engine struct {
	db        *sqlite.Client
	indexes   *index.Store
	cache     *redis.Client
	topK      int
	fetchK    int
	lambda    float64
	modelName string
}

// NewEngine builds an engine. cache may be nil; query embeddings are then
// computed fresh on every question.
func NewEngine(db *sqlite.Client, indexes *index.Store, cache *redis.Client, cfg config.RetrievalConfig, modelName string) *Engine {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	fetchK := cfg.FetchK
	if fetchK < topK {
		fetchK = 4 * topK
	}
	lambda := cfg.Lambda
	if lambda <= 0 || lambda > 1 {
		lambda = 0.5
	}

	return &Engine{
		db:        db,
		indexes:   indexes,
		cache:     cache,
		topK:      topK,
		fetchK:    fetchK,
		lambda:    lambda,
		modelName: modelName,
	}
}

// Retrieve embeds the question and selects up to topK passages from the
// fetchK nearest neighbors by maximal marginal relevance, ordered by
// selection (first picked is the most relevant non-redundant passage).
// Fails with index.ErrNotFound when the owner has never indexed.
func (e *Engine) Retrieve(ctx context.Context, sess session.Session, query string, llm LLM) ([]index.Passage, error) {
	ix, err := e.indexes.Load(sess.User)
	if err != nil {
		return nil, err
	}

	vector, err := e.embedQuery(ctx, query, llm)
	if err != nil {
		return nil, err
	}

	hits, err := ix.Search(vector, e.fetchK)
	if err != nil {
		return nil, err
	}

	selected := maximalMarginalRelevance(hits, e.lambda, e.topK)

	passages := make([]index.Passage, len(selected))
	for i, hit := range selected {
		passages[i] = hit.Passage
	}

	metrics.RetrievedPassages.Observe(float64(len(passages)))
	logger.Debug("Passages retrieved",
		zap.String("username", sess.User),
		zap.Int("candidates", len(hits)),
		zap.Int("selected", len(passages)),
	)
	return passages, nil
}

// Answer runs retrieval, composes the grounding prompt, invokes generation
// once, and records the exchange in the ledger. An empty passage set yields
// the fallback answer without a generation call.
func (e *Engine) Answer(ctx context.Context, sess session.Session, question string, llm LLM, ledger *session.Ledger) (*session.Exchange, []index.Passage, error) {
	start := time.Now()

	passages, err := e.Retrieve(ctx, sess, question, llm)
	if err != nil {
		e.countFailure(err)
		return nil, nil, err
	}

	answer, err := e.generate(ctx, question, passages, llm)
	if err != nil {
		e.countFailure(err)
		return nil, nil, err
	}

	// The answer is already paid for at this point; a sources lookup
	// failure must not discard it.
	filenames, err := e.db.ListFilenames(sess.User)
	if err != nil {
		logger.Warn("Failed to list filenames for exchange sources",
			zap.String("username", sess.User),
			zap.Error(err),
		)
		filenames = nil
	}

	exchange := ledger.Record(question, answer, e.modelName, strings.Join(filenames, ", "))

	metrics.QuestionTotal.WithLabelValues("success").Inc()
	metrics.QuestionDuration.Observe(time.Since(start).Seconds())

	logger.Info("Question answered",
		zap.String("username", sess.User),
		zap.Int("passages", len(passages)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &exchange, passages, nil
}

// ExportPassages dumps every indexed passage for the owner, in index order.
func (e *Engine) ExportPassages(sess session.Session) ([]index.Passage, error) {
	ix, err := e.indexes.Load(sess.User)
	if err != nil {
		return nil, err
	}
	return ix.Passages(), nil
}

func (e *Engine) generate(ctx context.Context, question string, passages []index.Passage, llm LLM) (string, error) {
	if len(passages) == 0 {
		return FallbackAnswer, nil
	}

	texts := make([]string, len(passages))
	for i, passage := range passages {
		texts[i] = passage.Text
	}
	prompt := fmt.Sprintf(promptTemplate, strings.Join(texts, "\n\n"), question)

	return llm.Generate(ctx, prompt)
}

func (e *Engine) embedQuery(ctx context.Context, query string, llm LLM) ([]float32, error) {
	if e.cache == nil {
		return llm.Embed(ctx, query)
	}

	hash := utils.HashString(query)
	if vector, ok, err := e.cache.GetEmbedding(ctx, hash); err == nil && ok {
		metrics.EmbeddingCacheHits.Inc()
		return vector, nil
	} else if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	}
	metrics.EmbeddingCacheMisses.Inc()

	vector, err := llm.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := e.cache.SetEmbedding(ctx, hash, vector); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}
	return vector, nil
}

func (e *Engine) countFailure(err error) {
	status := "error"
	if errors.Is(err, index.ErrNotFound) {
		status = "no_index"
	}
	metrics.QuestionTotal.WithLabelValues(status).Inc()
}

// maximalMarginalRelevance iteratively picks the hit maximizing
// lambda*relevance - (1-lambda)*maxSimilarityToSelected, trading relevance
// against redundancy so the selection is not a set of near-duplicates.
func maximalMarginalRelevance(hits []index.Hit, lambda float64, k int) []index.Hit {
	if k > len(hits) {
		k = len(hits)
	}

	remaining := make([]index.Hit, len(hits))
	copy(remaining, hits)

	selected := make([]index.Hit, 0, k)
	for len(selected) < k && len(remaining) > 0 {
		best := -1
		bestScore := math.Inf(-1)

		for i, candidate := range remaining {
			redundancy := 0.0
			for _, chosen := range selected {
				sim := float64(index.Cosine(candidate.Vector, chosen.Vector))
				if sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*float64(candidate.Score) - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				best = i
			}
		}

		selected = append(selected, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return selected
}

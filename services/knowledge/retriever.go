// Package knowledge implements the knowledge-base stage: embed the question,
// look up similar solved problems and turn them into ranked candidates.
package knowledge

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/upb/math-rag-agent/internal/rag"
	"github.com/upb/math-rag-agent/internal/routing"
	"github.com/upb/math-rag-agent/services"
)

const sourceName = "kb"

// Retriever queries the vector knowledge base.
type Retriever struct {
	embedder rag.Embedder
	index    rag.VectorIndex
	topK     int
	logger   *zap.Logger
}

// NewRetriever creates a knowledge-base retriever returning at most topK
// candidates.
func NewRetriever(embedder rag.Embedder, index rag.VectorIndex, topK int, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   logger,
	}
}

// Retrieve returns candidates ordered by descending confidence. Equal scores
// keep the index's order. An empty slice is a valid result; any embedder or
// index failure is reported as SourceUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]routing.Candidate, error) {
	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, services.NewSourceUnavailable(sourceName, err)
	}

	docs, err := r.index.Search(ctx, vector, r.topK)
	if err != nil {
		return nil, services.NewSourceUnavailable(sourceName, err)
	}
	if len(docs) > r.topK {
		docs = docs[:r.topK]
	}

	candidates := make([]routing.Candidate, 0, len(docs))
	for _, doc := range docs {
		candidates = append(candidates, routing.Candidate{
			Source:     routing.SourceKB,
			Answer:     doc.Solution,
			Confidence: clampScore(doc.Score),
			Metadata: map[string]interface{}{
				"id":      doc.ID,
				"problem": doc.Problem,
				"score":   doc.Score,
				"source":  doc.Source,
			},
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	for i := range candidates {
		candidates[i].Metadata["rank"] = i + 1
	}

	r.logger.Debug("knowledge base retrieval completed",
		zap.Int("results", len(candidates)),
	)
	return candidates, nil
}

// clampScore passes similarity through unchanged unless the index returned
// something outside [0,1].
func clampScore(score float64) float64 {
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

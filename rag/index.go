package rag

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/llms"
)

// Index is an in-memory vector index. Documents are embedded on Add and
// ranked by cosine similarity on Search. It is safe for concurrent use.
type Index struct {
	embedder llms.Embeddings

	mu      sync.RWMutex
	docs    []Document
	vectors [][]float32
}

// NewIndex creates an empty index embedding with e.
func NewIndex(e llms.Embeddings) *Index {
	return &Index{embedder: e}
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Add embeds docs in a single batch and indexes them. Documents without an
// ID get a generated one. A document whose ID is already indexed replaces
// the old entry.
func (ix *Index) Add(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return errs.Newf(errs.KindVectorStore, "embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return errs.Newf(errs.KindVectorStore, "embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i, d := range docs {
		if d.ID == "" {
			d.ID = "doc_" + uuid.NewString()
		}
		if at := slices.IndexFunc(ix.docs, func(o Document) bool { return o.ID == d.ID }); at >= 0 {
			ix.docs[at], ix.vectors[at] = d, vectors[i]
			continue
		}
		ix.docs = append(ix.docs, d)
		ix.vectors = append(ix.vectors, vectors[i])
	}
	return nil
}

// Search returns the k documents most similar to query, best first. Ties
// keep insertion order.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, errs.Newf(errs.KindValidation, "k must be positive, got %d", k)
	}
	q, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, errs.Newf(errs.KindRetriever, "embed query: %w", err)
	}

	ix.mu.RLock()
	results := make([]Result, len(ix.docs))
	for i, d := range ix.docs {
		results[i] = Result{Document: d, Score: cosine(q, ix.vectors[i])}
	}
	ix.mu.RUnlock()

	slices.SortStableFunc(results, func(a, b Result) int { return cmp.Compare(b.Score, a.Score) })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

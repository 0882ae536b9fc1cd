package llm

import (
	"context"
	"sync"

	"github.com/caardbot/caard/internal/types"
)

// QueryEmbedder wraps an Embedder with a single-slot cache holding the
// most recent query embedding, so the knowledge lookup and the image
// lookup of the same flow do not embed the same user message twice.
// Concurrent requests for different texts evict each other; that costs
// a cache miss, never a wrong vector.
type QueryEmbedder struct {
	inner Embedder

	mu     sync.Mutex
	text   string
	cached types.Embedding
	valid  bool
}

// NewQueryEmbedder creates the caching wrapper.
func NewQueryEmbedder(inner Embedder) *QueryEmbedder {
	return &QueryEmbedder{inner: inner}
}

// Model returns the underlying embedding model identifier.
func (q *QueryEmbedder) Model() string {
	return q.inner.Model()
}

// EmbedDocument delegates straight to the inner embedder. Document
// texts are never repeated within a request, so caching them would only
// evict the query slot.
func (q *QueryEmbedder) EmbedDocument(ctx context.Context, text string) (types.Embedding, error) {
	return q.inner.EmbedDocument(ctx, text)
}

// Embed returns the cached vector when the text matches the most recent
// query, otherwise delegates to the inner embedder. The cache slot is
// invalidated on any embedding error.
func (q *QueryEmbedder) Embed(ctx context.Context, text string) (types.Embedding, error) {
	q.mu.Lock()
	if q.valid && q.text == text {
		cached := q.cached
		q.mu.Unlock()
		return cached, nil
	}
	q.mu.Unlock()

	emb, err := q.inner.Embed(ctx, text)

	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		q.valid = false
		q.text = ""
		q.cached = types.Embedding{}
		return types.Embedding{}, err
	}
	q.text = text
	q.cached = emb
	q.valid = true
	return emb, nil
}

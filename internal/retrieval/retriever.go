// Package retrieval selects the best knowledge-base answer for a user
// message via embedding similarity.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caardbot/caard/internal/llm"
	"github.com/caardbot/caard/internal/similarity"
	"github.com/caardbot/caard/internal/types"
)

// KnowledgeSource lists knowledge entries that carry embeddings.
type KnowledgeSource interface {
	ListEmbedded(ctx context.Context) ([]types.KnowledgeEntry, error)
}

// Match is a knowledge-base hit above the similarity threshold.
type Match struct {
	Answer    string
	Guideline string
	Links     []types.Link
	Score     float64
}

// Render formats the match for inclusion in a system prompt, links as
// clickable anchors.
func (m *Match) Render() string {
	var sb strings.Builder
	sb.WriteString("Here's what I found:<br><br>")
	sb.WriteString(m.Answer)
	sb.WriteString("<br><br>Guideline: ")
	sb.WriteString(m.Guideline)
	sb.WriteString("<br>")
	if len(m.Links) > 0 {
		sb.WriteString("Relevant links:<br>")
		for i, link := range m.Links {
			if i > 0 {
				sb.WriteString("<br>")
			}
			sb.WriteString(fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`, link.URL, link.Text))
		}
	}
	return sb.String()
}

// Retriever ranks knowledge entries against the embedded user message.
type Retriever struct {
	embedder  llm.Embedder
	source    KnowledgeSource
	threshold float64
}

// NewRetriever creates a knowledge retriever. The embedder is expected
// to be the caching wrapper so image lookup can reuse the query vector.
func NewRetriever(embedder llm.Embedder, source KnowledgeSource, threshold float64) *Retriever {
	return &Retriever{
		embedder:  embedder,
		source:    source,
		threshold: threshold,
	}
}

// Lookup returns the best match above the threshold, or nil when there
// is none. An empty candidate set and a below-threshold best match are
// both "no match", never an error.
func (r *Retriever) Lookup(ctx context.Context, message string) (*Match, error) {
	if strings.TrimSpace(message) == "" {
		return nil, nil
	}

	query, err := r.embedder.Embed(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	entries, err := r.source.ListEmbedded(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge entries: %w", err)
	}
	if len(entries) == 0 {
		slog.Debug("no knowledge entries with embeddings")
		return nil, nil
	}

	ranked := similarity.RankByQuery(query, entries, func(e types.KnowledgeEntry) types.Embedding {
		return e.Embedding
	})
	if len(ranked) == 0 {
		return nil, nil
	}

	best := ranked[0]
	if best.Score < r.threshold {
		slog.Debug("best knowledge match below threshold", "score", best.Score, "threshold", r.threshold)
		return nil, nil
	}

	return &Match{
		Answer:    best.Item.Answer,
		Guideline: best.Item.Guideline,
		Links:     best.Item.Links,
		Score:     best.Score,
	}, nil
}

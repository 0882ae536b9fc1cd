package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/caardbot/caard/internal/llm"
	"github.com/caardbot/caard/internal/similarity"
	"github.com/caardbot/caard/internal/types"
)

// Result is the outcome of one tool dispatch. Text goes back to the
// model; Message, when HasMessage is set, is rendered directly to the
// user (e.g. an inline image). NSFW marks an image the client should
// blur by default.
type Result struct {
	Text       string
	HasMessage bool
	Message    string
	NSFW       bool
}

// TurnPurger deletes all stored conversation turns.
type TurnPurger interface {
	DeleteAll(ctx context.Context) (int64, error)
}

// ImageSource accesses the images collection.
type ImageSource interface {
	ListEmbedded(ctx context.Context) ([]types.ImageEntry, error)
	ListAll(ctx context.Context) ([]types.ImageEntry, error)
	UpdateEmbedding(ctx context.Context, id int, emb types.Embedding) error
}

// KnowledgeBatch accesses the knowledge collection for batch embedding.
type KnowledgeBatch interface {
	ListAll(ctx context.Context) ([]types.KnowledgeEntry, error)
	UpdateEmbedding(ctx context.Context, id int, emb types.Embedding) error
}

// defaultLinks is the static table behind the share-link tool.
var defaultLinks = map[string]types.Link{
	"twitter": {Text: "Twitter", URL: "https://twitter.com/caardbot"},
	"patreon": {Text: "Patreon", URL: "https://patreon.com/caardbot"},
	"website": {Text: "Website", URL: "https://caard.example.com"},
}

// Dispatcher executes tool calls against the store and providers.
// Errors never escape Dispatch; they collapse into safe results.
type Dispatcher struct {
	turns          TurnPurger
	images         ImageSource
	knowledge      KnowledgeBatch
	embedder       llm.Embedder
	imageThreshold float64
	links          map[string]types.Link
	pick           func(n int) int
}

// NewDispatcher creates a Dispatcher. The embedder should be the
// caching wrapper so send-image reuses the knowledge lookup's query
// vector for the same message.
func NewDispatcher(turns TurnPurger, images ImageSource, knowledge KnowledgeBatch, embedder llm.Embedder, imageThreshold float64) *Dispatcher {
	return &Dispatcher{
		turns:          turns,
		images:         images,
		knowledge:      knowledge,
		embedder:       embedder,
		imageThreshold: imageThreshold,
		links:          defaultLinks,
		pick:           rand.Intn,
	}
}

// Dispatch maps a model-issued tool call to its operation and executes
// it. Unknown names resolve to a safe "unavailable" result; execution
// failures resolve to a safe "error occurred" result. Never panics or
// returns an error to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, rawArgs any, userMessage string) Result {
	parsed, err := parseCall(name, rawArgs)
	if err != nil {
		var invalid *InvalidArgumentsError
		if errors.As(err, &invalid) {
			slog.Error("failed to decode tool arguments", "tool", name, "error", err.Error())
			return Result{Text: "Error occurred while executing the tool.", HasMessage: true}
		}
		slog.Warn("no implementation found for tool", "tool", name)
		return Result{Text: "Tell the user current action is unavailable."}
	}

	var result Result
	switch c := parsed.(type) {
	case purgeHistoryCall:
		result = d.purgeHistory(ctx)
	case sendImageCall:
		result = d.sendImage(ctx, userMessage)
	case generateEmbeddingsCall:
		result = d.generateEmbeddings(ctx, c.Target)
	case shareLinkCall:
		result = d.shareLink(c.Name)
	default:
		// Unreachable: parseCall rejects unknown names.
		result = Result{Text: "Tell the user current action is unavailable."}
	}
	return result
}

// purgeHistory produces no user-visible message of its own; the
// follow-up model call confirms the deletion in the character's voice.
func (d *Dispatcher) purgeHistory(ctx context.Context) Result {
	count, err := d.turns.DeleteAll(ctx)
	if err != nil {
		slog.Error("failed to delete chat history", "error", err.Error())
		return Result{Text: "An error occurred while deleting chat history."}
	}
	return Result{Text: fmt.Sprintf("All chat history deleted successfully. %d records were removed.", count)}
}

func (d *Dispatcher) sendImage(ctx context.Context, userMessage string) Result {
	if strings.TrimSpace(userMessage) == "" {
		return Result{Text: "Invalid user message. Cannot find an image."}
	}

	query, err := d.embedder.Embed(ctx, userMessage)
	if err != nil {
		slog.Error("failed to embed message for image search", "error", err.Error())
		return Result{Text: "An error occurred while finding an image."}
	}

	images, err := d.images.ListEmbedded(ctx)
	if err != nil {
		slog.Error("failed to load images", "error", err.Error())
		return Result{Text: "An error occurred while finding an image."}
	}
	if len(images) == 0 {
		return Result{Text: "No images available that match your description."}
	}

	ranked := similarity.RankByQuery(query, images, func(e types.ImageEntry) types.Embedding {
		return e.Embedding
	})
	matches := similarity.FilterByThreshold(ranked, d.imageThreshold)
	if len(matches) == 0 {
		return Result{Text: "No matching images found."}
	}

	// Uniformly random among matches, not the top match: repeat requests
	// should surface different images.
	chosen := matches[d.pick(len(matches))].Item
	return Result{
		Text:       fmt.Sprintf("You have successfully sent an image to the user, the image description: %s", chosen.Description),
		HasMessage: true,
		Message: fmt.Sprintf(
			`<img src="%s" alt="%s" class="clickable-image" style="max-width: 400px; max-height: 400px; border-radius: 10px; object-fit: contain;">`,
			chosen.URL, chosen.Description),
		NSFW: chosen.HasTag("nsfw"),
	}
}

func (d *Dispatcher) generateEmbeddings(ctx context.Context, target string) Result {
	start := time.Now()

	var updated int
	var totalCost float64
	var err error
	switch target {
	case types.CollectionKnowledge:
		updated, totalCost, err = d.embedKnowledge(ctx)
	case types.CollectionImages:
		updated, totalCost, err = d.embedImages(ctx)
	default:
		return Result{Text: fmt.Sprintf("Unknown target collection %q for embedding generation.", target)}
	}
	if err != nil {
		slog.Error("failed to generate embeddings", "target", target, "error", err.Error())
		return Result{Text: "An error occurred while generating embeddings."}
	}

	duration := time.Since(start)
	return Result{
		Text:       fmt.Sprintf("Successfully updated embeddings for %d entries in %s.", updated, target),
		HasMessage: true,
		Message: fmt.Sprintf("Embeddings generation completed for %s. %d entries updated. Total cost: $%.6f. Duration: %s",
			target, updated, totalCost, duration.Round(time.Millisecond)),
	}
}

func (d *Dispatcher) embedKnowledge(ctx context.Context) (int, float64, error) {
	entries, err := d.knowledge.ListAll(ctx)
	if err != nil {
		return 0, 0, err
	}
	price, err := llm.PriceFor(d.embedder.Model())
	if err != nil {
		return 0, 0, err
	}

	var updated int
	var totalCost float64
	for _, entry := range entries {
		input := embeddingInput(entry.Question, entry.Tags)
		emb, ok := d.embedEntry(ctx, entry.ID, input)
		if !ok {
			continue
		}
		if err := d.knowledge.UpdateEmbedding(ctx, entry.ID, emb); err != nil {
			slog.Error("failed to store knowledge embedding", "id", entry.ID, "error", err.Error())
			continue
		}
		totalCost += float64(llm.EstimateTokens(input)) * price.Input
		updated++
	}
	return updated, totalCost, nil
}

func (d *Dispatcher) embedImages(ctx context.Context) (int, float64, error) {
	entries, err := d.images.ListAll(ctx)
	if err != nil {
		return 0, 0, err
	}
	price, err := llm.PriceFor(d.embedder.Model())
	if err != nil {
		return 0, 0, err
	}

	var updated int
	var totalCost float64
	for _, entry := range entries {
		input := embeddingInput(entry.Description, entry.Tags)
		emb, ok := d.embedEntry(ctx, entry.ID, input)
		if !ok {
			continue
		}
		if err := d.images.UpdateEmbedding(ctx, entry.ID, emb); err != nil {
			slog.Error("failed to store image embedding", "id", entry.ID, "error", err.Error())
			continue
		}
		totalCost += float64(llm.EstimateTokens(input)) * price.Input
		updated++
	}
	return updated, totalCost, nil
}

// embedEntry embeds one batch entry as a document vector. The embedder
// retries transient failures internally; exhaustion skips the entry so
// one failure never aborts the whole batch.
func (d *Dispatcher) embedEntry(ctx context.Context, id int, input string) (types.Embedding, bool) {
	if strings.TrimSpace(input) == "" {
		slog.Warn("skipping entry with empty input text", "id", id)
		return types.Embedding{}, false
	}
	emb, err := d.embedder.EmbedDocument(ctx, input)
	if err != nil {
		slog.Error("skipping entry after embedding retries exhausted", "id", id, "error", err.Error())
		return types.Embedding{}, false
	}
	return emb, true
}

func embeddingInput(text string, tags []string) string {
	if len(tags) == 0 {
		return text
	}
	return text + " " + strings.Join(tags, " ")
}

func (d *Dispatcher) shareLink(name string) Result {
	if name == "all" {
		parts := make([]string, 0, len(d.links))
		for _, key := range []string{"twitter", "patreon", "website"} {
			if link, ok := d.links[key]; ok {
				parts = append(parts, formatLink(link))
			}
		}
		return Result{
			Text:       "You have shared all known links with the user.",
			HasMessage: true,
			Message:    strings.Join(parts, "<br>"),
		}
	}

	link, ok := d.links[strings.ToLower(name)]
	if !ok {
		return Result{Text: fmt.Sprintf("No link available for %q.", name)}
	}
	return Result{
		Text:       fmt.Sprintf("You have shared the %s link with the user.", link.Text),
		HasMessage: true,
		Message:    formatLink(link),
	}
}

func formatLink(link types.Link) string {
	return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`, link.URL, link.Text)
}

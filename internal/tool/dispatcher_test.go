package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/caardbot/caard/internal/llm"
	"github.com/caardbot/caard/internal/types"
)

type mockPurger struct {
	deleted int64
	err     error
	calls   int
}

func (m *mockPurger) DeleteAll(context.Context) (int64, error) {
	m.calls++
	return m.deleted, m.err
}

type mockImages struct {
	embedded []types.ImageEntry
	all      []types.ImageEntry
	updates  []int
	listErr  error
}

func (m *mockImages) ListEmbedded(context.Context) ([]types.ImageEntry, error) {
	return m.embedded, m.listErr
}

func (m *mockImages) ListAll(context.Context) ([]types.ImageEntry, error) {
	return m.all, m.listErr
}

func (m *mockImages) UpdateEmbedding(_ context.Context, id int, _ types.Embedding) error {
	m.updates = append(m.updates, id)
	return nil
}

type mockKnowledge struct {
	all     []types.KnowledgeEntry
	updates []int
}

func (m *mockKnowledge) ListAll(context.Context) ([]types.KnowledgeEntry, error) {
	return m.all, nil
}

func (m *mockKnowledge) UpdateEmbedding(_ context.Context, id int, _ types.Embedding) error {
	m.updates = append(m.updates, id)
	return nil
}

type stubEmbedder struct {
	vector    []float32
	err       error
	failOn    string
	inputs    []string
	docInputs []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (types.Embedding, error) {
	s.inputs = append(s.inputs, text)
	return s.result(text)
}

func (s *stubEmbedder) EmbedDocument(_ context.Context, text string) (types.Embedding, error) {
	s.docInputs = append(s.docInputs, text)
	return s.result(text)
}

func (s *stubEmbedder) result(text string) (types.Embedding, error) {
	if s.err != nil {
		return types.Embedding{}, s.err
	}
	if s.failOn != "" && strings.Contains(text, s.failOn) {
		return types.Embedding{}, errors.New("provider failure")
	}
	return types.Embedding{Values: s.vector, Model: "text-embedding-004"}, nil
}

func (s *stubEmbedder) Model() string { return "text-embedding-004" }

var _ llm.Embedder = (*stubEmbedder)(nil)

func newTestDispatcher(purger *mockPurger, images *mockImages, knowledge *mockKnowledge, embedder *stubEmbedder) *Dispatcher {
	d := NewDispatcher(purger, images, knowledge, embedder, 0.7)
	d.pick = func(int) int { return 0 }
	return d
}

func TestDispatchUnknownToolIsSafe(t *testing.T) {
	d := newTestDispatcher(&mockPurger{}, &mockImages{}, &mockKnowledge{}, &stubEmbedder{})

	result := d.Dispatch(context.Background(), "frobnicate", nil, "hello")
	if result.HasMessage {
		t.Fatal("unknown tool must not produce a user-visible message")
	}
	if !strings.Contains(result.Text, "unavailable") {
		t.Fatalf("expected unavailable indicator, got %q", result.Text)
	}
}

func TestDispatchPurgeHistory(t *testing.T) {
	purger := &mockPurger{deleted: 7}
	d := newTestDispatcher(purger, &mockImages{}, &mockKnowledge{}, &stubEmbedder{})

	result := d.Dispatch(context.Background(), NamePurgeHistory, nil, "delete everything")
	if purger.calls != 1 {
		t.Fatalf("expected one purge call, got %d", purger.calls)
	}
	if !strings.Contains(result.Text, "7 records were removed") {
		t.Fatalf("expected count-bearing confirmation, got %q", result.Text)
	}
	if result.HasMessage {
		t.Fatal("purge must not emit its own message, the follow-up reply covers it")
	}
}

func TestDispatchPurgeHistoryStoreFailure(t *testing.T) {
	purger := &mockPurger{err: errors.New("db down")}
	d := newTestDispatcher(purger, &mockImages{}, &mockKnowledge{}, &stubEmbedder{})

	result := d.Dispatch(context.Background(), NamePurgeHistory, nil, "delete everything")
	if !strings.Contains(result.Text, "error occurred") && !strings.Contains(result.Text, "An error occurred") {
		t.Fatalf("expected safe error result, got %q", result.Text)
	}
}

func TestDispatchSendImagePicksAmongMatches(t *testing.T) {
	vec := []float32{1, 0}
	images := &mockImages{embedded: []types.ImageEntry{
		{URL: "https://img/1.png", Description: "a cat", Embedding: types.Embedding{Values: []float32{1, 0}, Model: "text-embedding-004"}},
		{URL: "https://img/2.png", Description: "a dog", Embedding: types.Embedding{Values: []float32{0, 1}, Model: "text-embedding-004"}},
	}}
	d := newTestDispatcher(&mockPurger{}, images, &mockKnowledge{}, &stubEmbedder{vector: vec})

	result := d.Dispatch(context.Background(), NameSendImage, "{}", "show me a cat")
	if !result.HasMessage {
		t.Fatal("expected an inline image message")
	}
	if !strings.Contains(result.Message, `<img src="https://img/1.png"`) {
		t.Fatalf("expected the matching image, got %q", result.Message)
	}
	if result.NSFW {
		t.Fatal("untagged image must not be flagged")
	}
}

func TestDispatchSendImageFlagsNSFW(t *testing.T) {
	images := &mockImages{embedded: []types.ImageEntry{
		{URL: "https://img/3.png", Description: "late night", Tags: []string{"nsfw"},
			Embedding: types.Embedding{Values: []float32{1, 0}, Model: "text-embedding-004"}},
	}}
	d := newTestDispatcher(&mockPurger{}, images, &mockKnowledge{}, &stubEmbedder{vector: []float32{1, 0}})

	result := d.Dispatch(context.Background(), NameSendImage, nil, "send a picture")
	if !result.NSFW {
		t.Fatal("nsfw-tagged image must carry the flag")
	}
}

func TestDispatchSendImageNoEmbeddedImages(t *testing.T) {
	d := newTestDispatcher(&mockPurger{}, &mockImages{}, &mockKnowledge{}, &stubEmbedder{vector: []float32{1}})

	result := d.Dispatch(context.Background(), NameSendImage, nil, "show me a cat")
	if result.HasMessage {
		t.Fatal("no-image outcome must not carry a message")
	}
	if !strings.Contains(result.Text, "No images available") {
		t.Fatalf("expected no-images result, got %q", result.Text)
	}
}

func TestDispatchSendImageBelowThreshold(t *testing.T) {
	images := &mockImages{embedded: []types.ImageEntry{
		{URL: "https://img/1.png", Description: "a dog", Embedding: types.Embedding{Values: []float32{0, 1}, Model: "text-embedding-004"}},
	}}
	d := newTestDispatcher(&mockPurger{}, images, &mockKnowledge{}, &stubEmbedder{vector: []float32{1, 0}})

	result := d.Dispatch(context.Background(), NameSendImage, nil, "show me a cat")
	if !strings.Contains(result.Text, "No matching images") {
		t.Fatalf("expected no-match result, got %q", result.Text)
	}
}

func TestDispatchGenerateEmbeddingsSkipsFailingEntry(t *testing.T) {
	knowledge := &mockKnowledge{all: []types.KnowledgeEntry{
		{ID: 1, Question: "what is caard", Tags: []string{"about"}},
		{ID: 2, Question: "broken entry", Tags: nil},
		{ID: 3, Question: "how to login", Tags: []string{"auth"}},
	}}
	embedder := &stubEmbedder{vector: []float32{1}, failOn: "broken"}
	d := newTestDispatcher(&mockPurger{}, &mockImages{}, knowledge, embedder)

	result := d.Dispatch(context.Background(), NameGenerateEmbeddings,
		`{"targetCollection":"knowledge_base"}`, "")
	if !strings.Contains(result.Text, "2 entries") {
		t.Fatalf("expected 2 updated entries, got %q", result.Text)
	}
	if len(knowledge.updates) != 2 {
		t.Fatalf("one failing entry must not abort the batch, got updates %v", knowledge.updates)
	}
}

func TestDispatchGenerateEmbeddingsImagesTarget(t *testing.T) {
	images := &mockImages{all: []types.ImageEntry{
		{ID: 5, Description: "a cat", Tags: []string{"cat", "cute"}},
	}}
	embedder := &stubEmbedder{vector: []float32{1}}
	d := newTestDispatcher(&mockPurger{}, images, &mockKnowledge{}, embedder)

	result := d.Dispatch(context.Background(), NameGenerateEmbeddings,
		map[string]any{"targetCollection": "images"}, "")
	if len(images.updates) != 1 || images.updates[0] != 5 {
		t.Fatalf("expected image 5 updated, got %v", images.updates)
	}
	if len(embedder.docInputs) != 1 || embedder.docInputs[0] != "a cat cat cute" {
		t.Fatalf("expected description+tags document input, got %v", embedder.docInputs)
	}
	if len(embedder.inputs) != 0 {
		t.Fatalf("stored entries must be embedded as documents, not queries, got query inputs %v", embedder.inputs)
	}
	if !result.HasMessage {
		t.Fatal("batch result should carry a user-visible report")
	}
}

func TestDispatchMalformedJSONArguments(t *testing.T) {
	d := newTestDispatcher(&mockPurger{}, &mockImages{}, &mockKnowledge{}, &stubEmbedder{})

	result := d.Dispatch(context.Background(), NameGenerateEmbeddings, "{not json", "")
	if !strings.Contains(result.Text, "Error occurred") {
		t.Fatalf("expected safe error result for malformed arguments, got %q", result.Text)
	}
}

func TestDispatchShareLink(t *testing.T) {
	d := newTestDispatcher(&mockPurger{}, &mockImages{}, &mockKnowledge{}, &stubEmbedder{})

	single := d.Dispatch(context.Background(), NameShareLink, `{"name":"twitter"}`, "")
	if !single.HasMessage || !strings.Contains(single.Message, "twitter.com") {
		t.Fatalf("expected twitter link, got %+v", single)
	}

	all := d.Dispatch(context.Background(), NameShareLink, `{"name":"all"}`, "")
	if !all.HasMessage {
		t.Fatal("expected all-links message")
	}
	for _, want := range []string{"twitter.com", "patreon.com"} {
		if !strings.Contains(all.Message, want) {
			t.Fatalf("expected %q in concatenated links, got %q", want, all.Message)
		}
	}
}

func TestRegistryFiltersAdminTools(t *testing.T) {
	source := &staticToolSource{defs: []types.ToolDefinition{
		{Name: "sendImage"},
		{Name: "deleteAllChatHistory", ForAdmin: true},
	}}
	registry := NewRegistry(source)

	public, err := registry.List(context.Background(), false)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(public) != 1 || public[0].Name != "sendImage" {
		t.Fatalf("expected admin tools filtered out, got %+v", public)
	}

	admin, err := registry.List(context.Background(), true)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(admin) != 2 {
		t.Fatalf("expected all tools for admins, got %+v", admin)
	}
}

type staticToolSource struct {
	defs []types.ToolDefinition
}

func (s *staticToolSource) List(context.Context) ([]types.ToolDefinition, error) {
	return s.defs, nil
}

var _ Source = (*staticToolSource)(nil)

package types

// Logical collection names in the document store.
const (
	CollectionChatHistory = "chat_history"
	CollectionCharacters  = "characters"
	CollectionKnowledge   = "knowledge_base"
	CollectionImages      = "images"
	CollectionFunctions   = "functions"
)

// Embedding is a fixed-length vector tagged with the model that produced
// it. Vectors from different models live in different semantic spaces and
// must never be compared.
type Embedding struct {
	Values []float32 `json:"values"`
	Model  string    `json:"model"`
}

// IsZero reports whether no embedding has been computed yet.
func (e Embedding) IsZero() bool {
	return len(e.Values) == 0
}

// Link is a clickable reference attached to a knowledge entry.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// KnowledgeEntry is one retrievable Q/A record. Entries without an
// embedding are excluded from similarity search.
type KnowledgeEntry struct {
	ID        int       `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Guideline string    `json:"guideline"`
	Links     []Link    `json:"links"`
	Tags      []string  `json:"tags"`
	Embedding Embedding `json:"-"`
}

// ImageEntry is one retrievable image record.
type ImageEntry struct {
	ID          int       `json:"id"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Embedding   Embedding `json:"-"`
}

// HasTag reports whether the entry carries the given tag.
func (e ImageEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

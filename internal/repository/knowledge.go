package repository

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/caardbot/caard/internal/types"
)

type knowledgeModel struct {
	ID             int
	Question       string
	Answer         string
	Guideline      string
	Links          []types.Link     `gorm:"serializer:json"`
	Tags           []string         `gorm:"serializer:json"`
	Embedding      *pgvector.Vector `gorm:"type:vector"`
	EmbeddingModel string
}

func (knowledgeModel) TableName() string {
	return types.CollectionKnowledge
}

// KnowledgeRepo accesses the knowledge base collection.
type KnowledgeRepo struct {
	db *gorm.DB
}

// NewKnowledgeRepo returns a KnowledgeRepo.
func NewKnowledgeRepo(db *gorm.DB) *KnowledgeRepo {
	return &KnowledgeRepo{db: db}
}

// ListEmbedded returns entries that already carry an embedding; only
// those participate in similarity search.
func (r *KnowledgeRepo) ListEmbedded(ctx context.Context) ([]types.KnowledgeEntry, error) {
	var records []knowledgeModel
	if err := r.db.WithContext(ctx).
		Where("embedding IS NOT NULL").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}
	entries := make([]types.KnowledgeEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, knowledgeFromModel(record))
	}
	return entries, nil
}

// ListAll returns every entry, embedded or not, for batch embedding.
func (r *KnowledgeRepo) ListAll(ctx context.Context) ([]types.KnowledgeEntry, error) {
	var records []knowledgeModel
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}
	entries := make([]types.KnowledgeEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, knowledgeFromModel(record))
	}
	return entries, nil
}

// UpdateEmbedding writes an embedding and its producing model back onto
// an entry.
func (r *KnowledgeRepo) UpdateEmbedding(ctx context.Context, id int, emb types.Embedding) error {
	vector := pgvector.NewVector(emb.Values)
	if err := r.db.WithContext(ctx).
		Model(&knowledgeModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"embedding":       vector,
			"embedding_model": emb.Model,
		}).Error; err != nil {
		return fmt.Errorf("failed to update knowledge embedding: %w", err)
	}
	return nil
}

func knowledgeFromModel(model knowledgeModel) types.KnowledgeEntry {
	entry := types.KnowledgeEntry{
		ID:        model.ID,
		Question:  model.Question,
		Answer:    model.Answer,
		Guideline: model.Guideline,
		Links:     model.Links,
		Tags:      model.Tags,
	}
	if model.Embedding != nil {
		entry.Embedding = types.Embedding{
			Values: model.Embedding.Slice(),
			Model:  model.EmbeddingModel,
		}
	}
	return entry
}

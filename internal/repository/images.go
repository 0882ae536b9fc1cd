package repository

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/caardbot/caard/internal/types"
)

type imageModel struct {
	ID             int
	URL            string
	Description    string
	Tags           []string         `gorm:"serializer:json"`
	Embedding      *pgvector.Vector `gorm:"type:vector"`
	EmbeddingModel string
}

func (imageModel) TableName() string {
	return types.CollectionImages
}

// ImageRepo accesses the images collection.
type ImageRepo struct {
	db *gorm.DB
}

// NewImageRepo returns an ImageRepo.
func NewImageRepo(db *gorm.DB) *ImageRepo {
	return &ImageRepo{db: db}
}

// ListEmbedded returns images that already carry an embedding.
func (r *ImageRepo) ListEmbedded(ctx context.Context) ([]types.ImageEntry, error) {
	var records []imageModel
	if err := r.db.WithContext(ctx).
		Where("embedding IS NOT NULL").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	entries := make([]types.ImageEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, imageFromModel(record))
	}
	return entries, nil
}

// ListAll returns every image, embedded or not, for batch embedding.
func (r *ImageRepo) ListAll(ctx context.Context) ([]types.ImageEntry, error) {
	var records []imageModel
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	entries := make([]types.ImageEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, imageFromModel(record))
	}
	return entries, nil
}

// UpdateEmbedding writes an embedding and its producing model back onto
// an image.
func (r *ImageRepo) UpdateEmbedding(ctx context.Context, id int, emb types.Embedding) error {
	vector := pgvector.NewVector(emb.Values)
	if err := r.db.WithContext(ctx).
		Model(&imageModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"embedding":       vector,
			"embedding_model": emb.Model,
		}).Error; err != nil {
		return fmt.Errorf("failed to update image embedding: %w", err)
	}
	return nil
}

func imageFromModel(model imageModel) types.ImageEntry {
	entry := types.ImageEntry{
		ID:          model.ID,
		URL:         model.URL,
		Description: model.Description,
		Tags:        model.Tags,
	}
	if model.Embedding != nil {
		entry.Embedding = types.Embedding{
			Values: model.Embedding.Slice(),
			Model:  model.EmbeddingModel,
		}
	}
	return entry
}

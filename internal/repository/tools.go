package repository

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/caardbot/caard/internal/types"
)

type toolModel struct {
	ID             int
	Name           string
	Description    string
	Parameters     *jsonschema.Schema `gorm:"serializer:json"`
	ForAdmin       bool
	Embedding      *pgvector.Vector `gorm:"type:vector"`
	EmbeddingModel string
}

func (toolModel) TableName() string {
	return types.CollectionFunctions
}

// ToolRepo accesses the callable function definitions.
type ToolRepo struct {
	db *gorm.DB
}

// NewToolRepo returns a ToolRepo.
func NewToolRepo(db *gorm.DB) *ToolRepo {
	return &ToolRepo{db: db}
}

// List returns every stored tool definition.
func (r *ToolRepo) List(ctx context.Context) ([]types.ToolDefinition, error) {
	var records []toolModel
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query functions: %w", err)
	}
	defs := make([]types.ToolDefinition, 0, len(records))
	for _, record := range records {
		defs = append(defs, toolFromModel(record))
	}
	return defs, nil
}

func toolFromModel(model toolModel) types.ToolDefinition {
	def := types.ToolDefinition{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		Parameters:  model.Parameters,
		ForAdmin:    model.ForAdmin,
	}
	if model.Embedding != nil {
		def.Embedding = types.Embedding{
			Values: model.Embedding.Slice(),
			Model:  model.EmbeddingModel,
		}
	}
	return def
}

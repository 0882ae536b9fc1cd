// Package tool loads callable function definitions and dispatches
// model-issued tool calls to concrete operations.
package tool

import (
	"context"
	"fmt"

	"github.com/caardbot/caard/internal/types"
)

// Source lists stored tool definitions.
type Source interface {
	List(ctx context.Context) ([]types.ToolDefinition, error)
}

// Registry filters stored tool definitions by privilege.
type Registry struct {
	source Source
}

// NewRegistry returns a Registry over the given source.
func NewRegistry(source Source) *Registry {
	return &Registry{source: source}
}

// List returns the tools available to the caller. Admin-only tools are
// excluded unless the caller is privileged.
func (r *Registry) List(ctx context.Context, isAdmin bool) ([]types.ToolDefinition, error) {
	defs, err := r.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	filtered := make([]types.ToolDefinition, 0, len(defs))
	for _, def := range defs {
		if def.ForAdmin && !isAdmin {
			continue
		}
		filtered = append(filtered, def)
	}
	return filtered, nil
}

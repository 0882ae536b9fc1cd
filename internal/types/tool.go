package types

import "github.com/google/jsonschema-go/jsonschema"

// ToolDefinition describes a function the model may invoke.
type ToolDefinition struct {
	ID          int                `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	ForAdmin    bool               `json:"forAdmin"`
	Embedding   Embedding          `json:"-"`
}

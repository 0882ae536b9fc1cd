package tool

import (
	"encoding/json"
	"fmt"

	"github.com/caardbot/caard/internal/types"
)

// Built-in tool names as stored in the functions collection.
const (
	NamePurgeHistory       = "deleteAllChatHistory"
	NameSendImage          = "sendImage"
	NameGenerateEmbeddings = "generateEmbeddings"
	NameShareLink          = "shareLink"
)

// InvalidArgumentsError marks a tool-call payload that could not be
// decoded. It is absorbed into a safe result at the dispatch boundary.
type InvalidArgumentsError struct {
	Name string
	Err  error
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %v", e.Name, e.Err)
}

func (e *InvalidArgumentsError) Unwrap() error { return e.Err }

// call is the closed union of executable tool kinds. Unknown names are
// rejected at the boundary before a variant is constructed.
type call interface {
	isCall()
}

type purgeHistoryCall struct{}

type sendImageCall struct{}

type generateEmbeddingsCall struct {
	Target string
}

type shareLinkCall struct {
	Name string
}

func (purgeHistoryCall) isCall()       {}
func (sendImageCall) isCall()          {}
func (generateEmbeddingsCall) isCall() {}
func (shareLinkCall) isCall()          {}

// parseCall validates the tool name and decodes its argument payload
// into the matching variant. Arguments may arrive as a JSON-encoded
// string or an already structured map.
func parseCall(name string, rawArgs any) (call, error) {
	args, err := decodeArguments(name, rawArgs)
	if err != nil {
		return nil, err
	}

	switch name {
	case NamePurgeHistory:
		return purgeHistoryCall{}, nil
	case NameSendImage:
		return sendImageCall{}, nil
	case NameGenerateEmbeddings:
		target, _ := args["targetCollection"].(string)
		if target == "" {
			target = types.CollectionKnowledge
		}
		return generateEmbeddingsCall{Target: target}, nil
	case NameShareLink:
		linkName, _ := args["name"].(string)
		if linkName == "" {
			linkName = "all"
		}
		return shareLinkCall{Name: linkName}, nil
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func decodeArguments(name string, rawArgs any) (map[string]any, error) {
	switch v := rawArgs.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if v == "" {
			return map[string]any{}, nil
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(v), &args); err != nil {
			return nil, &InvalidArgumentsError{Name: name, Err: err}
		}
		return args, nil
	default:
		return nil, &InvalidArgumentsError{Name: name, Err: fmt.Errorf("unsupported payload type %T", rawArgs)}
	}
}

package tool

import (
	"context"
	"encoding/json"

	"github.com/bytedance/sonic"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/schema"
	"github.com/smallnest/agentgraph/store"
)

// Tool is a named function a model can call. Arguments arrive as the raw
// JSON the model produced.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema of the arguments, or nil.
	Parameters() map[string]any
	Call(ctx context.Context, args json.RawMessage) (any, error)
}

// RuntimeAwareTool is a Tool that wants the runtime of the call. The tool
// node calls CallWithRuntime instead of Call.
type RuntimeAwareTool interface {
	Tool
	CallWithRuntime(ctx context.Context, args json.RawMessage, rt *Runtime) (any, error)
}

// ConcurrencySafeTool lets a tool opt out of concurrent dispatch.
type ConcurrencySafeTool interface {
	ConcurrencySafe() bool
}

// Runtime is what a tool sees of the graph run that called it.
type Runtime struct {
	// Store is the graph's K/V store, or nil.
	Store store.Store
	// StreamWriter delivers custom stream events; it discards when the run
	// is not streamed.
	StreamWriter graph.StreamWriter
	// State is the JSON encoding of the state at dispatch time. Changing it
	// does not change the run.
	State json.RawMessage
	// ToolCallID is the id of the call being served.
	ToolCallID string
	// Config is the run's config, or nil.
	Config *graph.Config
}

// Call invokes t, passing rt to runtime-aware tools.
func Call(ctx context.Context, t Tool, args json.RawMessage, rt *Runtime) (any, error) {
	if rat, ok := t.(RuntimeAwareTool); ok {
		return rat.CallWithRuntime(ctx, args, rt)
	}
	return t.Call(ctx, args)
}

// Definition describes t to a chat model.
func Definition(t Tool) schema.ToolDefinition {
	return schema.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// Definitions describes every tool in order.
func Definitions(tools []Tool) []schema.ToolDefinition {
	defs := make([]schema.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition(t))
	}
	return defs
}

// FormatResult renders a tool result as message content. Strings and raw
// JSON are used as they are; anything else is JSON-encoded.
func FormatResult(v any) (string, error) {
	switch r := v.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case json.RawMessage:
		return string(r), nil
	case []byte:
		return string(r), nil
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return "", errs.Newf(errs.KindTool, "encode result: %w", err)
	}
	return string(data), nil
}

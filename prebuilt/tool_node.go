package prebuilt

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/schema"
	"github.com/smallnest/agentgraph/tool"
	"golang.org/x/sync/errgroup"
)

// ToolNode executes the tool calls of the last AI message and appends one
// tool message per call, in the order the calls appear.
type ToolNode struct {
	registry *tool.Registry
	logger   log.Logger
}

var _ graph.Node[schema.MessageState] = (*ToolNode)(nil)

// ToolNodeOption configures a ToolNode.
type ToolNodeOption func(*ToolNode)

// WithToolNodeLogger sets the logger for tool failures.
func WithToolNodeLogger(l log.Logger) ToolNodeOption {
	return func(n *ToolNode) {
		n.logger = l
	}
}

// WithConcurrentTools lets calls to concurrency-safe tools run in parallel.
func WithConcurrentTools(enabled bool) ToolNodeOption {
	return func(n *ToolNode) {
		n.registry.SetConcurrent(enabled)
	}
}

// NewToolNode registers tools in a new registry.
func NewToolNode(tools []tool.Tool, opts ...ToolNodeOption) (*ToolNode, error) {
	registry, err := tool.NewRegistry(tools...)
	if err != nil {
		return nil, err
	}
	return NewToolNodeFromRegistry(registry, opts...), nil
}

// NewToolNodeFromRegistry uses an existing registry. Its concurrency flag
// decides whether calls may overlap.
func NewToolNodeFromRegistry(registry *tool.Registry, opts ...ToolNodeOption) *ToolNode {
	n := &ToolNode{registry: registry, logger: log.GetDefaultLogger()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Registry returns the tools the node dispatches to.
func (n *ToolNode) Registry() *tool.Registry {
	return n.registry
}

func (n *ToolNode) Process(ctx context.Context, state schema.MessageState) (graph.NodeOutput[schema.MessageState], error) {
	msgs, err := n.Run(ctx, state)
	if err != nil {
		return graph.NodeOutput[schema.MessageState]{}, err
	}
	return graph.StateOutput(state.Merge(schema.MessageState{Messages: msgs})), nil
}

// Run executes the calls and returns the tool messages without touching
// state. Tool failures become message content; only a malformed state or a
// cancelled context is an error.
func (n *ToolNode) Run(ctx context.Context, state schema.MessageState) ([]schema.Message, error) {
	last, ok := state.Last()
	if !ok || last.Role != schema.RoleAI {
		return nil, errs.New(errs.KindTool, "last message is not an AI message")
	}
	calls := last.ToolCalls
	if len(calls) == 0 {
		return nil, nil
	}

	encoded, err := sonic.Marshal(state)
	if err != nil {
		return nil, errs.Newf(errs.KindTool, "serialize state: %w", err)
	}
	base := tool.Runtime{
		Store:        graph.GetStore(ctx),
		StreamWriter: graph.GetStreamWriter(ctx),
		State:        encoded,
		Config:       graph.GetConfig(ctx),
	}

	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}

	results := make([]schema.Message, len(calls))
	if len(calls) > 1 && n.registry.ConcurrencySafe(names...) {
		g, gctx := errgroup.WithContext(ctx)
		for i, c := range calls {
			g.Go(func() error {
				results[i] = n.invoke(gctx, c, base)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, c := range calls {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = n.invoke(ctx, c, base)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (n *ToolNode) invoke(ctx context.Context, call schema.ToolCall, base tool.Runtime) schema.Message {
	t, ok := n.registry.Get(call.Name)
	if !ok {
		n.logger.Warn("tool not found: %s", call.Name)
		return toolMessage(call, "tool not found: "+call.Name)
	}

	rt := base
	rt.ToolCallID = call.ID
	out, err := tool.Call(ctx, t, call.Arguments, &rt)
	if err != nil {
		n.logger.Warn("tool %s failed: %v", call.Name, err)
		return toolMessage(call, err.Error())
	}

	content, err := tool.FormatResult(out)
	if err != nil {
		n.logger.Warn("tool %s returned an unencodable result: %v", call.Name, err)
		return toolMessage(call, err.Error())
	}
	return toolMessage(call, content)
}

func toolMessage(call schema.ToolCall, content string) schema.Message {
	m := schema.ToolMessage(content, call.ID)
	m.Name = call.Name
	return m
}

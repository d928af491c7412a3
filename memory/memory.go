package memory

import (
	"context"
	"slices"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/prebuilt"
	"github.com/smallnest/agentgraph/schema"
)

// Strategy picks the part of a conversation a model call sees. It must not
// modify msgs.
type Strategy interface {
	Select(ctx context.Context, msgs []schema.Message) ([]schema.Message, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, msgs []schema.Message) ([]schema.Message, error)

func (f StrategyFunc) Select(ctx context.Context, msgs []schema.Message) ([]schema.Message, error) {
	return f(ctx, msgs)
}

// Middleware applies s to every model request of an agent. The stored
// conversation is left alone; only the request is trimmed.
func Middleware(s Strategy) prebuilt.Middleware {
	return &contextMiddleware{strategy: s}
}

type contextMiddleware struct {
	prebuilt.BaseMiddleware
	strategy Strategy
}

func (m *contextMiddleware) WrapModelCall(ctx context.Context, req *llms.ChatRequest, next prebuilt.ModelCaller) (*llms.ChatResponse, error) {
	msgs, err := m.strategy.Select(ctx, req.Messages)
	if err != nil {
		return nil, errs.Newf(errs.KindMemory, "select context: %w", err)
	}
	trimmed := *req
	trimmed.Messages = msgs
	return next(ctx, &trimmed)
}

// Window keeps the system messages and the most recent turns holding at
// most Size other messages. An AI message and the tool results answering it
// are kept or dropped together, so the newest group is kept even when it
// alone exceeds Size.
type Window struct {
	Size int
}

func (w Window) Select(_ context.Context, msgs []schema.Message) ([]schema.Message, error) {
	system, groups := split(msgs)
	if w.Size <= 0 || len(groups) == 0 {
		return append(system, flatten(groups)...), nil
	}

	start, count := len(groups)-1, len(groups[len(groups)-1])
	for start > 0 && count+len(groups[start-1]) <= w.Size {
		start--
		count += len(groups[start])
	}
	return append(system, flatten(dropOrphans(groups[start:]))...), nil
}

// split separates system messages from the rest and cuts the rest into
// groups: a message followed by the tool messages after it.
func split(msgs []schema.Message) (system []schema.Message, groups [][]schema.Message) {
	for _, m := range msgs {
		switch {
		case m.Role == schema.RoleSystem:
			system = append(system, m)
		case m.Role == schema.RoleTool && len(groups) > 0:
			groups[len(groups)-1] = append(groups[len(groups)-1], m)
		default:
			groups = append(groups, []schema.Message{m})
		}
	}
	return system, groups
}

// dropOrphans removes leading groups of tool results whose call was cut.
func dropOrphans(groups [][]schema.Message) [][]schema.Message {
	for len(groups) > 1 && groups[0][0].Role == schema.RoleTool {
		groups = groups[1:]
	}
	return groups
}

func flatten(groups [][]schema.Message) []schema.Message {
	return slices.Concat(groups...)
}

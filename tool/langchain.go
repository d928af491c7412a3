package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/tmc/langchaingo/tools"
)

// langchainTool adapts a langchaingo tool, whose input is a single string.
type langchainTool struct {
	t tools.Tool
}

// FromLangchain wraps a langchaingo tool. The model sees one string
// argument named input.
func FromLangchain(t tools.Tool) Tool {
	return &langchainTool{t: t}
}

// FromLangchainTools wraps each tool with FromLangchain.
func FromLangchainTools(ts []tools.Tool) []Tool {
	out := make([]Tool, 0, len(ts))
	for _, t := range ts {
		out = append(out, FromLangchain(t))
	}
	return out
}

func (l *langchainTool) Name() string { return l.t.Name() }

func (l *langchainTool) Description() string { return l.t.Description() }

func (l *langchainTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": fmt.Sprintf("Input for the %s tool", l.t.Name()),
			},
		},
		"required": []string{"input"},
	}
}

func (l *langchainTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	return l.t.Call(ctx, langchainInput(args))
}

// langchainInput extracts the string a langchaingo tool expects: the input
// field of an object, a bare JSON string, or the raw arguments.
func langchainInput(args json.RawMessage) string {
	var obj struct {
		Input *string `json:"input"`
	}
	if err := sonic.Unmarshal(args, &obj); err == nil && obj.Input != nil {
		return *obj.Input
	}
	var s string
	if err := sonic.Unmarshal(args, &s); err == nil {
		return s
	}
	return string(args)
}

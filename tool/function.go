package tool

import (
	"context"
	"encoding/json"

	"github.com/bytedance/sonic"
	"github.com/eino-contrib/jsonschema"
	"github.com/smallnest/agentgraph/errs"
)

// FunctionTool turns a typed Go function into a Tool. The argument schema is
// reflected from T, so struct fields use json tags for names and
// jsonschema tags for descriptions:
//
//	type WeatherArgs struct {
//		City string `json:"city" jsonschema:"description=city name"`
//	}
type FunctionTool[T, R any] struct {
	name        string
	description string
	params      map[string]any
	fn          func(ctx context.Context, args T) (R, error)
	sequential  bool
}

// NewFunctionTool builds a tool named name around fn.
func NewFunctionTool[T, R any](name, description string, fn func(ctx context.Context, args T) (R, error)) (*FunctionTool[T, R], error) {
	if name == "" {
		return nil, errs.New(errs.KindTool, "tool name cannot be empty")
	}
	if fn == nil {
		return nil, errs.Newf(errs.KindTool, "tool '%s' has no function", name)
	}

	var zero T
	params, err := ReflectSchema(zero)
	if err != nil {
		return nil, errs.Newf(errs.KindTool, "schema for tool '%s': %w", name, err)
	}
	return &FunctionTool[T, R]{name: name, description: description, params: params, fn: fn}, nil
}

func (f *FunctionTool[T, R]) Name() string { return f.name }

func (f *FunctionTool[T, R]) Description() string { return f.description }

func (f *FunctionTool[T, R]) Parameters() map[string]any { return f.params }

// Call decodes args into T and runs the function. Empty args decode as the
// zero T.
func (f *FunctionTool[T, R]) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var in T
	if len(args) > 0 && string(args) != "null" {
		if err := sonic.Unmarshal(args, &in); err != nil {
			return nil, errs.Newf(errs.KindParsing, "invalid arguments for tool '%s': %w", f.name, err)
		}
	}
	return f.fn(ctx, in)
}

// Sequential marks the tool as unsafe to run alongside other calls.
func (f *FunctionTool[T, R]) Sequential() *FunctionTool[T, R] {
	f.sequential = true
	return f
}

// ConcurrencySafe is false after Sequential.
func (f *FunctionTool[T, R]) ConcurrencySafe() bool { return !f.sequential }

// ReflectSchema returns the inlined JSON schema of v's type as a plain map.
func ReflectSchema(v any) (map[string]any, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(v)

	data, err := sonic.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

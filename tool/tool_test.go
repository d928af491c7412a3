package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/smallnest/agentgraph/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addArgs struct {
	A int `json:"a" jsonschema:"description=first addend"`
	B int `json:"b" jsonschema:"description=second addend"`
}

func newAdd(t *testing.T) *FunctionTool[addArgs, int] {
	t.Helper()
	add, err := NewFunctionTool("add", "Adds two integers", func(_ context.Context, in addArgs) (int, error) {
		return in.A + in.B, nil
	})
	require.NoError(t, err)
	return add
}

type staticTool struct {
	name   string
	result any
	err    error
}

func (s *staticTool) Name() string               { return s.name }
func (s *staticTool) Description() string        { return "static " + s.name }
func (s *staticTool) Parameters() map[string]any { return nil }
func (s *staticTool) Call(context.Context, json.RawMessage) (any, error) {
	return s.result, s.err
}

type safeStaticTool struct {
	staticTool
	safe bool
}

func (s *safeStaticTool) ConcurrencySafe() bool { return s.safe }

type runtimeTool struct {
	staticTool
	seen *Runtime
}

func (r *runtimeTool) CallWithRuntime(_ context.Context, _ json.RawMessage, rt *Runtime) (any, error) {
	r.seen = rt
	return "with runtime", nil
}

func TestFunctionTool(t *testing.T) {
	add := newAdd(t)

	assert.Equal(t, "add", add.Name())
	assert.Equal(t, "Adds two integers", add.Description())

	params := add.Parameters()
	assert.Equal(t, "object", params["type"])
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	a := props["a"].(map[string]any)
	assert.Equal(t, "integer", a["type"])
	assert.Equal(t, "first addend", a["description"])
	assert.NotContains(t, params, "$schema")

	out, err := add.Call(context.Background(), json.RawMessage(`{"a":2,"b":3}`))
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	out, err = add.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out)

	_, err = add.Call(context.Background(), json.RawMessage(`{"a":"x"}`))
	require.Error(t, err)
	assert.Equal(t, errs.KindParsing, errs.KindOf(err))

	assert.True(t, add.ConcurrencySafe())
	assert.False(t, add.Sequential().ConcurrencySafe())
}

func TestNewFunctionToolErrors(t *testing.T) {
	_, err := NewFunctionTool[addArgs, int]("", "x", func(context.Context, addArgs) (int, error) { return 0, nil })
	assert.EqualError(t, err, "tool error: tool name cannot be empty")

	_, err = NewFunctionTool[addArgs, int]("add", "x", nil)
	assert.EqualError(t, err, "tool error: tool 'add' has no function")
}

func TestCallDispatchesRuntime(t *testing.T) {
	rt := &Runtime{ToolCallID: "call_1"}

	plain := &staticTool{name: "plain", result: "plain"}
	out, err := Call(context.Background(), plain, nil, rt)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	aware := &runtimeTool{staticTool: staticTool{name: "aware"}}
	out, err = Call(context.Background(), aware, nil, rt)
	require.NoError(t, err)
	assert.Equal(t, "with runtime", out)
	assert.Same(t, rt, aware.seen)
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "hello", "hello"},
		{"raw json", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"number", 42, "42"},
		{"map", map[string]any{"ok": true}, `{"ok":true}`},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatResult(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FormatResult(unencodable{})
	assert.Equal(t, errs.KindTool, errs.KindOf(err))
}

type unencodable struct{}

func (unencodable) MarshalJSON() ([]byte, error) { return nil, errors.New("no") }

func TestRegistry(t *testing.T) {
	add := newAdd(t)
	echo := &staticTool{name: "echo", result: "x"}

	r, err := NewRegistry(add, echo)
	require.NoError(t, err)

	assert.Equal(t, []string{"add", "echo"}, r.Names())
	got, ok := r.Get("echo")
	assert.True(t, ok)
	assert.Same(t, echo, got)
	_, ok = r.Get("missing")
	assert.False(t, ok)

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "add", defs[0].Name)
	assert.Equal(t, "static echo", defs[1].Description)
	assert.Nil(t, defs[1].Parameters)

	err = r.Register(&staticTool{name: "echo"})
	assert.EqualError(t, err, "tool error: duplicate tool 'echo'")
	assert.EqualError(t, r.Register(&staticTool{}), "tool error: tool name cannot be empty")

	_, err = NewRegistry(echo, echo)
	assert.Error(t, err)
}

func TestRegistryConcurrencySafe(t *testing.T) {
	safe := &safeStaticTool{staticTool: staticTool{name: "safe"}, safe: true}
	unsafe := &safeStaticTool{staticTool: staticTool{name: "unsafe"}, safe: false}
	plain := &staticTool{name: "plain"}

	r, err := NewRegistry(safe, unsafe, plain)
	require.NoError(t, err)

	assert.False(t, r.ConcurrencySafe("safe", "plain"), "off by default")

	r.SetConcurrent(true)
	assert.True(t, r.Concurrent())
	assert.True(t, r.ConcurrencySafe("safe", "plain"))
	assert.False(t, r.ConcurrencySafe("safe", "unsafe"))
	assert.True(t, r.ConcurrencySafe("safe", "ghost"))
}

func TestReflectSchema(t *testing.T) {
	type nested struct {
		Tags  []string `json:"tags"`
		Limit int      `json:"limit,omitempty"`
	}
	s, err := ReflectSchema(nested{})
	require.NoError(t, err)

	assert.Equal(t, "object", s["type"])
	props := s["properties"].(map[string]any)
	tags := props["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])
	assert.Equal(t, []any{"tags"}, s["required"])
}

func TestToolErrorKinds(t *testing.T) {
	boom := errors.New("boom")
	failing := &staticTool{name: "fail", err: boom}
	_, err := Call(context.Background(), failing, nil, nil)
	assert.Same(t, boom, err)
}

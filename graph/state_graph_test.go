package graph

import (
	"context"
	"testing"
	"time"

	"github.com/smallnest/agentgraph/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileValidation(t *testing.T) {
	route := func(context.Context, testState) string { return "a" }

	tests := []struct {
		name    string
		build   func(g *StateGraph[testState])
		wantErr string
	}{
		{
			name:    "missing entry point",
			build:   func(g *StateGraph[testState]) {},
			wantErr: "graph error: entry point not set",
		},
		{
			name:    "end as entry point",
			build:   func(g *StateGraph[testState]) { g.SetEntryPoint(END) },
			wantErr: "graph error: entry point cannot be '__end__'",
		},
		{
			name:    "start as entry point",
			build:   func(g *StateGraph[testState]) { g.SetEntryPoint(START) },
			wantErr: "graph error: entry point cannot be '__start__'",
		},
		{
			name:    "undeclared entry point",
			build:   func(g *StateGraph[testState]) { g.SetEntryPoint("ghost") },
			wantErr: "graph error: node 'ghost' not found",
		},
		{
			name: "path map target missing",
			build: func(g *StateGraph[testState]) {
				g.SetEntryPoint("a")
				g.AddConditionalEdgesWithPathMap("a", route, map[string]string{"x": "a", "y": "ghost"})
			},
			wantErr: "graph error: node 'ghost' not found",
		},
		{
			name: "edge source missing",
			build: func(g *StateGraph[testState]) {
				g.SetEntryPoint("a")
				g.AddEdge("ghost", "a")
			},
			wantErr: "graph error: node 'ghost' not found",
		},
		{
			name: "edge target missing",
			build: func(g *StateGraph[testState]) {
				g.SetEntryPoint("a")
				g.AddEdge("a", "ghost")
			},
			wantErr: "graph error: node 'ghost' not found",
		},
		{
			name: "conditional source missing",
			build: func(g *StateGraph[testState]) {
				g.SetEntryPoint("a")
				g.AddConditionalEdges("ghost", route)
			},
			wantErr: "graph error: node 'ghost' not found",
		},
		{
			name: "duplicate node",
			build: func(g *StateGraph[testState]) {
				g.AddNode("a", "again", incrementNode("a"))
				g.SetEntryPoint("a")
			},
			wantErr: "graph error: duplicate node 'a'",
		},
		{
			name: "empty name",
			build: func(g *StateGraph[testState]) {
				g.AddNode("", "", incrementNode(""))
				g.SetEntryPoint("a")
			},
			wantErr: "graph error: node name cannot be empty",
		},
		{
			name: "reserved name",
			build: func(g *StateGraph[testState]) {
				g.AddNode(END, "", incrementNode(END))
				g.SetEntryPoint("a")
			},
			wantErr: "graph error: node name '__end__' is reserved",
		},
		{
			name: "interrupt before undeclared",
			build: func(g *StateGraph[testState]) {
				g.SetEntryPoint("a")
				g.SetInterruptBefore("ghost")
			},
			wantErr: "graph error: node 'ghost' not found",
		},
		{
			name: "interrupt after undeclared",
			build: func(g *StateGraph[testState]) {
				g.SetEntryPoint("a")
				g.SetInterruptAfter("ghost")
			},
			wantErr: "graph error: node 'ghost' not found",
		},
		{
			name: "deferred undeclared",
			build: func(g *StateGraph[testState]) {
				g.SetEntryPoint("a")
				g.SetDeferred("ghost")
			},
			wantErr: "graph error: node 'ghost' not found",
		},
		{
			name: "cache policy undeclared",
			build: func(g *StateGraph[testState]) {
				g.SetEntryPoint("a")
				g.SetCachePolicy("ghost", CachePolicy{TTL: time.Second})
			},
			wantErr: "graph error: node 'ghost' not found",
		},
		{
			name: "cache policy without ttl",
			build: func(g *StateGraph[testState]) {
				g.SetEntryPoint("a")
				g.SetCachePolicy("a", CachePolicy{})
			},
			wantErr: "graph error: cache policy for node 'a' needs a positive ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewStateGraph[testState]()
			g.AddNode("a", "a", incrementNode("a"))
			tt.build(g)

			r, err := g.Compile()
			require.Error(t, err)
			assert.Nil(t, r)
			assert.Equal(t, tt.wantErr, err.Error())
			assert.Equal(t, errs.KindGraph, errs.KindOf(err))
		})
	}
}

func TestCompileSentinels(t *testing.T) {
	g := NewStateGraph[testState]()
	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrEntryPointNotSet)

	g.SetEntryPoint("ghost")
	_, err = g.Compile()
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestCompileRejectsNonPositiveMaxIterations(t *testing.T) {
	_, err := linearGraph().Compile(WithMaxIterations(0))
	assert.EqualError(t, err, "graph error: max iterations must be positive, got 0")
}

func TestAddEdgeFromStartSetsEntryPoint(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("a", "a", incrementNode("a"))
	g.AddEdge(START, "a")
	g.AddEdge("a", END)

	r := mustCompile(t, g)
	assert.Equal(t, "a", r.EntryPoint())
	res, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.State.Counter)
}

func TestCompileFreezesBuilder(t *testing.T) {
	g := linearGraph()
	r := mustCompile(t, g)

	g.AddNode("c", "c", incrementNode("c"))
	g.AddEdge("b", "c")

	res, err := r.Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.State.Visited)
	assert.Equal(t, []string{"a", "b"}, r.Nodes())
}

func TestIncomingEdgeCountAndDeferred(t *testing.T) {
	g := NewStateGraph[testState]()
	for _, n := range []string{"a", "b", "c", "join"} {
		g.AddNode(n, n, incrementNode(n))
	}
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	g.AddEdge("b", "join")
	g.AddEdge("c", "join")
	g.AddConditionalEdgesWithPathMap("a", func(context.Context, testState) string { return "j" },
		map[string]string{"j": "join", "c": "c"})
	g.SetDeferred("join")

	assert.Equal(t, 3, g.IncomingEdgeCount("join"))

	r := mustCompile(t, g)
	assert.Equal(t, 3, r.IncomingEdgeCount("join"))
	assert.Equal(t, 1, r.IncomingEdgeCount("b"))
	assert.Zero(t, r.IncomingEdgeCount("a"))
	assert.True(t, r.IsDeferred("join"))
	assert.False(t, r.IsDeferred("b"))
}

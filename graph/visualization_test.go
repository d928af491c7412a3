package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func branchingRunnable(t *testing.T) *StateRunnable[testState] {
	g := NewStateGraph[testState]()
	g.AddNode("a", "first step", incrementNode("a"))
	g.AddNode("b", "b", incrementNode("b"))
	g.AddNode("left", "", incrementNode("left"))
	g.AddNode("right", "", incrementNode("right"))
	g.AddNode("x", "", incrementNode("x"))
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	g.AddEdge("left", END)
	g.AddConditionalEdgesWithPathMap("b", func(context.Context, testState) string { return "left" },
		map[string]string{"right": "right", "left": "left"})
	g.AddConditionalEdges("x", func(context.Context, testState) string { return END })
	return mustCompile(t, g, WithName("demo"))
}

func TestDrawMermaid(t *testing.T) {
	r := branchingRunnable(t)
	out := r.Exporter().DrawMermaid()

	assert.Contains(t, out, "flowchart TD\n")
	assert.Contains(t, out, `    __start__(["__start__"])`)
	assert.Contains(t, out, `    a["a"]`)
	assert.Contains(t, out, `    __end__(["__end__"])`)
	assert.Contains(t, out, "    __start__ --> a\n")
	assert.Contains(t, out, "    a --> b\n")
	assert.Contains(t, out, "    left --> __end__\n")
	assert.Contains(t, out, "    b -.-> |left| left\n")
	assert.Contains(t, out, "    b -.-> |right| right\n")
	assert.Contains(t, out, "    %% x: conditional edge without path map\n")
	assert.Less(t, strings.Index(out, "|left|"), strings.Index(out, "|right|"))

	for range 5 {
		assert.Equal(t, out, r.Exporter().DrawMermaid())
	}

	lr := NewExporter(r).DrawMermaidWithOptions(MermaidOptions{Direction: "LR"})
	assert.Contains(t, lr, "flowchart LR\n")
}

func TestDrawASCII(t *testing.T) {
	r := branchingRunnable(t)
	out := r.Exporter().DrawASCII()

	assert.Contains(t, out, "Graph: demo\n")
	assert.Contains(t, out, "Entry: a\n")
	assert.Contains(t, out, "  a - first step\n")
	assert.Contains(t, out, "  b\n")
	assert.Contains(t, out, "  a -> b\n")
	assert.Contains(t, out, "Conditional edges:\n")
	assert.Contains(t, out, "  b -> left|right\n")
	assert.Contains(t, out, "  x -> ?\n")
	assert.Equal(t, out, r.Exporter().DrawASCII())
}

func TestDrawDOT(t *testing.T) {
	r := branchingRunnable(t)
	out := r.Exporter().DrawDOT()

	assert.Contains(t, out, "digraph G {\n")
	assert.Contains(t, out, `    "__start__" -> "a";`)
	assert.Contains(t, out, `    "a" -> "b";`)
	assert.Contains(t, out, `    "b" -> "left" [style=dashed, label="left"];`)
	assert.Contains(t, out, "    // x: conditional edge without path map\n")
	assert.Equal(t, out, r.Exporter().DrawDOT())
}

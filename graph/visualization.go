package graph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Exporter renders a compiled graph as text. Every method is a pure
// function of the graph, so repeated calls return identical output.
type Exporter[S State[S]] struct {
	r *StateRunnable[S]
}

// NewExporter creates a new graph exporter for the given graph
func NewExporter[S State[S]](r *StateRunnable[S]) *Exporter[S] {
	return &Exporter[S]{r: r}
}

// Exporter returns an Exporter for r.
func (r *StateRunnable[S]) Exporter() *Exporter[S] {
	return NewExporter(r)
}

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

type labeledEdge struct {
	from, to, label string
}

func (ge *Exporter[S]) sortedNodes() []string {
	return slices.Sorted(slices.Values(ge.r.nodeOrder))
}

// staticEdges includes the START edge to the entry point.
func (ge *Exporter[S]) staticEdges() []Edge {
	edges := append([]Edge{{From: START, To: ge.r.entryPoint}}, ge.r.edges...)
	slices.SortStableFunc(edges, func(a, b Edge) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To))
	})
	return edges
}

func (ge *Exporter[S]) mappedEdges() []labeledEdge {
	var out []labeledEdge
	for _, ce := range ge.r.conditionalEdges {
		for label, to := range ce.PathMap {
			out = append(out, labeledEdge{from: ce.From, to: to, label: label})
		}
	}
	slices.SortFunc(out, func(a, b labeledEdge) int {
		return cmp.Or(cmp.Compare(a.from, b.from), cmp.Compare(a.to, b.to), cmp.Compare(a.label, b.label))
	})
	return out
}

// unmappedSources lists the sources of conditional edges without a path map.
func (ge *Exporter[S]) unmappedSources() []string {
	var out []string
	for _, ce := range ge.r.conditionalEdges {
		if ce.PathMap == nil {
			out = append(out, ce.From)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// DrawMermaid generates a top-down Mermaid flowchart.
func (ge *Exporter[S]) DrawMermaid() string {
	return ge.DrawMermaidWithOptions(MermaidOptions{Direction: "TD"})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options
func (ge *Exporter[S]) DrawMermaidWithOptions(opts MermaidOptions) string {
	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "flowchart %s\n", direction)

	fmt.Fprintf(&sb, "    %s([\"%s\"])\n", START, START)
	for _, name := range ge.sortedNodes() {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", name, name)
	}
	fmt.Fprintf(&sb, "    %s([\"%s\"])\n", END, END)

	for _, e := range ge.staticEdges() {
		fmt.Fprintf(&sb, "    %s --> %s\n", e.From, e.To)
	}
	for _, e := range ge.mappedEdges() {
		fmt.Fprintf(&sb, "    %s -.-> |%s| %s\n", e.from, e.label, e.to)
	}
	for _, from := range ge.unmappedSources() {
		fmt.Fprintf(&sb, "    %%%% %s: conditional edge without path map\n", from)
	}

	fmt.Fprintf(&sb, "    style %s fill:#90EE90\n", START)
	fmt.Fprintf(&sb, "    style %s fill:#FFB6C1\n", END)
	return sb.String()
}

// DrawASCII generates a plain-text summary of nodes, entry point and edges.
func (ge *Exporter[S]) DrawASCII() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Graph: %s\n", ge.r.name)
	fmt.Fprintf(&sb, "Entry: %s\n", ge.r.entryPoint)

	sb.WriteString("Nodes:\n")
	for _, name := range ge.sortedNodes() {
		if desc := ge.r.nodes[name].Description; desc != "" && desc != name {
			fmt.Fprintf(&sb, "  %s - %s\n", name, desc)
		} else {
			fmt.Fprintf(&sb, "  %s\n", name)
		}
	}

	sb.WriteString("Edges:\n")
	for _, e := range ge.staticEdges() {
		fmt.Fprintf(&sb, "  %s -> %s\n", e.From, e.To)
	}

	targets := make(map[string][]string)
	for _, e := range ge.mappedEdges() {
		targets[e.from] = append(targets[e.from], e.to)
	}
	for _, from := range ge.unmappedSources() {
		targets[from] = append(targets[from], "?")
	}
	if len(targets) > 0 {
		sb.WriteString("Conditional edges:\n")
		for _, from := range sortedKeys(targets) {
			to := slices.Compact(slices.Sorted(slices.Values(targets[from])))
			fmt.Fprintf(&sb, "  %s -> %s\n", from, strings.Join(to, "|"))
		}
	}
	return sb.String()
}

// DrawDOT generates a DOT (Graphviz) representation of the graph
func (ge *Exporter[S]) DrawDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TD;\n")
	sb.WriteString("    node [shape=box];\n")

	fmt.Fprintf(&sb, "    %q [shape=oval, style=filled, fillcolor=lightgreen];\n", START)
	fmt.Fprintf(&sb, "    %q [shape=oval, style=filled, fillcolor=lightpink];\n", END)
	for _, name := range ge.sortedNodes() {
		fmt.Fprintf(&sb, "    %q;\n", name)
	}

	for _, e := range ge.staticEdges() {
		fmt.Fprintf(&sb, "    %q -> %q;\n", e.From, e.To)
	}
	for _, e := range ge.mappedEdges() {
		fmt.Fprintf(&sb, "    %q -> %q [style=dashed, label=%q];\n", e.from, e.to, e.label)
	}
	for _, from := range ge.unmappedSources() {
		fmt.Fprintf(&sb, "    // %s: conditional edge without path map\n", from)
	}

	sb.WriteString("}\n")
	return sb.String()
}

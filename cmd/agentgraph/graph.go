package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/prebuilt"
	"github.com/smallnest/agentgraph/schema"
	"github.com/smallnest/agentgraph/tool"
)

func runGraph(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("graph", flag.ContinueOnError)
	fs.SetOutput(stdout)
	agent := fs.String("agent", "react", "graph to draw: react, supervisor or swarm")
	format := fs.String("format", "mermaid", "output format: mermaid, ascii or dot")
	direction := fs.String("direction", "TD", "mermaid flowchart direction")
	plain := fs.Bool("plain", false, "disable terminal styling")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := demoGraph(*agent)
	if err != nil {
		return err
	}

	ex := r.Exporter()
	var out string
	switch *format {
	case "mermaid":
		out = ex.DrawMermaidWithOptions(graph.MermaidOptions{Direction: *direction})
	case "ascii":
		out = ex.DrawASCII()
	case "dot":
		out = ex.DrawDOT()
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	st := newStyles(*plain)
	fmt.Fprintln(stdout, st.title(fmt.Sprintf("%s (%s)", r.Name(), *format)))
	if *format == "ascii" {
		out = st.box(out)
	}
	fmt.Fprintln(stdout, out)
	return nil
}

// offlineModel stands in for a provider when a graph is only drawn.
var offlineModel = llms.ChatFunc(func(context.Context, *llms.ChatRequest) (*llms.ChatResponse, error) {
	return nil, errs.New(errs.KindModel, "demo graphs have no model")
})

func demoGraph(name string) (*graph.StateRunnable[schema.MessageState], error) {
	quiet := prebuilt.WithAgentLogger(&log.NoOpLogger{})
	fetch := []tool.Tool{tool.NewWebFetch()}

	switch name {
	case "react":
		return prebuilt.CreateReactAgent(offlineModel, fetch, quiet)
	case "supervisor":
		researcher, err := prebuilt.CreateReactAgent(offlineModel, fetch, quiet, prebuilt.WithAgentName("researcher"))
		if err != nil {
			return nil, err
		}
		writer, err := prebuilt.CreateReactAgent(offlineModel, nil, quiet, prebuilt.WithAgentName("writer"))
		if err != nil {
			return nil, err
		}
		return prebuilt.CreateSupervisor(offlineModel, []prebuilt.NamedAgent{
			{Name: "researcher", Description: "Looks things up on the web", Agent: researcher},
			{Name: "writer", Description: "Writes the final answer", Agent: writer},
		}, quiet)
	case "swarm":
		return prebuilt.CreateSwarm([]prebuilt.SwarmAgent{
			{Name: "triage", Description: "Routes the request", Model: offlineModel},
			{Name: "expert", Description: "Answers with sources", Model: offlineModel, Tools: fetch},
		}, quiet)
	}
	return nil, fmt.Errorf("unknown agent %q", name)
}

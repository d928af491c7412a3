package prebuilt

import (
	"context"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/schema"
	"github.com/smallnest/agentgraph/tool"
)

// SwarmAgent is one member of a swarm. SystemPrompt overrides the prompt
// given with WithSystemPrompt for this agent.
type SwarmAgent struct {
	Name         string
	Description  string
	SystemPrompt string
	Model        llms.ChatModel
	Tools        []tool.Tool
}

// CreateSwarm builds a graph of peer agents. Every agent gets its own tools
// plus a transfer_to_<peer> tool per peer. One shared tools node runs all
// calls; afterwards control moves to the first handoff target, or back to
// the agent that made the calls. The first agent is the entry point.
//
// Agent names are stamped on their replies, so they should be valid
// message names for the provider.
func CreateSwarm(agents []SwarmAgent, opts ...AgentOption) (*graph.StateRunnable[schema.MessageState], error) {
	if len(agents) == 0 {
		return nil, errs.New(errs.KindValidation, "swarm needs at least one agent")
	}

	known := make(map[string]bool, len(agents))
	for _, a := range agents {
		if err := checkAgentName(a.Name, known, ToolsNode); err != nil {
			return nil, err
		}
		if a.Model == nil {
			return nil, errs.Newf(errs.KindValidation, "agent '%s' has no model", a.Name)
		}
		known[a.Name] = true
	}

	cfg := newAgentConfig("swarm", opts)

	// Agents may share tools; the first registration of a name wins.
	registry, err := tool.NewRegistry()
	if err != nil {
		return nil, err
	}
	registry.SetConcurrent(cfg.parallelTools)
	register := func(t tool.Tool) error {
		if _, ok := registry.Get(t.Name()); ok {
			return nil
		}
		return registry.Register(t)
	}

	handoffs := make(map[string]tool.Tool, len(agents))
	for _, a := range agents {
		handoffs[a.Name] = NewHandoffTool(a.Name, a.Description)
		if err := register(handoffs[a.Name]); err != nil {
			return nil, err
		}
	}

	g := graph.NewStateGraph[schema.MessageState]()
	toolsPaths := make(map[string]string, len(agents))
	for _, a := range agents {
		own := append([]tool.Tool{}, a.Tools...)
		for _, t := range a.Tools {
			if err := register(t); err != nil {
				return nil, err
			}
		}
		for _, peer := range agents {
			if peer.Name != a.Name {
				own = append(own, handoffs[peer.Name])
			}
		}

		agentCfg := *cfg
		if a.SystemPrompt != "" {
			agentCfg.systemPrompt = a.SystemPrompt
		}
		g.AddNode(a.Name, a.Description, &modelNode{
			name:  a.Name,
			model: a.Model,
			tools: tool.Definitions(own),
			cfg:   &agentCfg,
		})
		g.AddConditionalEdgesWithPathMap(a.Name, routeToolCalls, map[string]string{
			ToolsNode: ToolsNode,
			graph.END: graph.END,
		})
		toolsPaths[a.Name] = a.Name
	}

	g.AddNode(ToolsNode, "Executes tool calls for every agent",
		NewToolNodeFromRegistry(registry, WithToolNodeLogger(cfg.logger)))

	first := agents[0].Name
	g.AddConditionalEdgesWithPathMap(ToolsNode, func(_ context.Context, state schema.MessageState) string {
		last, ok := state.LastAI()
		if !ok {
			return first
		}
		if agent, ok := firstHandoff(last, known); ok {
			return agent
		}
		if known[last.Name] {
			return last.Name
		}
		return first
	}, toolsPaths)
	g.SetEntryPoint(first)

	return cfg.compile(g)
}

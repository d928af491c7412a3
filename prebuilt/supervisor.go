package prebuilt

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/schema"
	"github.com/smallnest/agentgraph/tool"
)

// SupervisorNode is the name of the routing node of a supervisor graph.
const SupervisorNode = "supervisor"

// NamedAgent is a compiled agent the supervisor can hand work to.
type NamedAgent struct {
	Name        string
	Description string
	Agent       *graph.StateRunnable[schema.MessageState]
}

// CreateSupervisor builds a graph where a supervisor model delegates to
// sub-agents through transfer_to_<name> tools. Each sub-agent runs on the
// shared conversation and hands control back to the supervisor; the run
// ends when the supervisor replies without a handoff.
func CreateSupervisor(model llms.ChatModel, agents []NamedAgent, opts ...AgentOption) (*graph.StateRunnable[schema.MessageState], error) {
	if model == nil {
		return nil, errs.New(errs.KindValidation, "model is required")
	}
	if len(agents) == 0 {
		return nil, errs.New(errs.KindValidation, "supervisor needs at least one agent")
	}

	known := make(map[string]bool, len(agents))
	handoffs := make([]tool.Tool, 0, len(agents))
	for _, a := range agents {
		if err := checkAgentName(a.Name, known, SupervisorNode); err != nil {
			return nil, err
		}
		if a.Agent == nil {
			return nil, errs.Newf(errs.KindValidation, "agent '%s' has no graph", a.Name)
		}
		known[a.Name] = true
		handoffs = append(handoffs, NewHandoffTool(a.Name, a.Description))
	}

	cfg := newAgentConfig("supervisor", opts)
	if cfg.systemPrompt == "" {
		cfg.systemPrompt = supervisorPrompt(agents)
	}

	g := graph.NewStateGraph[schema.MessageState]()
	g.AddNode(SupervisorNode, "Chooses the agent that acts next", &supervisorNode{
		modelNode: modelNode{model: model, tools: tool.Definitions(handoffs), cfg: cfg},
		known:     known,
	})

	pathMap := map[string]string{graph.END: graph.END}
	for _, a := range agents {
		graph.AddSubgraph(g, a.Name, a.Description, graph.NewSameStateSubgraph(a.Name, a.Agent))
		g.AddEdge(a.Name, SupervisorNode)
		pathMap[a.Name] = a.Name
	}

	g.SetEntryPoint(SupervisorNode)
	g.AddConditionalEdgesWithPathMap(SupervisorNode, func(_ context.Context, state schema.MessageState) string {
		if last, ok := state.LastAI(); ok {
			if agent, ok := firstHandoff(last, known); ok {
				return agent
			}
		}
		return graph.END
	}, pathMap)

	return cfg.compile(g)
}

// supervisorNode answers its own handoff calls so the conversation a
// sub-agent receives has no dangling tool calls.
type supervisorNode struct {
	modelNode
	known map[string]bool
}

func (s *supervisorNode) Process(ctx context.Context, state schema.MessageState) (graph.NodeOutput[schema.MessageState], error) {
	out, err := s.modelNode.Process(ctx, state)
	if err != nil {
		return out, err
	}
	next, ok := out.State()
	if !ok {
		return out, nil
	}
	last, ok := next.Last()
	if !ok || !last.HasToolCalls() {
		return out, nil
	}

	acks := make([]schema.Message, 0, len(last.ToolCalls))
	for _, c := range last.ToolCalls {
		content := "tool not found: " + c.Name
		if agent, ok := HandoffTarget(c.Name); ok && s.known[agent] {
			content = handoffAck(agent)
		}
		acks = append(acks, toolMessage(c, content))
	}
	return graph.StateOutput(next.Merge(schema.MessageState{Messages: acks})), nil
}

func supervisorPrompt(agents []NamedAgent) string {
	var sb strings.Builder
	sb.WriteString("You are a supervisor managing a team of agents:\n")
	for _, a := range agents {
		fmt.Fprintf(&sb, "- %s", a.Name)
		if a.Description != "" {
			fmt.Fprintf(&sb, ": %s", a.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Delegate each task by calling the matching transfer tool. " +
		"When the work is done, answer the user directly without calling a tool.")
	return sb.String()
}

func checkAgentName(name string, seen map[string]bool, reserved ...string) error {
	switch {
	case name == "":
		return errs.New(errs.KindValidation, "agent name cannot be empty")
	case name == graph.START || name == graph.END:
		return errs.Newf(errs.KindValidation, "agent name '%s' is reserved", name)
	case seen[name]:
		return errs.Newf(errs.KindValidation, "duplicate agent '%s'", name)
	}
	for _, r := range reserved {
		if name == r {
			return errs.Newf(errs.KindValidation, "agent name '%s' is reserved", name)
		}
	}
	return nil
}

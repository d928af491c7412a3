package prebuilt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smallnest/agentgraph/schema"
	"github.com/smallnest/agentgraph/tool"
)

const handoffPrefix = "transfer_to_"

// HandoffToolName is the name of the tool that transfers control to agent.
func HandoffToolName(agent string) string {
	return handoffPrefix + agent
}

// HandoffTarget returns the agent a handoff tool name points at.
func HandoffTarget(toolName string) (string, bool) {
	agent, ok := strings.CutPrefix(toolName, handoffPrefix)
	return agent, ok && agent != ""
}

type handoffTool struct {
	agent       string
	description string
}

// NewHandoffTool returns the transfer_to_<agent> tool. Calling it only
// acknowledges the transfer; routing happens in the graph.
func NewHandoffTool(agent, description string) tool.Tool {
	return &handoffTool{agent: agent, description: description}
}

func (h *handoffTool) Name() string { return HandoffToolName(h.agent) }

func (h *handoffTool) Description() string {
	d := fmt.Sprintf("Transfer the conversation to the agent %s.", h.agent)
	if h.description != "" {
		d += " " + h.description
	}
	return d
}

func (h *handoffTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (h *handoffTool) Call(context.Context, json.RawMessage) (any, error) {
	return handoffAck(h.agent), nil
}

func handoffAck(agent string) string {
	return "Successfully transferred to " + agent
}

// firstHandoff returns the target of the first handoff call of msg.
func firstHandoff(msg schema.Message, known map[string]bool) (string, bool) {
	for _, c := range msg.ToolCalls {
		if agent, ok := HandoffTarget(c.Name); ok && known[agent] {
			return agent, true
		}
	}
	return "", false
}

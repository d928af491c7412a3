package prebuilt

import (
	"context"
	"testing"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/schema"
	"github.com/smallnest/agentgraph/store/memory"
	"github.com/smallnest/agentgraph/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandoffNames(t *testing.T) {
	assert.Equal(t, "transfer_to_bob", HandoffToolName("bob"))

	agent, ok := HandoffTarget("transfer_to_bob")
	assert.True(t, ok)
	assert.Equal(t, "bob", agent)

	_, ok = HandoffTarget("transfer_to_")
	assert.False(t, ok)
	_, ok = HandoffTarget("search")
	assert.False(t, ok)
}

func TestHandoffTool(t *testing.T) {
	h := NewHandoffTool("math", "Solves arithmetic.")
	assert.Equal(t, "transfer_to_math", h.Name())
	assert.Equal(t, "Transfer the conversation to the agent math. Solves arithmetic.", h.Description())

	out, err := h.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Successfully transferred to math", out)
}

func TestFirstHandoff(t *testing.T) {
	known := map[string]bool{"a": true, "b": true}
	msg := schema.AIMessage("",
		schema.NewToolCall("1", "search", nil),
		schema.NewToolCall("2", "transfer_to_c", nil),
		schema.NewToolCall("3", "transfer_to_b", nil),
		schema.NewToolCall("4", "transfer_to_a", nil),
	)
	agent, ok := firstHandoff(msg, known)
	assert.True(t, ok)
	assert.Equal(t, "b", agent)

	_, ok = firstHandoff(schema.AIMessage("plain"), known)
	assert.False(t, ok)
}

func TestSupervisorDelegates(t *testing.T) {
	mathModel := newScriptedModel(schema.AIMessage("2 + 2 = 4"))
	mathAgent, err := CreateReactAgent(mathModel, nil, quiet(), WithAgentName("math"))
	require.NoError(t, err)

	boss := newScriptedModel(
		schema.AIMessage("", schema.NewToolCall("s1", "transfer_to_math", nil)),
		schema.AIMessage("The answer is 4."),
	)
	team, err := CreateSupervisor(boss, []NamedAgent{
		{Name: "math", Description: "Does arithmetic", Agent: mathAgent},
	}, quiet())
	require.NoError(t, err)
	assert.Equal(t, SupervisorNode, team.EntryPoint())

	res, err := team.Invoke(context.Background(), schema.NewMessageState(schema.HumanMessage("2+2?")))
	require.NoError(t, err)

	msgs := res.State.Messages
	require.Equal(t, []schema.Role{
		schema.RoleHuman, schema.RoleAI, schema.RoleTool, schema.RoleAI, schema.RoleAI,
	}, roles(msgs))
	assert.Equal(t, "Successfully transferred to math", msgs[2].Content)
	assert.Equal(t, "s1", msgs[2].ToolCallID)
	assert.Equal(t, "2 + 2 = 4", msgs[3].Content)
	assert.Equal(t, "The answer is 4.", msgs[4].Content)

	reqs := boss.calls()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "transfer_to_math", reqs[0].Tools[0].Name)
	assert.Equal(t, schema.RoleSystem, reqs[0].Messages[0].Role)
	assert.Contains(t, reqs[0].Messages[0].Content, "- math: Does arithmetic")

	// the sub-agent sees the answered handoff
	sub := mathModel.calls()
	require.Len(t, sub, 1)
	assert.Len(t, sub[0].Messages, 3)
}

func TestSupervisorResumesPausedAgent(t *testing.T) {
	workerModel := newScriptedModel(
		schema.AIMessage("", schema.NewToolCall("w1", "echo", echoArgs{Text: "hi"})),
		schema.AIMessage("echo done"),
	)
	worker, err := CreateReactAgent(workerModel, []tool.Tool{echoTool(t)}, quiet(),
		WithAgentName("w"), WithInterruptBefore(ToolsNode))
	require.NoError(t, err)

	boss := newScriptedModel(
		schema.AIMessage("", schema.NewToolCall("s1", "transfer_to_w", nil)),
		schema.AIMessage("final"),
	)
	team, err := CreateSupervisor(boss, []NamedAgent{{Name: "w", Agent: worker}},
		quiet(), WithCheckpointer(memory.NewMemoryCheckpointStore()))
	require.NoError(t, err)

	ctx := context.Background()
	res, err := team.InvokeWithConfig(ctx, schema.NewMessageState(schema.HumanMessage("echo hi")), graph.WithThreadID("t1"))
	require.NoError(t, err)
	require.True(t, res.Interrupted)
	assert.Equal(t, "w", res.NextNode)
	assert.Equal(t, "w", res.InterruptValue.(map[string]any)["subgraph"])

	res, err = team.InvokeWithConfig(ctx, schema.MessageState{}, graph.WithThreadID("t1"))
	require.NoError(t, err)
	require.True(t, res.Complete())

	msgs := res.State.Messages
	require.Equal(t, []schema.Role{
		schema.RoleHuman, schema.RoleAI, schema.RoleTool, schema.RoleAI, schema.RoleTool, schema.RoleAI, schema.RoleAI,
	}, roles(msgs))
	assert.Equal(t, "hi", msgs[4].Content)
	assert.Equal(t, "w1", msgs[4].ToolCallID)
	assert.Equal(t, "echo done", msgs[5].Content)
	assert.Equal(t, "final", msgs[6].Content)
	assert.Len(t, workerModel.calls(), 2)
}

func TestSupervisorAnswersDirectly(t *testing.T) {
	worker, err := CreateReactAgent(newScriptedModel(), nil, quiet())
	require.NoError(t, err)

	boss := newScriptedModel(schema.AIMessage("Hello!"))
	team, err := CreateSupervisor(boss, []NamedAgent{{Name: "worker", Agent: worker}},
		WithSystemPrompt("custom"), quiet())
	require.NoError(t, err)

	res, err := team.Invoke(context.Background(), schema.NewMessageState(schema.HumanMessage("hi")))
	require.NoError(t, err)
	assert.Len(t, res.State.Messages, 2)
	assert.Equal(t, "custom", boss.calls()[0].Messages[0].Content)
}

func TestSupervisorUnknownTool(t *testing.T) {
	worker, err := CreateReactAgent(newScriptedModel(), nil, quiet())
	require.NoError(t, err)

	boss := newScriptedModel(
		schema.AIMessage("", schema.NewToolCall("s1", "transfer_to_nobody", nil)),
	)
	team, err := CreateSupervisor(boss, []NamedAgent{{Name: "worker", Agent: worker}}, quiet())
	require.NoError(t, err)

	res, err := team.Invoke(context.Background(), schema.NewMessageState(schema.HumanMessage("hi")))
	require.NoError(t, err)
	last, _ := res.State.Last()
	assert.Equal(t, "tool not found: transfer_to_nobody", last.Content)
}

func TestSupervisorValidation(t *testing.T) {
	worker, err := CreateReactAgent(newScriptedModel(), nil, quiet())
	require.NoError(t, err)
	model := newScriptedModel()

	cases := map[string][]NamedAgent{
		"no agents":  nil,
		"empty name": {{Name: "", Agent: worker}},
		"duplicate":  {{Name: "w", Agent: worker}, {Name: "w", Agent: worker}},
		"reserved":   {{Name: SupervisorNode, Agent: worker}},
		"sentinel":   {{Name: graph.END, Agent: worker}},
		"no graph":   {{Name: "w"}},
	}
	for name, agents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := CreateSupervisor(model, agents)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		})
	}

	_, err = CreateSupervisor(nil, []NamedAgent{{Name: "w", Agent: worker}})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestSwarmHandoffAndReturn(t *testing.T) {
	lookup, err := tool.NewFunctionTool("lookup", "Look something up",
		func(context.Context, echoArgs) (string, error) {
			return "found it", nil
		})
	require.NoError(t, err)

	alice := newScriptedModel(
		schema.AIMessage("", schema.NewToolCall("h1", "transfer_to_bob", nil)),
	)
	bob := newScriptedModel(
		schema.AIMessage("", schema.NewToolCall("l1", "lookup", echoArgs{Text: "x"})),
		schema.AIMessage("bob: done"),
	)
	swarm, err := CreateSwarm([]SwarmAgent{
		{Name: "alice", Description: "Greets", SystemPrompt: "You are alice", Model: alice},
		{Name: "bob", Description: "Researches", Model: bob, Tools: []tool.Tool{lookup}},
	}, WithSystemPrompt("shared prompt"), quiet())
	require.NoError(t, err)
	assert.Equal(t, "alice", swarm.EntryPoint())

	res, err := swarm.Invoke(context.Background(), schema.NewMessageState(schema.HumanMessage("find x")))
	require.NoError(t, err)

	msgs := res.State.Messages
	require.Len(t, msgs, 6)
	assert.Equal(t, "alice", msgs[1].Name)
	assert.Equal(t, "Successfully transferred to bob", msgs[2].Content)
	assert.Equal(t, "bob", msgs[3].Name)
	assert.Equal(t, "found it", msgs[4].Content)
	assert.Equal(t, "bob: done", msgs[5].Content)
	assert.Equal(t, "bob", msgs[5].Name)

	aliceReqs := alice.calls()
	require.Len(t, aliceReqs, 1)
	assert.Equal(t, "You are alice", aliceReqs[0].Messages[0].Content)
	assert.Equal(t, []string{"transfer_to_bob"}, toolNames(aliceReqs[0].Tools))

	bobReqs := bob.calls()
	require.Len(t, bobReqs, 2)
	assert.Equal(t, "shared prompt", bobReqs[0].Messages[0].Content)
	assert.Equal(t, []string{"lookup", "transfer_to_alice"}, toolNames(bobReqs[0].Tools))
}

func TestSwarmValidation(t *testing.T) {
	model := newScriptedModel()

	_, err := CreateSwarm(nil)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = CreateSwarm([]SwarmAgent{{Name: ToolsNode, Model: model}})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = CreateSwarm([]SwarmAgent{{Name: "a"}})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = CreateSwarm([]SwarmAgent{{Name: "a", Model: model}, {Name: "a", Model: model}})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func toolNames(defs []schema.ToolDefinition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}

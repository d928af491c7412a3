// Package prebuilt provides ready-to-use agents built on the graph package
// and schema.MessageState.
//
// # ReAct Agent
//
// CreateReactAgent compiles the classic agent/tools loop. The agent node
// calls the model with the conversation and the tool definitions; when the
// reply carries tool calls the tools node runs them and control returns to
// the agent, otherwise the run ends.
//
//	search, _ := tool.NewFunctionTool("search", "Search the web",
//		func(ctx context.Context, in SearchInput) (string, error) { ... })
//
//	agent, err := prebuilt.CreateReactAgent(model, []tool.Tool{search},
//		prebuilt.WithSystemPrompt("You are a helpful assistant."),
//		prebuilt.WithMaxSteps(10),
//	)
//
//	res, err := agent.Invoke(ctx, schema.NewMessageState(
//		schema.HumanMessage("What's the weather in London?"),
//	))
//
// Hooks and middleware wrap each model step:
//
//   - WithPreModelHook rewrites the state before the call, for example to
//     trim history;
//   - WithPostModelHook runs after the reply was appended;
//   - WithMiddleware adds BeforeAgent/AfterAgent callbacks and can wrap the
//     model call itself, for retries or request rewriting.
//
// WithResponseFormat turns the final answer into a JSON document that
// matches a schema.
//
// # Tool Node
//
// ToolNode can be used on its own in custom graphs. Tool failures and
// unknown tools become tool messages so the model can react to them.
//
// # Multi-Agent
//
// CreateSupervisor puts a routing model in front of compiled sub-agents and
// delegates through transfer_to_<agent> tools. CreateSwarm wires peer
// agents that hand the conversation to each other directly.
//
//	researcher, _ := prebuilt.CreateReactAgent(model, researchTools)
//	writer, _ := prebuilt.CreateReactAgent(model, nil)
//
//	team, err := prebuilt.CreateSupervisor(model, []prebuilt.NamedAgent{
//		{Name: "researcher", Description: "Finds facts", Agent: researcher},
//		{Name: "writer", Description: "Writes the final text", Agent: writer},
//	})
//
// # Chat Sessions
//
// ChatAgent keeps a conversation across turns, in a checkpointer thread
// when the agent has one:
//
//	chat, _ := prebuilt.NewChatAgent(model, tools,
//		prebuilt.WithCheckpointer(memory.NewMemoryCheckpointStore()))
//	answer, err := chat.Chat(ctx, "Hello!")
package prebuilt

// Agentgraph - typed state graphs for LLM agents in Go
//
// Agentgraph builds agent workflows as graphs over a user-defined state
// type. Nodes transform the state, edges and routers pick the next node,
// and a checkpointer makes every run resumable: interrupt before or after
// any node, edit the paused state, and continue.
//
// # Quick Start
//
//	go get github.com/smallnest/agentgraph
//
// A ReAct agent with one tool:
//
//	model, _ := openai.New()
//	add, _ := tool.NewFunctionTool("add", "Adds two numbers",
//		func(_ context.Context, in struct{ A, B int }) (int, error) { return in.A + in.B, nil })
//
//	agent, _ := prebuilt.CreateReactAgent(model, []tool.Tool{add})
//	res, _ := agent.Invoke(ctx, schema.NewMessageState(schema.HumanMessage("What is 2 + 40?")))
//	last, _ := res.State.LastAI()
//	fmt.Println(last.Text())
//
// A graph over your own state:
//
//	type Counter struct{ N int }
//
//	func (c Counter) Merge(o Counter) Counter { return Counter{N: c.N + o.N} }
//
//	g := graph.NewStateGraph[Counter]()
//	g.AddNodeFunc("inc", "adds one", func(_ context.Context, c Counter) (Counter, error) {
//		return Counter{N: c.N + 1}, nil
//	})
//	g.SetEntryPoint("inc")
//	g.AddEdge("inc", graph.END)
//	r, _ := g.Compile()
//
// # Packages
//
//   - graph: StateGraph builder, compiler, execution and streaming engine,
//     commands, interrupts, node cache, subgraphs, retries, exporters
//   - schema: messages, tool calls, MessageState, stream chunks
//   - store: checkpoint and key/value contracts, with memory, file,
//     sqlite, postgres and redis backends
//   - llms: ChatModel and Embeddings contracts, OpenAI and langchaingo
//     adapters, response caching
//   - tool: Tool contract, typed function tools, registry, web tools
//   - prebuilt: ReAct agent, tool node, supervisor, swarm, chat sessions
//   - memory: strategies that trim what the model sees
//   - rag: loaders, splitter, vector index, retriever tool and pipeline
//   - config: YAML and .env configuration with backend factories
//   - errs: error kinds shared by every package
//   - log: leveled logging on the standard library or golog
//
// The agentgraph command prints the prebuilt graphs and runs an
// interactive chat configured from YAML; see cmd/agentgraph.
package agentgraph // import "github.com/smallnest/agentgraph"

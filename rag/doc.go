// Package rag adds retrieval-augmented generation on top of the graph
// runtime.
//
// Documents are loaded (LoadFile, LoadURL), cut into chunks by a Splitter,
// and embedded into an Index. The index can then be used two ways:
//
//   - as a tool, so an agent decides when to search:
//
//     search, _ := rag.NewRetrieverTool(ix, "search_docs", "", 4)
//     agent, _ := prebuilt.CreateReactAgent(model, []tool.Tool{search})
//
//   - as a fixed retrieve then generate pipeline:
//
//     p, _ := rag.NewPipeline(ix, model, rag.WithTopK(3))
//     res, _ := p.Invoke(ctx, rag.State{Question: "How do I resume a thread?"})
//     fmt.Println(res.State.Answer, res.State.Citations)
package rag

// Package memory chooses which part of a long conversation a model sees.
//
// A Strategy selects messages; Middleware plugs a strategy into a prebuilt
// agent so every model request is trimmed while the checkpointed
// conversation stays complete.
//
//	agent, err := prebuilt.CreateReactAgent(model, tools,
//		prebuilt.WithMiddleware(memory.Middleware(memory.Window{Size: 20})),
//	)
//
// Window keeps the newest turns. GraphBased also recalls older turns that
// share topics with the latest question.
//
// Both strategies keep system messages, and never separate an AI message
// from the tool results answering it.
package memory

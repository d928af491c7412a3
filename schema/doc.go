// Package schema holds the conversation types shared by models, tools and
// the prebuilt agents: messages, tool calls, streamed chunks and the
// MessageState accumulator.
//
// # Messages
//
//	msgs := []schema.Message{
//		schema.SystemMessage("You are terse."),
//		schema.HumanMessage("echo test"),
//	}
//
// An AI message carries ToolCalls; the answer to each call is a Tool
// message with the matching ToolCallID.
//
// # MessageState
//
// MessageState.Merge appends messages, replaces a message when an incoming
// one reuses its ID, and honors RemoveMessage markers:
//
//	s = s.Merge(schema.NewMessageState(schema.RemoveMessage("msg-1")))
//
// # Streaming
//
// AIMessageChunk values add up into a complete message:
//
//	full := schema.ConcatChunks(chunks).ToMessage()
package schema

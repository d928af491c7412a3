// Package llms defines the chat model, embeddings and response cache
// contracts the graph agents are written against. Provider adapters live in
// the subpackages.
package llms

import (
	"context"
	"iter"

	"github.com/smallnest/agentgraph/schema"
)

// ChatRequest is one model call.
type ChatRequest struct {
	Messages   []schema.Message        `json:"messages"`
	Tools      []schema.ToolDefinition `json:"tools,omitempty"`
	ToolChoice *schema.ToolChoice      `json:"tool_choice,omitempty"`
	// ResponseFormat asks for JSON matching the schema when the provider
	// supports structured output.
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat names a JSON schema the answer must follow.
type ResponseFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Message schema.Message `json:"message"`
	Usage   *schema.Usage  `json:"usage,omitempty"`
}

// ChatModel produces one AI message per request.
type ChatModel interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// StreamingChatModel can also produce the reply incrementally. Folding the
// yielded chunks with AIMessageChunk.Add gives the same message Chat would.
type StreamingChatModel interface {
	ChatModel
	StreamChat(ctx context.Context, req *ChatRequest) iter.Seq2[schema.AIMessageChunk, error]
}

// Profile describes what a model can do.
type Profile struct {
	Name              string `json:"name"`
	MaxInputTokens    int    `json:"max_input_tokens,omitempty"`
	ToolCalling       bool   `json:"tool_calling"`
	StructuredOutput  bool   `json:"structured_output"`
	Streaming         bool   `json:"streaming"`
	ParallelToolCalls bool   `json:"parallel_tool_calls"`
}

type ProfiledModel interface {
	Profile() Profile
}

// Embeddings turns text into vectors.
type Embeddings interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// LlmCache stores responses by request key. Get reports a miss with
// ok == false and a nil error.
type LlmCache interface {
	Get(ctx context.Context, key string) (resp *ChatResponse, ok bool, err error)
	Put(ctx context.Context, key string, resp *ChatResponse) error
	Clear(ctx context.Context) error
}

// ChatFunc adapts a function to ChatModel.
type ChatFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

func (f ChatFunc) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return f(ctx, req)
}

// Collect drains a stream into a single response.
func Collect(seq iter.Seq2[schema.AIMessageChunk, error]) (*ChatResponse, error) {
	var acc schema.AIMessageChunk
	for chunk, err := range seq {
		if err != nil {
			return nil, err
		}
		acc = acc.Add(chunk)
	}
	msg := acc.ToMessage()
	return &ChatResponse{Message: msg, Usage: msg.Usage}, nil
}

// Stream returns model's stream when it has one. Otherwise it calls Chat
// and yields the whole reply as one chunk.
func Stream(ctx context.Context, model ChatModel, req *ChatRequest) iter.Seq2[schema.AIMessageChunk, error] {
	if sm, ok := model.(StreamingChatModel); ok {
		return sm.StreamChat(ctx, req)
	}
	return func(yield func(schema.AIMessageChunk, error) bool) {
		resp, err := model.Chat(ctx, req)
		if err != nil {
			yield(schema.AIMessageChunk{}, err)
			return
		}
		yield(schema.AIMessageChunk{
			Content:   resp.Message.Content,
			ID:        resp.Message.ID,
			ToolCalls: resp.Message.ToolCalls,
			Usage:     resp.Usage,
		}, nil)
	}
}

// ProfileOf returns the model's profile, or a profile carrying only the
// tool calling flag when the model does not describe itself.
func ProfileOf(model ChatModel) Profile {
	if p, ok := model.(ProfiledModel); ok {
		return p.Profile()
	}
	return Profile{ToolCalling: true}
}

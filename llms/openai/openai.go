// Package openai implements llms.StreamingChatModel and llms.Embeddings on
// the OpenAI chat completions and embeddings APIs. Any OpenAI compatible
// endpoint works through WithBaseURL.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"

	"github.com/bytedance/sonic"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/schema"
)

// LLM is an OpenAI chat model.
type LLM struct {
	client         *goopenai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
}

var (
	_ llms.StreamingChatModel = (*LLM)(nil)
	_ llms.ProfiledModel      = (*LLM)(nil)
	_ llms.Embeddings         = (*LLM)(nil)
)

// New creates a client. It fails when no API key is configured.
func New(opts ...Option) (*LLM, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.token == "" {
		return nil, errs.New(errs.KindConfig, "OPENAI_API_KEY not set")
	}

	cfg := goopenai.DefaultConfig(o.token)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.organization != "" {
		cfg.OrgID = o.organization
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}

	return &LLM{
		client:         goopenai.NewClientWithConfig(cfg),
		model:          o.model,
		embeddingModel: o.embeddingModel,
		temperature:    o.temperature,
		maxTokens:      o.maxTokens,
	}, nil
}

// Profile reports the capabilities of the chat completions API.
func (l *LLM) Profile() llms.Profile {
	return llms.Profile{
		Name:              l.model,
		ToolCalling:       true,
		StructuredOutput:  true,
		Streaming:         true,
		ParallelToolCalls: true,
	}
}

func (l *LLM) Chat(ctx context.Context, req *llms.ChatRequest) (*llms.ChatResponse, error) {
	r, err := l.request(req)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.CreateChatCompletion(ctx, r)
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errs.New(errs.KindModel, "no choices in response")
	}

	choice := resp.Choices[0]
	msg := fromOpenAIMessage(choice.Message)
	msg.ID = resp.ID
	msg.Usage = &schema.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	msg.ResponseMetadata = map[string]any{
		"model":         resp.Model,
		"finish_reason": string(choice.FinishReason),
	}
	return &llms.ChatResponse{Message: msg, Usage: msg.Usage}, nil
}

// StreamChat streams the reply. Usage arrives on the last chunk.
func (l *LLM) StreamChat(ctx context.Context, req *llms.ChatRequest) iter.Seq2[schema.AIMessageChunk, error] {
	return func(yield func(schema.AIMessageChunk, error) bool) {
		r, err := l.request(req)
		if err != nil {
			yield(schema.AIMessageChunk{}, err)
			return
		}
		r.Stream = true
		r.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}

		stream, err := l.client.CreateChatCompletionStream(ctx, r)
		if err != nil {
			yield(schema.AIMessageChunk{}, mapError(err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(schema.AIMessageChunk{}, mapError(err))
				return
			}
			if !yield(fromStreamResponse(resp), nil) {
				return
			}
		}
	}
}

func (l *LLM) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := l.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(l.embeddingModel),
	})
	if err != nil {
		return nil, errs.Newf(errs.KindEmbedding, "create embeddings: %w", mapError(err))
	}
	if len(resp.Data) != len(texts) {
		return nil, errs.Newf(errs.KindEmbedding, "expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, errs.Newf(errs.KindEmbedding, "embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (l *LLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := l.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (l *LLM) request(req *llms.ChatRequest) (goopenai.ChatCompletionRequest, error) {
	r := goopenai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
	}
	for _, t := range req.Tools {
		r.Tools = append(r.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  parametersOrEmpty(t.Parameters),
			},
		})
	}
	if req.ToolChoice != nil {
		choice, err := toolChoice(req.ToolChoice)
		if err != nil {
			return r, err
		}
		r.ToolChoice = choice
	}
	if rf := req.ResponseFormat; rf != nil {
		r.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   rf.Name,
				Schema: jsonSchema(rf.Schema),
			},
		}
	}
	return r, nil
}

func parametersOrEmpty(p map[string]any) any {
	if p == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return p
}

func toolChoice(tc *schema.ToolChoice) (any, error) {
	switch tc.Mode {
	case schema.ToolChoiceAuto, "":
		return "auto", nil
	case schema.ToolChoiceRequired:
		return "required", nil
	case schema.ToolChoiceNone:
		return "none", nil
	case schema.ToolChoiceSpecific:
		return goopenai.ToolChoice{
			Type:     goopenai.ToolTypeFunction,
			Function: goopenai.ToolFunction{Name: tc.Name},
		}, nil
	}
	return nil, errs.Newf(errs.KindValidation, "unknown tool choice mode '%s'", tc.Mode)
}

// jsonSchema satisfies json.Marshaler for the response format schema.
type jsonSchema map[string]any

func (s jsonSchema) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(map[string]any(s))
}

func toOpenAIMessages(msgs []schema.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := goopenai.ChatCompletionMessage{Content: m.Content, Name: m.Name}
		switch m.Role {
		case schema.RoleSystem:
			cm.Role = goopenai.ChatMessageRoleSystem
		case schema.RoleHuman:
			cm.Role = goopenai.ChatMessageRoleUser
		case schema.RoleAI:
			cm.Role = goopenai.ChatMessageRoleAssistant
			for _, tc := range m.ToolCalls {
				args := string(tc.Arguments)
				if args == "" {
					args = "{}"
				}
				cm.ToolCalls = append(cm.ToolCalls, goopenai.ToolCall{
					ID:       tc.ID,
					Type:     goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{Name: tc.Name, Arguments: args},
				})
			}
		case schema.RoleTool:
			cm.Role = goopenai.ChatMessageRoleTool
			cm.ToolCallID = m.ToolCallID
		case schema.RoleChat:
			cm.Role = m.CustomRole
		default:
			continue
		}
		out = append(out, cm)
	}
	return out
}

func fromOpenAIMessage(m goopenai.ChatCompletionMessage) schema.Message {
	msg := schema.AIMessage(m.Content)
	for _, tc := range m.ToolCalls {
		args := tc.Function.Arguments
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			msg.InvalidToolCalls = append(msg.InvalidToolCalls, schema.InvalidToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
				Error:     "invalid JSON arguments",
			})
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, schema.NewToolCall(tc.ID, tc.Function.Name, []byte(args)))
	}
	return msg
}

func fromStreamResponse(resp goopenai.ChatCompletionStreamResponse) schema.AIMessageChunk {
	chunk := schema.AIMessageChunk{ID: resp.ID}
	if len(resp.Choices) > 0 {
		delta := resp.Choices[0].Delta
		chunk.Content = delta.Content
		for _, tc := range delta.ToolCalls {
			chunk.ToolCallChunks = append(chunk.ToolCallChunks, schema.ToolCallChunk{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
				Index:     tc.Index,
			})
		}
	}
	if u := resp.Usage; u != nil {
		chunk.Usage = &schema.Usage{
			InputTokens:  u.PromptTokens,
			OutputTokens: u.CompletionTokens,
			TotalTokens:  u.TotalTokens,
		}
	}
	return chunk
}

// mapError tags provider failures. A 429 becomes KindRateLimit, a deadline
// KindTimeout, anything else KindModel.
func mapError(err error) error {
	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return errs.Wrap(errs.KindRateLimit, err)
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.KindTimeout, err)
	}
	return errs.Wrap(errs.KindModel, err)
}

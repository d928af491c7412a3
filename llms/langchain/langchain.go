// Package langchain adapts langchaingo models and embedders to the llms
// contracts, so any provider langchaingo ships can drive a graph agent.
package langchain

import (
	"context"
	"iter"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/schema"
	"github.com/tmc/langchaingo/embeddings"
	lcllms "github.com/tmc/langchaingo/llms"
)

// Model wraps a langchaingo llms.Model.
type Model struct {
	model       lcllms.Model
	profile     llms.Profile
	callOptions []lcllms.CallOption
}

var (
	_ llms.StreamingChatModel = (*Model)(nil)
	_ llms.ProfiledModel      = (*Model)(nil)
)

type Option func(*Model)

// WithProfile sets what Profile reports.
func WithProfile(p llms.Profile) Option {
	return func(m *Model) {
		m.profile = p
	}
}

// WithCallOptions appends options passed to every GenerateContent call.
func WithCallOptions(opts ...lcllms.CallOption) Option {
	return func(m *Model) {
		m.callOptions = append(m.callOptions, opts...)
	}
}

// New wraps model.
func New(model lcllms.Model, opts ...Option) *Model {
	m := &Model{
		model:   model,
		profile: llms.Profile{Name: "langchaingo", ToolCalling: true, Streaming: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) Profile() llms.Profile {
	return m.profile
}

func (m *Model) Chat(ctx context.Context, req *llms.ChatRequest) (*llms.ChatResponse, error) {
	msg, err := m.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return &llms.ChatResponse{Message: msg, Usage: msg.Usage}, nil
}

// StreamChat yields text as the provider streams it. Tool calls and usage
// arrive on a final chunk once generation completes.
func (m *Model) StreamChat(ctx context.Context, req *llms.ChatRequest) iter.Seq2[schema.AIMessageChunk, error] {
	return func(yield func(schema.AIMessageChunk, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		type result struct {
			msg schema.Message
			err error
		}
		parts := make(chan string)
		done := make(chan result, 1)

		go func() {
			msg, err := m.generate(ctx, req, lcllms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case parts <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}))
			close(parts)
			done <- result{msg, err}
		}()

		streamed := false
		for p := range parts {
			streamed = true
			if !yield(schema.AIMessageChunk{Content: p}, nil) {
				cancel()
				for range parts {
				}
				<-done
				return
			}
		}

		r := <-done
		if r.err != nil {
			yield(schema.AIMessageChunk{}, r.err)
			return
		}
		last := schema.AIMessageChunk{ID: r.msg.ID, ToolCalls: r.msg.ToolCalls, Usage: r.msg.Usage}
		if !streamed {
			last.Content = r.msg.Content
		}
		yield(last, nil)
	}
}

func (m *Model) generate(ctx context.Context, req *llms.ChatRequest, extra ...lcllms.CallOption) (schema.Message, error) {
	opts := append([]lcllms.CallOption{}, m.callOptions...)
	if len(req.Tools) > 0 {
		opts = append(opts, lcllms.WithTools(toTools(req.Tools)))
	}
	if req.ToolChoice != nil {
		choice, err := toolChoice(req.ToolChoice)
		if err != nil {
			return schema.Message{}, err
		}
		opts = append(opts, lcllms.WithToolChoice(choice))
	}
	if req.ResponseFormat != nil {
		opts = append(opts, lcllms.WithJSONMode())
	}
	opts = append(opts, extra...)

	resp, err := m.model.GenerateContent(ctx, ToMessageContents(req.Messages), opts...)
	if err != nil {
		if errs.KindOf(err) != errs.KindUnknown {
			return schema.Message{}, err
		}
		return schema.Message{}, errs.Wrap(errs.KindModel, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return schema.Message{}, errs.New(errs.KindModel, "no choices in response")
	}
	return fromChoice(resp.Choices[0]), nil
}

func toTools(defs []schema.ToolDefinition) []lcllms.Tool {
	out := make([]lcllms.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, lcllms.Tool{
			Type: "function",
			Function: &lcllms.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
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
		return lcllms.ToolChoice{
			Type:     "function",
			Function: &lcllms.FunctionReference{Name: tc.Name},
		}, nil
	}
	return nil, errs.Newf(errs.KindValidation, "unknown tool choice mode '%s'", tc.Mode)
}

// ToMessageContents converts messages to langchaingo's representation.
// Remove markers are dropped.
func ToMessageContents(msgs []schema.Message) []lcllms.MessageContent {
	out := make([]lcllms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case schema.RoleSystem:
			out = append(out, lcllms.TextParts(lcllms.ChatMessageTypeSystem, m.Content))
		case schema.RoleHuman:
			out = append(out, lcllms.TextParts(lcllms.ChatMessageTypeHuman, m.Content))
		case schema.RoleChat:
			out = append(out, lcllms.TextParts(lcllms.ChatMessageTypeGeneric, m.Content))
		case schema.RoleAI:
			mc := lcllms.MessageContent{Role: lcllms.ChatMessageTypeAI}
			if m.Content != "" {
				mc.Parts = append(mc.Parts, lcllms.TextContent{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				mc.Parts = append(mc.Parts, lcllms.ToolCall{
					ID:           tc.ID,
					Type:         "function",
					FunctionCall: &lcllms.FunctionCall{Name: tc.Name, Arguments: string(tc.Arguments)},
				})
			}
			out = append(out, mc)
		case schema.RoleTool:
			out = append(out, lcllms.MessageContent{
				Role: lcllms.ChatMessageTypeTool,
				Parts: []lcllms.ContentPart{lcllms.ToolCallResponse{
					ToolCallID: m.ToolCallID,
					Name:       m.Name,
					Content:    m.Content,
				}},
			})
		}
	}
	return out
}

func fromChoice(c *lcllms.ContentChoice) schema.Message {
	msg := schema.AIMessage(c.Content)
	for _, tc := range c.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, schema.NewToolCall(tc.ID, tc.FunctionCall.Name, tc.FunctionCall.Arguments))
	}
	if len(msg.ToolCalls) == 0 && c.FuncCall != nil {
		msg.ToolCalls = append(msg.ToolCalls, schema.NewToolCall("", c.FuncCall.Name, c.FuncCall.Arguments))
	}
	if c.StopReason != "" {
		msg.ResponseMetadata = map[string]any{"stop_reason": c.StopReason}
	}
	msg.Usage = usageFrom(c.GenerationInfo)
	return msg
}

// usageFrom reads token counts from GenerationInfo. Providers disagree on
// key spelling, so both the OpenAI and snake case forms are accepted.
func usageFrom(info map[string]any) *schema.Usage {
	in, okIn := intField(info, "PromptTokens", "prompt_tokens", "input_tokens")
	out, okOut := intField(info, "CompletionTokens", "completion_tokens", "output_tokens")
	total, okTotal := intField(info, "TotalTokens", "total_tokens")
	if !okIn && !okOut && !okTotal {
		return nil
	}
	if !okTotal {
		total = in + out
	}
	return &schema.Usage{InputTokens: in, OutputTokens: out, TotalTokens: total}
}

func intField(info map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v, true
		case int32:
			return int(v), true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		}
	}
	return 0, false
}

// Embedder wraps a langchaingo embedder and tags its failures.
type Embedder struct {
	e embeddings.Embedder
}

var _ llms.Embeddings = (*Embedder)(nil)

func NewEmbedder(e embeddings.Embedder) *Embedder {
	return &Embedder{e: e}
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.e.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, err)
	}
	return vecs, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.e.EmbedQuery(ctx, text)
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, err)
	}
	return vec, nil
}

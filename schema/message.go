package schema

import (
	"encoding/json"
	"strings"

	"github.com/bytedance/sonic"
)

// Role is the author of a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
	// RoleChat is a message with a caller-defined role name stored in CustomRole.
	RoleChat Role = "chat"
	// RoleRemove marks the message with the same ID for deletion when merged.
	RoleRemove Role = "remove"
)

// RemoveAll is the ID a remove marker uses to clear the whole history.
const RemoveAll = "__remove_all__"

// BlockType identifies the payload of a ContentBlock.
type BlockType string

const (
	BlockText      BlockType = "text"
	BlockImage     BlockType = "image"
	BlockAudio     BlockType = "audio"
	BlockFile      BlockType = "file"
	BlockData      BlockType = "data"
	BlockReasoning BlockType = "reasoning"
)

// ContentBlock is a typed piece of multimodal content. A message may carry
// blocks alongside its plain Content.
type ContentBlock struct {
	Type     BlockType `json:"type"`
	Text     string    `json:"text,omitempty"`
	URL      string    `json:"url,omitempty"`
	Data     string    `json:"data,omitempty"`
	MimeType string    `json:"mime_type,omitempty"`
}

// Usage is the token accounting reported by a model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the field-wise sum of two usages. A nil operand counts as zero,
// and the result is nil only when both are nil.
func (u *Usage) Add(other *Usage) *Usage {
	if u == nil && other == nil {
		return nil
	}
	var sum Usage
	if u != nil {
		sum = *u
	}
	if other != nil {
		sum.InputTokens += other.InputTokens
		sum.OutputTokens += other.OutputTokens
		sum.TotalTokens += other.TotalTokens
	}
	return &sum
}

// ToolCall is a model request to run a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// NewToolCall builds a ToolCall, JSON-encoding args unless they are already raw JSON.
func NewToolCall(id, name string, args any) ToolCall {
	var raw json.RawMessage
	switch v := args.(type) {
	case nil:
	case json.RawMessage:
		raw = v
	case []byte:
		raw = json.RawMessage(v)
	case string:
		raw = json.RawMessage(v)
	default:
		b, err := sonic.Marshal(v)
		if err == nil {
			raw = b
		}
	}
	return ToolCall{ID: id, Name: name, Arguments: raw}
}

// InvalidToolCall is a tool call whose arguments could not be parsed.
type InvalidToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`

	CustomRole string `json:"custom_role,omitempty"`

	ToolCalls        []ToolCall        `json:"tool_calls,omitempty"`
	InvalidToolCalls []InvalidToolCall `json:"invalid_tool_calls,omitempty"`
	Usage            *Usage            `json:"usage,omitempty"`

	ToolCallID string `json:"tool_call_id,omitempty"`

	Blocks []ContentBlock `json:"blocks,omitempty"`

	AdditionalKwargs map[string]any `json:"additional_kwargs,omitempty"`
	ResponseMetadata map[string]any `json:"response_metadata,omitempty"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

func AIMessage(content string, toolCalls ...ToolCall) Message {
	return Message{Role: RoleAI, Content: content, ToolCalls: toolCalls}
}

func ToolMessage(content, toolCallID string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// ChatMessage creates a message with a custom role name.
func ChatMessage(role, content string) Message {
	return Message{Role: RoleChat, CustomRole: role, Content: content}
}

// RemoveMessage creates a marker that deletes the message with id when merged.
func RemoveMessage(id string) Message {
	return Message{Role: RoleRemove, ID: id}
}

// HasToolCalls reports whether m is an AI message requesting tool calls.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAI && len(m.ToolCalls) > 0
}

// Text returns Content, or the concatenated text blocks when Content is empty.
func (m Message) Text() string {
	if m.Content != "" || len(m.Blocks) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, b := range m.Blocks {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

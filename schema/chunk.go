package schema

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// ToolCallChunk is a fragment of a tool call produced while streaming.
// Fragments with the same Index (or, without an index, the same ID) belong
// to one call; their Arguments concatenate.
type ToolCallChunk struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Index     *int   `json:"index,omitempty"`
}

// AIMessageChunk is a streamed fragment of an AI message.
//
// Chunks form a monoid under Add: the zero value is the identity, content
// and the tool call arrays concatenate, usage sums and the first non-empty
// ID wins.
type AIMessageChunk struct {
	Content        string          `json:"content"`
	ID             string          `json:"id,omitempty"`
	ToolCalls      []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallChunks []ToolCallChunk `json:"tool_call_chunks,omitempty"`
	Usage          *Usage          `json:"usage,omitempty"`
}

// Add returns c followed by other.
func (c AIMessageChunk) Add(other AIMessageChunk) AIMessageChunk {
	id := c.ID
	if id == "" {
		id = other.ID
	}
	return AIMessageChunk{
		Content:        c.Content + other.Content,
		ID:             id,
		ToolCalls:      concat(c.ToolCalls, other.ToolCalls),
		ToolCallChunks: concat(c.ToolCallChunks, other.ToolCallChunks),
		Usage:          c.Usage.Add(other.Usage),
	}
}

func concat[T any](a, b []T) []T {
	if len(a)+len(b) == 0 {
		return nil
	}
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// ConcatChunks folds chunks with Add.
func ConcatChunks(chunks []AIMessageChunk) AIMessageChunk {
	var acc AIMessageChunk
	for _, c := range chunks {
		acc = acc.Add(c)
	}
	return acc
}

// ToMessage assembles the chunk into an AI message. Tool call chunks are
// grouped and their argument fragments joined; groups whose arguments are
// not valid JSON become invalid tool calls.
func (c AIMessageChunk) ToMessage() Message {
	msg := Message{
		Role:    RoleAI,
		Content: c.Content,
		ID:      c.ID,
		Usage:   c.Usage,
	}
	msg.ToolCalls = append(msg.ToolCalls, c.ToolCalls...)

	type group struct {
		id, name string
		args     strings.Builder
		order    int
	}
	groups := map[string]*group{}
	for i, ch := range c.ToolCallChunks {
		key := ch.ID
		if ch.Index != nil {
			key = "#" + strconv.Itoa(*ch.Index)
		}
		g, ok := groups[key]
		if !ok {
			g = &group{order: i}
			groups[key] = g
		}
		if g.id == "" {
			g.id = ch.ID
		}
		if g.name == "" {
			g.name = ch.Name
		}
		g.args.WriteString(ch.Arguments)
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })

	for _, g := range ordered {
		args := g.args.String()
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			msg.InvalidToolCalls = append(msg.InvalidToolCalls, InvalidToolCall{
				ID:        g.id,
				Name:      g.name,
				Arguments: g.args.String(),
				Error:     "invalid JSON arguments",
			})
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: g.id, Name: g.name, Arguments: json.RawMessage(args)})
	}
	if len(msg.ToolCalls) == 0 {
		msg.ToolCalls = nil
	}
	return msg
}

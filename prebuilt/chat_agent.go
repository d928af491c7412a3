package prebuilt

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/schema"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/tool"
)

// ChatAgent is a multi-turn session over a message-state agent graph.
//
// With a checkpointer the conversation lives in the thread and every turn
// restarts the finished thread with the new human message. A turn that fails
// leaves the thread mid-run, so the next turn moves to a fresh thread seeded
// with the history of the last completed turn. Without a checkpointer the
// session keeps the history itself and sends all of it each turn.
type ChatAgent struct {
	// Runnable is the agent graph driven by the session.
	Runnable *graph.StateRunnable[schema.MessageState]

	threadID string
	history  []schema.Message
	// pending is the node a paused turn resumes at.
	pending string
	// failed marks a thread left unfinished by an error.
	failed bool
}

// NewChatAgent creates a ReAct agent and wraps it in a session.
func NewChatAgent(model llms.ChatModel, tools []tool.Tool, opts ...AgentOption) (*ChatAgent, error) {
	agent, err := CreateReactAgent(model, tools, opts...)
	if err != nil {
		return nil, err
	}
	return NewChatAgentFromRunnable(agent), nil
}

// NewChatAgentFromRunnable wraps an already compiled agent, such as a
// supervisor or a swarm.
func NewChatAgentFromRunnable(r *graph.StateRunnable[schema.MessageState]) *ChatAgent {
	return &ChatAgent{Runnable: r, threadID: uuid.NewString()}
}

// ThreadID returns the current session ID.
func (c *ChatAgent) ThreadID() string {
	return c.threadID
}

// History returns a copy of the conversation so far.
func (c *ChatAgent) History() []schema.Message {
	return slices.Clone(c.history)
}

// Chat sends message and returns the text of the agent's last reply. When
// the graph pauses, the returned error is a *graph.GraphInterrupt and the
// turn continues with Resume.
func (c *ChatAgent) Chat(ctx context.Context, message string) (string, error) {
	if c.pending != "" {
		return "", errs.Newf(errs.KindValidation, "turn paused before node '%s', call Resume first", c.pending)
	}

	human := schema.HumanMessage(message)
	input := schema.NewMessageState(append(slices.Clone(c.history), human)...)
	if c.Runnable.Checkpointer() == nil {
		return c.invoke(ctx, input, nil)
	}

	config := &graph.Config{ThreadID: c.threadID, Restart: true}
	if c.failed {
		c.threadID = uuid.NewString()
		config = graph.WithThreadID(c.threadID)
	} else {
		input = schema.NewMessageState(human)
	}
	answer, err := c.invoke(ctx, input, config)
	var interrupt *graph.GraphInterrupt
	c.failed = err != nil && !errors.As(err, &interrupt)
	return answer, err
}

// Resume continues a paused turn from its checkpoint.
func (c *ChatAgent) Resume(ctx context.Context) (string, error) {
	if c.pending == "" {
		return "", errs.New(errs.KindValidation, "no paused turn to resume")
	}
	if c.Runnable.Checkpointer() == nil {
		return "", errs.New(errs.KindStore, "resuming needs a checkpointer")
	}
	return c.invoke(ctx, schema.MessageState{}, graph.WithThreadID(c.threadID))
}

// Reset starts a new conversation. The old thread is deleted when the
// checkpointer supports it.
func (c *ChatAgent) Reset(ctx context.Context) error {
	if d, ok := c.Runnable.Checkpointer().(store.ThreadDeleter); ok {
		if err := d.DeleteThread(ctx, store.CheckpointConfig{ThreadID: c.threadID}); err != nil {
			return err
		}
	}
	c.threadID = uuid.NewString()
	c.history = nil
	c.pending = ""
	c.failed = false
	return nil
}

func (c *ChatAgent) invoke(ctx context.Context, input schema.MessageState, config *graph.Config) (string, error) {
	res, err := c.Runnable.InvokeWithConfig(ctx, input, config)
	if err != nil {
		return "", err
	}
	c.history = res.State.Messages

	if res.Interrupted {
		c.pending = res.NextNode
		return "", &graph.GraphInterrupt{Node: res.NextNode, NextNode: res.NextNode, Value: res.InterruptValue}
	}
	c.pending = ""

	last, ok := res.State.LastAI()
	if !ok {
		return "", errs.New(errs.KindGraph, "agent produced no reply")
	}
	return last.Text(), nil
}

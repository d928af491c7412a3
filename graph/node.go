package graph

import (
	"context"

	"github.com/bytedance/sonic"
)

// Node is a named unit of work in a graph.
type Node[S any] interface {
	Process(ctx context.Context, state S) (NodeOutput[S], error)
}

// NodeFunc adapts a plain function to the Node interface.
type NodeFunc[S any] func(ctx context.Context, state S) (NodeOutput[S], error)

// Process calls f(ctx, state).
func (f NodeFunc[S]) Process(ctx context.Context, state S) (NodeOutput[S], error) {
	return f(ctx, state)
}

// NodeOutput is what a node returns: either a replacement state or a
// Command. Build one with StateOutput or CommandOutput.
type NodeOutput[S any] struct {
	state   *S
	command *Command[S]
}

// StateOutput replaces the current state with s.
func StateOutput[S any](s S) NodeOutput[S] {
	return NodeOutput[S]{state: &s}
}

// CommandOutput hands routing, a partial update or an interrupt to the engine.
func CommandOutput[S any](cmd Command[S]) NodeOutput[S] {
	return NodeOutput[S]{command: &cmd}
}

// State returns the replacement state, if this output carries one.
func (o NodeOutput[S]) State() (S, bool) {
	if o.state == nil {
		var zero S
		return zero, false
	}
	return *o.state, true
}

// Command returns the command, if this output carries one.
func (o NodeOutput[S]) Command() (*Command[S], bool) {
	return o.command, o.command != nil
}

// IsCommand reports whether the output is a Command.
func (o NodeOutput[S]) IsCommand() bool {
	return o.command != nil
}

type nodeOutputJSON[S any] struct {
	State   *S          `json:"state,omitempty"`
	Command *Command[S] `json:"command,omitempty"`
}

// MarshalJSON encodes the output for the node cache.
func (o NodeOutput[S]) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(nodeOutputJSON[S]{State: o.state, Command: o.command})
}

// UnmarshalJSON decodes an output written by MarshalJSON.
func (o *NodeOutput[S]) UnmarshalJSON(data []byte) error {
	var w nodeOutputJSON[S]
	if err := sonic.Unmarshal(data, &w); err != nil {
		return err
	}
	o.state, o.command = w.State, w.Command
	return nil
}

// Command lets a node update state, override routing, or pause the run.
//
// Update is merged into the current state with State.Merge. Goto replaces
// the edge-based routing. A non-nil InterruptValue stops the run and is
// returned to the caller.
type Command[S any] struct {
	Update         *S     `json:"update,omitempty"`
	Goto           *Route `json:"goto,omitempty"`
	InterruptValue any    `json:"interrupt_value,omitempty"`
}

// Route is the target of a Command: a single node, or a fan-out of Sends.
type Route struct {
	Node  string `json:"node,omitempty"`
	Sends []Send `json:"sends"`
}

// Send addresses one branch of a fan-out.
type Send struct {
	Node string `json:"node"`
	Arg  any    `json:"arg,omitempty"`
}

// To routes to a single node. To(END) finishes the run.
func To(node string) *Route {
	return &Route{Node: node}
}

// Fanout routes to several branches at once. Fan-out is reserved: the
// sequential engine treats it as the end of the run.
func Fanout(sends ...Send) *Route {
	return &Route{Sends: append([]Send{}, sends...)}
}

// IsMany reports whether the route is a fan-out.
func (r *Route) IsMany() bool {
	return r.Sends != nil
}

// Goto is a shorthand for a command that only routes.
func Goto[S any](node string) NodeOutput[S] {
	return CommandOutput(Command[S]{Goto: To(node)})
}

// UpdateAndGoto is a shorthand for a command that merges update and routes.
func UpdateAndGoto[S any](update S, node string) NodeOutput[S] {
	return CommandOutput(Command[S]{Update: &update, Goto: To(node)})
}

// Interrupt is a shorthand for a command that pauses the run with value.
func Interrupt[S any](value any) NodeOutput[S] {
	return CommandOutput(Command[S]{InterruptValue: value})
}

package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/smallnest/agentgraph/errs"
)

// RetryConfig configures retry behavior for nodes
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// RetryableErrors decides whether err triggers another attempt. Nil
	// retries every error.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryNode wraps a node with retry logic. The error of the last attempt is
// returned unchanged.
type RetryNode[S any] struct {
	node   Node[S]
	config *RetryConfig
}

// NewRetryNode wraps node. A nil config uses DefaultRetryConfig.
func NewRetryNode[S any](node Node[S], config *RetryConfig) *RetryNode[S] {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryNode[S]{node: node, config: config}
}

// Process runs the node until it succeeds, fails with a non-retryable error,
// or runs out of attempts.
func (rn *RetryNode[S]) Process(ctx context.Context, state S) (NodeOutput[S], error) {
	var lastErr error
	delay := rn.config.InitialDelay

	for attempt := 1; attempt <= max(rn.config.MaxAttempts, 1); attempt++ {
		out, err := rn.node.Process(ctx, state)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if rn.config.RetryableErrors != nil && !rn.config.RetryableErrors(err) {
			return NodeOutput[S]{}, err
		}
		if attempt >= rn.config.MaxAttempts {
			break
		}

		select {
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * rn.config.BackoffFactor)
			if rn.config.MaxDelay > 0 {
				delay = min(delay, rn.config.MaxDelay)
			}
		case <-ctx.Done():
			return NodeOutput[S]{}, ctx.Err()
		}
	}
	return NodeOutput[S]{}, lastErr
}

// AddNodeWithRetry adds a node wrapped in a RetryNode.
func (g *StateGraph[S]) AddNodeWithRetry(name string, description string, node Node[S], config *RetryConfig) {
	g.AddNode(name, description, NewRetryNode(node, config))
}

// TimeoutNode bounds the run time of a node.
type TimeoutNode[S any] struct {
	node    Node[S]
	timeout time.Duration
}

// NewTimeoutNode wraps node with a deadline of timeout per call.
func NewTimeoutNode[S any](node Node[S], timeout time.Duration) *TimeoutNode[S] {
	return &TimeoutNode[S]{node: node, timeout: timeout}
}

type timeoutResult[S any] struct {
	out NodeOutput[S]
	err error
}

// Process runs the node with a deadline. The node receives the deadline in
// its context; a node that ignores it is abandoned when the deadline passes.
func (tn *TimeoutNode[S]) Process(ctx context.Context, state S) (NodeOutput[S], error) {
	ctx, cancel := context.WithTimeout(ctx, tn.timeout)
	defer cancel()

	done := make(chan timeoutResult[S], 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- timeoutResult[S]{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		out, err := tn.node.Process(ctx, state)
		done <- timeoutResult[S]{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return NodeOutput[S]{}, errs.Newf(errs.KindTimeout, "node exceeded %v: %w", tn.timeout, ctx.Err())
	}
}

// AddNodeWithTimeout adds a node wrapped in a TimeoutNode.
func (g *StateGraph[S]) AddNodeWithTimeout(name string, description string, node Node[S], timeout time.Duration) {
	g.AddNode(name, description, NewTimeoutNode(node, timeout))
}

package graph

import (
	"context"

	"github.com/smallnest/agentgraph/store"
)

type (
	configKey         struct{}
	storeKey          struct{}
	streamWriterKey   struct{}
	checkpointerKey   struct{}
	subgraphResumeKey struct{}
)

// StreamWriter lets a node emit custom values to a stream consumer.
type StreamWriter interface {
	Write(value any)
}

// StreamWriterFunc adapts a function to StreamWriter.
type StreamWriterFunc func(value any)

// Write calls f(value).
func (f StreamWriterFunc) Write(value any) { f(value) }

type discardWriter struct{}

func (discardWriter) Write(any) {}

// WithConfig returns a context carrying config.
func WithConfig(ctx context.Context, config *Config) context.Context {
	return context.WithValue(ctx, configKey{}, config)
}

// GetConfig returns the invocation config, or nil outside a run.
func GetConfig(ctx context.Context) *Config {
	c, _ := ctx.Value(configKey{}).(*Config)
	return c
}

// GetThreadID returns the thread of the current run, or "".
func GetThreadID(ctx context.Context) string {
	if c := GetConfig(ctx); c != nil {
		return c.ThreadID
	}
	return ""
}

// withStore returns a context carrying the key/value store.
func withStore(ctx context.Context, s store.Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// GetStore returns the store attached with WithStore at compile time, or nil.
func GetStore(ctx context.Context) store.Store {
	s, _ := ctx.Value(storeKey{}).(store.Store)
	return s
}

func withCheckpointer(ctx context.Context, cp store.Checkpointer) context.Context {
	return context.WithValue(ctx, checkpointerKey{}, cp)
}

// checkpointerFrom returns the checkpointer of the enclosing run, or nil.
func checkpointerFrom(ctx context.Context) store.Checkpointer {
	cp, _ := ctx.Value(checkpointerKey{}).(store.Checkpointer)
	return cp
}

// withSubgraphResume marks that the node about to run is a subgraph whose
// paused child run lives in thread.
func withSubgraphResume(ctx context.Context, thread string) context.Context {
	return context.WithValue(ctx, subgraphResumeKey{}, thread)
}

func subgraphResumeThread(ctx context.Context) string {
	thread, _ := ctx.Value(subgraphResumeKey{}).(string)
	return thread
}

// WithStreamWriter returns a context whose StreamWriter is w.
func WithStreamWriter(ctx context.Context, w StreamWriter) context.Context {
	return context.WithValue(ctx, streamWriterKey{}, w)
}

// GetStreamWriter returns the writer for custom stream values. Outside a
// stream the writer discards everything, so it is never nil.
func GetStreamWriter(ctx context.Context) StreamWriter {
	if w, ok := ctx.Value(streamWriterKey{}).(StreamWriter); ok && w != nil {
		return w
	}
	return discardWriter{}
}

// HasStreamWriter reports whether a stream consumer is listening.
func HasStreamWriter(ctx context.Context) bool {
	w, ok := ctx.Value(streamWriterKey{}).(StreamWriter)
	return ok && w != nil
}

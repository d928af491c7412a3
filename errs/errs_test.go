package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorPrefixes(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindGraph, "graph error: boom"},
		{KindModel, "model error: boom"},
		{KindRateLimit, "rate limit exceeded: boom"},
		{KindTool, "tool error: boom"},
		{KindToolNotFound, "tool not found: boom"},
		{KindVectorStore, "vector store error: boom"},
		{KindCallback, "callback error: boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, New(tt.kind, "boom").Error())
	}
}

func TestNewfUnwrap(t *testing.T) {
	err := Graphf("serialize state: %w", io.ErrUnexpectedEOF)
	assert.Equal(t, "graph error: serialize state: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestKindOfThroughWrapping(t *testing.T) {
	inner := Toolf("bad input")
	wrapped := fmt.Errorf("calling tool: %w", inner)

	assert.Equal(t, KindTool, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindSentinelMatch(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Graphf("node 'x' not found"))
	assert.True(t, errors.Is(err, New(KindGraph, "")))
	assert.False(t, errors.Is(err, New(KindTool, "")))
}

func TestMaxStepsExceeded(t *testing.T) {
	err := MaxStepsExceeded(5)
	assert.Equal(t, "max steps exceeded: 5", err.Error())
	assert.Equal(t, 5, err.MaxSteps)
	assert.Equal(t, KindMaxStepsExceeded, err.Kind())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(KindStore, nil))
	err := Wrap(KindStore, io.EOF)
	assert.Equal(t, "store error: EOF", err.Error())
	assert.ErrorIs(t, err, io.EOF)
}

func TestWithCause(t *testing.T) {
	sentinel := errors.New("node not found")
	err := Graphf("node '%s' not found", "x").WithCause(sentinel)
	assert.Equal(t, "graph error: node 'x' not found", err.Error())
	assert.ErrorIs(t, err, sentinel)
}

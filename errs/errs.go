// Package errs defines the error taxonomy shared by every agentgraph package.
//
// Each error carries a Kind and a message. The rendered message always starts
// with the kind's short prefix (for example "graph error: " or "tool error: "),
// so callers can either switch on KindOf(err) or match on the string.
//
//	if errs.KindOf(err) == errs.KindGraph {
//		// builder or engine failure
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies the subsystem that produced an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindGraph
	KindModel
	KindRateLimit
	KindTimeout
	KindTool
	KindToolNotFound
	KindParsing
	KindValidation
	KindMemory
	KindCache
	KindStore
	KindVectorStore
	KindRetriever
	KindLoader
	KindSplitter
	KindEmbedding
	KindConfig
	KindMcp
	KindMaxStepsExceeded
	KindCallback
)

var prefixes = map[Kind]string{
	KindGraph:            "graph error",
	KindModel:            "model error",
	KindRateLimit:        "rate limit exceeded",
	KindTimeout:          "timeout",
	KindTool:             "tool error",
	KindToolNotFound:     "tool not found",
	KindParsing:          "parsing error",
	KindValidation:       "validation error",
	KindMemory:           "memory error",
	KindCache:            "cache error",
	KindStore:            "store error",
	KindVectorStore:      "vector store error",
	KindRetriever:        "retriever error",
	KindLoader:           "loader error",
	KindSplitter:         "splitter error",
	KindEmbedding:        "embedding error",
	KindConfig:           "config error",
	KindMcp:              "mcp error",
	KindMaxStepsExceeded: "max steps exceeded",
	KindCallback:         "callback error",
}

// Prefix returns the short message prefix for the kind.
func (k Kind) Prefix() string {
	if p, ok := prefixes[k]; ok {
		return p
	}
	return "error"
}

func (k Kind) String() string {
	return k.Prefix()
}

// Error is the tagged error value.
type Error struct {
	kind    Kind
	Message string
	// MaxSteps is set for KindMaxStepsExceeded.
	MaxSteps int
	Err      error
}

// New creates an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, Message: msg}
}

// Newf creates an Error of the given kind with a formatted message.
// A %w verb in the format is honored for unwrapping.
func Newf(kind Kind, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{kind: kind, Message: wrapped.Error(), Err: errors.Unwrap(wrapped)}
}

// Wrap attaches a kind to err. The message of err becomes the error message.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, Message: err.Error(), Err: err}
}

// MaxStepsExceeded reports an agent loop that ran past its step budget.
func MaxStepsExceeded(maxSteps int) *Error {
	return &Error{kind: KindMaxStepsExceeded, Message: fmt.Sprintf("%d", maxSteps), MaxSteps: maxSteps}
}

// WithCause sets the wrapped cause without touching the message, so that
// errors.Is matches a sentinel the message does not spell out.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.kind.Prefix()
	}
	return e.kind.Prefix() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the error kind.
func (e *Error) Kind() Kind {
	return e.kind
}

// Is reports whether target is an *Error of the same kind with no message,
// which lets errors.Is(err, errs.New(errs.KindGraph, "")) act as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.kind == e.kind && t.Message == ""
}

// KindOf returns the kind of the first tagged error in err's chain,
// or KindUnknown if there is none.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// Graphf is shorthand for Newf(KindGraph, ...).
func Graphf(format string, args ...any) *Error {
	return Newf(KindGraph, format, args...)
}

// Toolf is shorthand for Newf(KindTool, ...).
func Toolf(format string, args ...any) *Error {
	return Newf(KindTool, format, args...)
}

// Modelf is shorthand for Newf(KindModel, ...).
func Modelf(format string, args ...any) *Error {
	return Newf(KindModel, format, args...)
}

// Storef is shorthand for Newf(KindStore, ...).
func Storef(format string, args ...any) *Error {
	return Newf(KindStore, format, args...)
}

// Configf is shorthand for Newf(KindConfig, ...).
func Configf(format string, args ...any) *Error {
	return Newf(KindConfig, format, args...)
}

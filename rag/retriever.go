package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/agentgraph/tool"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"description=what to look up in the knowledge base"`
}

// NewRetrieverTool exposes ix to agents as a tool returning the k best
// matches as numbered passages.
func NewRetrieverTool(ix *Index, name, description string, k int) (tool.Tool, error) {
	if description == "" {
		description = "Searches the knowledge base and returns the most relevant passages."
	}
	return tool.NewFunctionTool(name, description, func(ctx context.Context, in searchArgs) (string, error) {
		results, err := ix.Search(ctx, in.Query, k)
		if err != nil {
			return "", err
		}
		if len(results) == 0 {
			return "no matching documents", nil
		}
		return FormatContext(results), nil
	})
}

// FormatContext renders results as numbered passages with their source.
func FormatContext(results []Result) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s\n%s", i+1, r.Document.Source(), r.Document.Content)
	}
	return sb.String()
}

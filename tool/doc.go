// Package tool defines the tools a model can call from an agent graph.
//
// A Tool has a name, a description, an optional JSON schema for its
// arguments and a Call method that receives the raw JSON arguments. Tools
// that need the surrounding run (the graph's store, the stream writer, the
// current state or the tool call id) implement RuntimeAwareTool.
//
// # Typed tools
//
//	type AddArgs struct {
//		A int `json:"a" jsonschema:"description=first addend"`
//		B int `json:"b" jsonschema:"description=second addend"`
//	}
//
//	add, err := tool.NewFunctionTool("add", "Adds two integers",
//		func(ctx context.Context, in AddArgs) (int, error) {
//			return in.A + in.B, nil
//		})
//
// # Registry
//
// A Registry resolves tool calls by name. Calls run one after another
// unless SetConcurrent(true) is set and none of the called tools reports
// ConcurrencySafe() == false.
//
// # Builtin tools
//
//   - BraveSearch queries the Brave Search API
//   - WebFetch downloads a page and returns its sanitized text
//   - FromLangchain adapts any langchaingo tool
package tool

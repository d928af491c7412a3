package prebuilt

import (
	"context"
	"fmt"
	"slices"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/schema"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/tool"
)

// Node names of the ReAct agent graph.
const (
	AgentNode = "agent"
	ToolsNode = "tools"
)

// StateHook rewrites the conversation around a model call.
type StateHook func(ctx context.Context, state schema.MessageState) (schema.MessageState, error)

// ModelCaller performs one model request.
type ModelCaller func(ctx context.Context, req *llms.ChatRequest) (*llms.ChatResponse, error)

// Middleware observes and rewrites an agent step. BeforeAgent runs before
// the pre-model hook, AfterAgent after the post-model hook. WrapModelCall
// sits between the agent and the model and must call next to reach it.
//
// The first middleware given is the outermost.
type Middleware interface {
	BeforeAgent(ctx context.Context, state schema.MessageState) (schema.MessageState, error)
	AfterAgent(ctx context.Context, state schema.MessageState) (schema.MessageState, error)
	WrapModelCall(ctx context.Context, req *llms.ChatRequest, next ModelCaller) (*llms.ChatResponse, error)
}

// BaseMiddleware implements Middleware as a pass-through. Embed it and
// override what you need.
type BaseMiddleware struct{}

func (BaseMiddleware) BeforeAgent(_ context.Context, state schema.MessageState) (schema.MessageState, error) {
	return state, nil
}

func (BaseMiddleware) AfterAgent(_ context.Context, state schema.MessageState) (schema.MessageState, error) {
	return state, nil
}

func (BaseMiddleware) WrapModelCall(ctx context.Context, req *llms.ChatRequest, next ModelCaller) (*llms.ChatResponse, error) {
	return next(ctx, req)
}

type agentConfig struct {
	name            string
	systemPrompt    string
	preModelHook    StateHook
	postModelHook   StateHook
	middleware      []Middleware
	responseFormat  *llms.ResponseFormat
	checkpointer    store.Checkpointer
	store           store.Store
	interruptBefore []string
	interruptAfter  []string
	maxSteps        int
	toolChoice      *schema.ToolChoice
	parallelTools   bool
	logger          log.Logger
	compileOptions  []graph.CompileOption
}

// AgentOption configures the prebuilt agents.
type AgentOption func(*agentConfig)

func WithSystemPrompt(prompt string) AgentOption {
	return func(c *agentConfig) {
		c.systemPrompt = prompt
	}
}

// WithPreModelHook runs hook before each model call. The state it returns
// is what the model sees and what the step records.
func WithPreModelHook(hook StateHook) AgentOption {
	return func(c *agentConfig) {
		c.preModelHook = hook
	}
}

// WithPostModelHook runs hook after the model's reply was appended.
func WithPostModelHook(hook StateHook) AgentOption {
	return func(c *agentConfig) {
		c.postModelHook = hook
	}
}

func WithMiddleware(mw ...Middleware) AgentOption {
	return func(c *agentConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithResponseFormat makes the final answer a JSON document matching
// jsonSchema. A reply without tool calls is followed by one more model call
// asking for the structured form, which replaces the reply.
func WithResponseFormat(name string, jsonSchema map[string]any) AgentOption {
	return func(c *agentConfig) {
		c.responseFormat = &llms.ResponseFormat{Name: name, Schema: jsonSchema}
	}
}

func WithCheckpointer(cp store.Checkpointer) AgentOption {
	return func(c *agentConfig) {
		c.checkpointer = cp
	}
}

func WithStore(s store.Store) AgentOption {
	return func(c *agentConfig) {
		c.store = s
	}
}

func WithInterruptBefore(nodes ...string) AgentOption {
	return func(c *agentConfig) {
		c.interruptBefore = append(c.interruptBefore, nodes...)
	}
}

func WithInterruptAfter(nodes ...string) AgentOption {
	return func(c *agentConfig) {
		c.interruptAfter = append(c.interruptAfter, nodes...)
	}
}

// WithMaxSteps limits the model calls of one turn, counted as AI messages
// after the last human message. The call past the limit fails with
// errs.KindMaxStepsExceeded.
func WithMaxSteps(n int) AgentOption {
	return func(c *agentConfig) {
		c.maxSteps = n
	}
}

func WithToolChoice(choice *schema.ToolChoice) AgentOption {
	return func(c *agentConfig) {
		c.toolChoice = choice
	}
}

// WithParallelToolCalls lets the tools node run concurrency-safe calls of
// one reply in parallel.
func WithParallelToolCalls(enabled bool) AgentOption {
	return func(c *agentConfig) {
		c.parallelTools = enabled
	}
}

func WithAgentLogger(l log.Logger) AgentOption {
	return func(c *agentConfig) {
		c.logger = l
	}
}

// WithAgentName names the compiled graph in traces and diagrams.
func WithAgentName(name string) AgentOption {
	return func(c *agentConfig) {
		c.name = name
	}
}

// WithCompileOptions passes extra options, such as tracer providers, to
// graph compilation.
func WithCompileOptions(opts ...graph.CompileOption) AgentOption {
	return func(c *agentConfig) {
		c.compileOptions = append(c.compileOptions, opts...)
	}
}

func newAgentConfig(defaultName string, opts []AgentOption) *agentConfig {
	c := &agentConfig{name: defaultName, logger: log.GetDefaultLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *agentConfig) compile(g *graph.StateGraph[schema.MessageState]) (*graph.StateRunnable[schema.MessageState], error) {
	if len(c.interruptBefore) > 0 {
		g.SetInterruptBefore(c.interruptBefore...)
	}
	if len(c.interruptAfter) > 0 {
		g.SetInterruptAfter(c.interruptAfter...)
	}
	opts := []graph.CompileOption{graph.WithName(c.name), graph.WithLogger(c.logger)}
	if c.checkpointer != nil {
		opts = append(opts, graph.WithCheckpointer(c.checkpointer))
	}
	if c.store != nil {
		opts = append(opts, graph.WithStore(c.store))
	}
	return g.Compile(append(opts, c.compileOptions...)...)
}

// CreateReactAgent builds the agent/tools loop over MessageState. The agent
// node calls model; when the reply carries tool calls the tools node runs
// them and control returns to the agent, otherwise the run ends.
func CreateReactAgent(model llms.ChatModel, tools []tool.Tool, opts ...AgentOption) (*graph.StateRunnable[schema.MessageState], error) {
	if model == nil {
		return nil, errs.New(errs.KindValidation, "model is required")
	}
	cfg := newAgentConfig("react_agent", opts)

	registry, err := tool.NewRegistry(tools...)
	if err != nil {
		return nil, err
	}
	registry.SetConcurrent(cfg.parallelTools)

	g := graph.NewStateGraph[schema.MessageState]()
	g.AddNode(AgentNode, "Calls the model with the conversation and tools", &modelNode{
		model: model,
		tools: registry.Definitions(),
		cfg:   cfg,
	})
	g.AddNode(ToolsNode, "Executes the tool calls of the last AI message",
		NewToolNodeFromRegistry(registry, WithToolNodeLogger(cfg.logger)))

	g.SetEntryPoint(AgentNode)
	g.AddConditionalEdgesWithPathMap(AgentNode, routeToolCalls, map[string]string{
		ToolsNode: ToolsNode,
		graph.END: graph.END,
	})
	g.AddEdge(ToolsNode, AgentNode)

	return cfg.compile(g)
}

// routeToolCalls sends an AI reply with tool calls to the tools node.
func routeToolCalls(_ context.Context, state schema.MessageState) string {
	if last, ok := state.Last(); ok && last.HasToolCalls() {
		return ToolsNode
	}
	return graph.END
}

// modelNode is one model step: hooks, middleware, the call and the
// optional structured follow-up.
type modelNode struct {
	// name is stamped on replies when set, so a shared tools node can tell
	// which agent asked.
	name  string
	model llms.ChatModel
	tools []schema.ToolDefinition
	cfg   *agentConfig
}

func (m *modelNode) Process(ctx context.Context, state schema.MessageState) (graph.NodeOutput[schema.MessageState], error) {
	var zero graph.NodeOutput[schema.MessageState]
	cfg := m.cfg

	if cfg.maxSteps > 0 && stepsThisTurn(state.Messages) >= cfg.maxSteps {
		return zero, errs.MaxStepsExceeded(cfg.maxSteps)
	}

	var err error
	for _, mw := range cfg.middleware {
		if state, err = mw.BeforeAgent(ctx, state); err != nil {
			return zero, err
		}
	}
	if cfg.preModelHook != nil {
		if state, err = cfg.preModelHook(ctx, state); err != nil {
			return zero, err
		}
	}

	msgs := state.Messages
	if cfg.systemPrompt != "" {
		msgs = append([]schema.Message{schema.SystemMessage(cfg.systemPrompt)}, msgs...)
	}
	req := &llms.ChatRequest{Messages: msgs, Tools: m.tools}
	if len(m.tools) > 0 {
		req.ToolChoice = cfg.toolChoice
	}

	call := m.caller()
	resp, err := call(ctx, req)
	if err != nil {
		return zero, err
	}
	answer := m.reply(resp)

	if !answer.HasToolCalls() && cfg.responseFormat != nil {
		if answer, err = m.structured(ctx, call, msgs, answer); err != nil {
			return zero, err
		}
	}
	state = state.Merge(schema.MessageState{Messages: []schema.Message{answer}})

	if cfg.postModelHook != nil {
		if state, err = cfg.postModelHook(ctx, state); err != nil {
			return zero, err
		}
	}
	for i := len(cfg.middleware) - 1; i >= 0; i-- {
		if state, err = cfg.middleware[i].AfterAgent(ctx, state); err != nil {
			return zero, err
		}
	}
	return graph.StateOutput(state), nil
}

func (m *modelNode) caller() ModelCaller {
	call := ModelCaller(m.model.Chat)
	for i := len(m.cfg.middleware) - 1; i >= 0; i-- {
		mw, next := m.cfg.middleware[i], call
		call = func(ctx context.Context, req *llms.ChatRequest) (*llms.ChatResponse, error) {
			return mw.WrapModelCall(ctx, req, next)
		}
	}
	return call
}

// reply normalizes the model's message: AI role, an id, usage and the
// agent name.
func (m *modelNode) reply(resp *llms.ChatResponse) schema.Message {
	msg := resp.Message
	msg.Role = schema.RoleAI
	if msg.ID == "" {
		msg.ID = "msg_" + uuid.NewString()
	}
	if msg.Usage == nil {
		msg.Usage = resp.Usage
	}
	if m.name != "" {
		msg.Name = m.name
	}
	return msg
}

func (m *modelNode) structured(ctx context.Context, call ModelCaller, msgs []schema.Message, answer schema.Message) (schema.Message, error) {
	rf := m.cfg.responseFormat
	schemaJSON, err := sonic.ConfigStd.Marshal(rf.Schema)
	if err != nil {
		return answer, errs.Newf(errs.KindValidation, "encode response format '%s': %w", rf.Name, err)
	}
	instruction := fmt.Sprintf(
		"Respond with a single JSON object named %s that conforms to this JSON schema. Do not add any other text.\n%s",
		rf.Name, schemaJSON)

	req := &llms.ChatRequest{
		Messages:       append(slices.Clone(msgs), answer, schema.SystemMessage(instruction)),
		ResponseFormat: rf,
	}
	resp, err := call(ctx, req)
	if err != nil {
		return answer, err
	}
	out := m.reply(resp)
	out.ID = answer.ID
	return out, nil
}

// stepsThisTurn counts AI messages after the last human message.
func stepsThisTurn(msgs []schema.Message) int {
	n := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		switch msgs[i].Role {
		case schema.RoleHuman:
			return n
		case schema.RoleAI:
			n++
		}
	}
	return n
}

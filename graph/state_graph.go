package graph

import (
	"context"
	"maps"
	"slices"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxIterations bounds the number of node executions per invocation.
const DefaultMaxIterations = 100

// StateGraph builds a graph over the state type S.
//
// Builder methods do not fail. Problems are recorded and reported by
// Compile, so a graph can be declared in any order:
//
//	type Counter struct{ N int }
//	func (c Counter) Merge(o Counter) Counter { c.N += o.N; return c }
//
//	g := graph.NewStateGraph[Counter]()
//	g.AddNodeFunc("inc", "increment", func(ctx context.Context, s Counter) (Counter, error) {
//		s.N++
//		return s, nil
//	})
//	g.AddEdge("inc", graph.END)
//	g.SetEntryPoint("inc")
//	runnable, err := g.Compile()
type StateGraph[S State[S]] struct {
	// nodes is a map of node names to their registrations
	nodes map[string]nodeSpec[S]

	// nodeOrder keeps declaration order for listings
	nodeOrder []string

	// edges is a slice of Edge objects representing the connections between nodes
	edges []Edge

	// conditionalEdges are consulted in insertion order
	conditionalEdges []ConditionalEdge[S]

	// entryPoint is the name of the entry point node in the graph
	entryPoint string

	interruptBefore []string
	interruptAfter  []string
	cachePolicies   map[string]CachePolicy
	deferred        map[string]bool

	// errs collects builder misuse until Compile
	errs []error
}

type nodeSpec[S any] struct {
	Name        string
	Description string
	Node        Node[S]
}

// NewStateGraph creates an empty graph.
func NewStateGraph[S State[S]]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:         make(map[string]nodeSpec[S]),
		cachePolicies: make(map[string]CachePolicy),
		deferred:      make(map[string]bool),
	}
}

// AddNode registers node under name.
func (g *StateGraph[S]) AddNode(name string, description string, node Node[S]) {
	switch {
	case name == "":
		g.errs = append(g.errs, errs.Graphf("node name cannot be empty"))
		return
	case isSentinel(name):
		g.errs = append(g.errs, errs.Graphf("node name '%s' is reserved", name))
		return
	case node == nil:
		g.errs = append(g.errs, errs.Graphf("node '%s' is nil", name))
		return
	}
	if _, ok := g.nodes[name]; ok {
		g.errs = append(g.errs, errs.Graphf("duplicate node '%s'", name))
		return
	}
	g.nodes[name] = nodeSpec[S]{Name: name, Description: description, Node: node}
	g.nodeOrder = append(g.nodeOrder, name)
}

// AddNodeFunc registers a function that returns a replacement state.
func (g *StateGraph[S]) AddNodeFunc(name string, description string, fn func(ctx context.Context, state S) (S, error)) {
	if fn == nil {
		g.AddNode(name, description, nil)
		return
	}
	g.AddNode(name, description, NodeFunc[S](func(ctx context.Context, state S) (NodeOutput[S], error) {
		next, err := fn(ctx, state)
		if err != nil {
			return NodeOutput[S]{}, err
		}
		return StateOutput(next), nil
	}))
}

// AddEdge adds a fixed edge. AddEdge(START, name) sets the entry point.
func (g *StateGraph[S]) AddEdge(from, to string) {
	if from == START {
		g.SetEntryPoint(to)
		return
	}
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// AddConditionalEdges routes from a node with router. The router's result
// is the next node; it is only checked when the graph runs.
func (g *StateGraph[S]) AddConditionalEdges(from string, router Router[S]) {
	g.addConditional(from, router, nil)
}

// AddConditionalEdgesWithPathMap routes from a node with router, whose
// result must be a key of pathMap. Targets are checked by Compile.
func (g *StateGraph[S]) AddConditionalEdgesWithPathMap(from string, router Router[S], pathMap map[string]string) {
	if pathMap == nil {
		pathMap = map[string]string{}
	}
	g.addConditional(from, router, maps.Clone(pathMap))
}

func (g *StateGraph[S]) addConditional(from string, router Router[S], pathMap map[string]string) {
	if router == nil {
		g.errs = append(g.errs, errs.Graphf("router for node '%s' is nil", from))
		return
	}
	g.conditionalEdges = append(g.conditionalEdges, ConditionalEdge[S]{From: from, Router: router, PathMap: pathMap})
}

// SetEntryPoint sets the entry point node name for the state graph.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetInterruptBefore pauses every run before the named nodes execute.
func (g *StateGraph[S]) SetInterruptBefore(names ...string) {
	g.interruptBefore = append(g.interruptBefore, names...)
}

// SetInterruptAfter pauses every run after the named nodes execute.
func (g *StateGraph[S]) SetInterruptAfter(names ...string) {
	g.interruptAfter = append(g.interruptAfter, names...)
}

// SetCachePolicy caches the outputs of the named node.
func (g *StateGraph[S]) SetCachePolicy(name string, policy CachePolicy) {
	g.cachePolicies[name] = policy
}

// SetDeferred marks a node as waiting for all of its incoming paths. The
// sequential engine records the flag; see StateRunnable.IncomingEdgeCount.
func (g *StateGraph[S]) SetDeferred(name string) {
	g.deferred[name] = true
}

// IncomingEdgeCount counts fixed edges and path-map targets that point at name.
func (g *StateGraph[S]) IncomingEdgeCount(name string) int {
	return incomingEdgeCount(g.edges, g.conditionalEdges, name)
}

func incomingEdgeCount[S any](edges []Edge, conditional []ConditionalEdge[S], name string) int {
	n := 0
	for _, e := range edges {
		if e.To == name {
			n++
		}
	}
	for _, ce := range conditional {
		for _, target := range ce.PathMap {
			if target == name {
				n++
			}
		}
	}
	return n
}

// CompileOption configures a compiled graph.
type CompileOption func(*compileOptions)

type compileOptions struct {
	checkpointer   store.Checkpointer
	store          store.Store
	logger         log.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	maxIterations  int
	name           string
}

// WithCheckpointer persists a checkpoint after every node of runs that carry
// a thread id.
func WithCheckpointer(cp store.Checkpointer) CompileOption {
	return func(o *compileOptions) { o.checkpointer = cp }
}

// WithStore exposes a key/value store to nodes through GetStore.
func WithStore(s store.Store) CompileOption {
	return func(o *compileOptions) { o.store = s }
}

// WithLogger sets the logger. The package default logger is used otherwise.
func WithLogger(l log.Logger) CompileOption {
	return func(o *compileOptions) { o.logger = l }
}

// WithTracerProvider sets the provider for run and node spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) CompileOption {
	return func(o *compileOptions) { o.tracerProvider = tp }
}

// WithMeterProvider sets the provider for node and checkpoint metrics. The
// global provider is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) CompileOption {
	return func(o *compileOptions) { o.meterProvider = mp }
}

// WithMaxIterations bounds the node executions of one invocation.
func WithMaxIterations(n int) CompileOption {
	return func(o *compileOptions) { o.maxIterations = n }
}

// WithName names the graph in traces, metrics and exports.
func WithName(name string) CompileOption {
	return func(o *compileOptions) { o.name = name }
}

// Compile validates the graph and freezes it into a StateRunnable. The
// builder can keep changing afterwards without affecting the result.
func (g *StateGraph[S]) Compile(opts ...CompileOption) (*StateRunnable[S], error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	o := compileOptions{maxIterations: DefaultMaxIterations, name: "graph"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxIterations <= 0 {
		return nil, errs.Graphf("max iterations must be positive, got %d", o.maxIterations)
	}
	if o.logger == nil {
		o.logger = log.GetDefaultLogger()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}

	return &StateRunnable[S]{
		name:             o.name,
		nodes:            maps.Clone(g.nodes),
		nodeOrder:        slices.Clone(g.nodeOrder),
		edges:            slices.Clone(g.edges),
		conditionalEdges: slices.Clone(g.conditionalEdges),
		entryPoint:       g.entryPoint,
		interruptBefore:  toSet(g.interruptBefore),
		interruptAfter:   toSet(g.interruptAfter),
		cachePolicies:    maps.Clone(g.cachePolicies),
		deferred:         maps.Clone(g.deferred),
		checkpointer:     o.checkpointer,
		store:            o.store,
		logger:           o.logger,
		maxIterations:    o.maxIterations,
		cache:            newNodeCache(),
		telemetry:        newTelemetry(o.tracerProvider, o.meterProvider, o.logger),
	}, nil
}

func (g *StateGraph[S]) validate() error {
	if len(g.errs) > 0 {
		return g.errs[0]
	}

	switch {
	case g.entryPoint == "":
		return errs.Graphf("entry point not set").WithCause(ErrEntryPointNotSet)
	case isSentinel(g.entryPoint):
		return errs.Graphf("entry point cannot be '%s'", g.entryPoint)
	case !g.declared(g.entryPoint):
		return g.notFound(g.entryPoint)
	}

	for _, e := range g.edges {
		if !g.declared(e.From) {
			return g.notFound(e.From)
		}
		if e.To != END && !g.declared(e.To) {
			return g.notFound(e.To)
		}
	}

	for _, ce := range g.conditionalEdges {
		if !g.declared(ce.From) {
			return g.notFound(ce.From)
		}
		for _, key := range sortedKeys(ce.PathMap) {
			if target := ce.PathMap[key]; target != END && !g.declared(target) {
				return g.notFound(target)
			}
		}
	}

	for _, set := range [][]string{g.interruptBefore, g.interruptAfter, sortedKeys(g.deferred), sortedKeys(g.cachePolicies)} {
		for _, name := range set {
			if !g.declared(name) {
				return g.notFound(name)
			}
		}
	}

	for name, policy := range g.cachePolicies {
		if policy.TTL <= 0 {
			return errs.Graphf("cache policy for node '%s' needs a positive ttl", name)
		}
	}
	return nil
}

func (g *StateGraph[S]) declared(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

func (g *StateGraph[S]) notFound(name string) error {
	return errs.Graphf("node '%s' not found", name).WithCause(ErrNodeNotFound)
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

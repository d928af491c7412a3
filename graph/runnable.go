package graph

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/store"
	"go.opentelemetry.io/otel/attribute"
)

// StateRunnable is a compiled graph. It is safe for concurrent use;
// concurrent runs on the same thread id are not.
type StateRunnable[S State[S]] struct {
	name             string
	nodes            map[string]nodeSpec[S]
	nodeOrder        []string
	edges            []Edge
	conditionalEdges []ConditionalEdge[S]
	entryPoint       string
	interruptBefore  map[string]bool
	interruptAfter   map[string]bool
	cachePolicies    map[string]CachePolicy
	deferred         map[string]bool

	checkpointer  store.Checkpointer
	store         store.Store
	logger        log.Logger
	maxIterations int

	cache     *nodeCache
	telemetry *telemetry
}

// Name returns the graph name set with WithName.
func (r *StateRunnable[S]) Name() string { return r.name }

// EntryPoint returns the first node of a fresh run.
func (r *StateRunnable[S]) EntryPoint() string { return r.entryPoint }

// Nodes returns node names in declaration order.
func (r *StateRunnable[S]) Nodes() []string { return slices.Clone(r.nodeOrder) }

// Checkpointer returns the configured checkpointer, or nil.
func (r *StateRunnable[S]) Checkpointer() store.Checkpointer { return r.checkpointer }

// IncomingEdgeCount counts fixed edges and path-map targets that point at name.
func (r *StateRunnable[S]) IncomingEdgeCount(name string) int {
	return incomingEdgeCount(r.edges, r.conditionalEdges, name)
}

// IsDeferred reports whether the node was marked with SetDeferred.
func (r *StateRunnable[S]) IsDeferred(name string) bool { return r.deferred[name] }

// ClearCache drops every cached node output.
func (r *StateRunnable[S]) ClearCache() { r.cache.clear() }

// Invoke runs the graph from input without a thread.
func (r *StateRunnable[S]) Invoke(ctx context.Context, input S) (GraphResult[S], error) {
	return r.InvokeWithConfig(ctx, input, nil)
}

// InvokeWithConfig runs the graph. With a checkpointer and a thread id the
// run resumes from the thread's latest checkpoint, in which case the stored
// state takes the place of input, and every transition is persisted.
func (r *StateRunnable[S]) InvokeWithConfig(ctx context.Context, input S, config *Config) (GraphResult[S], error) {
	out, err := r.run(ctx, input, config, nil)
	return out.result, err
}

// step is one executed node as a stream sees it.
type step[S any] struct {
	node   string
	before S
	after  S
	custom []any
}

// emitFunc receives each step; returning false stops the run.
type emitFunc[S any] func(step[S]) bool

var errStreamClosed = errors.New("stream closed by consumer")

type outcome[S any] struct {
	result GraphResult[S]
	// at is the node where an interrupt happened.
	at string
}

// execution carries the per-run bookkeeping.
type execution[S State[S]] struct {
	r    *StateRunnable[S]
	cfg  *Config
	cp   store.Checkpointer
	emit emitFunc[S]

	parentID string
	step     int
	// resumedBefore is a node whose interrupt-before was already honored by
	// the checkpoint this run resumes from.
	resumedBefore string
	// resumedSubgraph is a subgraph node paused inside its child run, and
	// subgraphThread the child thread holding that run.
	resumedSubgraph string
	subgraphThread  string
}

func (r *StateRunnable[S]) run(ctx context.Context, input S, config *Config, emit emitFunc[S]) (out outcome[S], err error) {
	if config == nil {
		config = &Config{}
	}
	ctx = WithConfig(ctx, config)
	if r.store != nil {
		ctx = withStore(ctx, r.store)
	}
	cp := r.checkpointer
	if config.checkpointer != nil {
		cp = config.checkpointer
	}
	if cp != nil {
		ctx = withCheckpointer(ctx, cp)
	}

	ctx, span := r.telemetry.startInvoke(ctx, r.name, config.ThreadID)
	defer func() {
		span.SetAttributes(attribute.Bool("interrupted", out.result.Interrupted))
		if errors.Is(err, errStreamClosed) {
			endSpan(span, nil)
			return
		}
		endSpan(span, err)
	}()

	ex := &execution[S]{r: r, cfg: config, cp: cp, emit: emit}
	state, current, err := ex.start(ctx, input)
	if err != nil {
		return out, err
	}

	maxIterations := r.maxIterations
	if config.MaxIterations > 0 {
		maxIterations = config.MaxIterations
	}

	for iterations := 0; current != END; iterations++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if iterations >= maxIterations {
			return out, errs.Graphf("max iterations (%d) exceeded — possible infinite loop", maxIterations)
		}

		if r.interruptBefore[current] && ex.resumedBefore != current {
			if err := ex.checkpoint(ctx, current, state, current, map[string]any{"interrupt": "before"}); err != nil {
				return out, err
			}
			return ex.interrupted(ctx, state, current, current, interruptReason("before", current)), nil
		}
		ex.resumedBefore = ""

		t, err := ex.advance(ctx, current, state)
		if err != nil {
			return out, err
		}
		state = t.state
		if t.interrupted {
			return ex.interrupted(ctx, state, current, t.next, t.value), nil
		}
		current = t.next
	}

	return outcome[S]{result: GraphResult[S]{State: state}}, nil
}

// start resolves the initial state and node, resuming from a checkpoint
// when the run is persistent.
func (ex *execution[S]) start(ctx context.Context, input S) (S, string, error) {
	r := ex.r
	if !ex.persistent() {
		return input, r.entryPoint, nil
	}

	latest, err := ex.cp.Get(ctx, ex.checkpointConfig())
	if err != nil {
		return input, "", errs.Graphf("checkpoint: %w", err)
	}
	if latest == nil {
		return input, r.entryPoint, nil
	}

	state, err := r.decodeState(latest.State)
	if err != nil {
		return input, "", err
	}
	ex.parentID = latest.ID
	ex.step = metadataStep(latest.Metadata)

	next := latest.NextNode
	switch {
	case next == "":
		next = r.entryPoint
	case next == END && ex.cfg.Restart:
		state = state.Merge(input)
		next = r.entryPoint
	case latest.Metadata["interrupt"] == "before":
		ex.resumedBefore = next
	case latest.Metadata["interrupt"] == "subgraph":
		ex.resumedBefore, ex.resumedSubgraph = next, next
		ex.subgraphThread, _ = latest.Metadata["subgraph_thread"].(string)
	}

	r.logger.Info("resuming thread %s at node %s", ex.cfg.ThreadID, next)
	return state, next, nil
}

type transition[S any] struct {
	state       S
	next        string
	interrupted bool
	value       any
}

// advance runs one node and persists the transition.
func (ex *execution[S]) advance(ctx context.Context, current string, state S) (transition[S], error) {
	r := ex.r
	var t transition[S]

	spec, ok := r.nodes[current]
	if !ok {
		return t, errs.Graphf("node '%s' not found", current).WithCause(ErrNodeNotFound)
	}

	nodeCtx := ctx
	if current == ex.resumedSubgraph {
		nodeCtx = withSubgraphResume(nodeCtx, ex.subgraphThread)
		ex.resumedSubgraph, ex.subgraphThread = "", ""
	}
	var (
		mu     sync.Mutex
		custom []any
	)
	if ex.emit != nil {
		nodeCtx = WithStreamWriter(ctx, StreamWriterFunc(func(v any) {
			mu.Lock()
			defer mu.Unlock()
			custom = append(custom, v)
		}))
	}

	r.logger.Debug("running node %s", current)
	before := state
	out, err := r.execute(nodeCtx, spec, state)
	if err != nil {
		return t, err
	}
	if err := ctx.Err(); err != nil {
		return t, err
	}

	var route *Route
	var interruptValue any
	if s, ok := out.State(); ok {
		state = s
	} else if cmd, ok := out.Command(); ok {
		if cmd.Update != nil {
			state = state.Merge(*cmd.Update)
		}
		route = cmd.Goto
		interruptValue = cmd.InterruptValue
	} else {
		return t, errs.Graphf("node '%s' returned an empty output", current)
	}

	// An explicit interrupt resumes through normal routing; its goto is
	// ignored. A paused child run resumes inside the same subgraph node.
	sub, fromSubgraph := interruptValue.(subgraphInterrupt)
	var next string
	switch {
	case fromSubgraph:
		next = current
	case interruptValue != nil:
		if next, err = r.findNext(ctx, current, state); err != nil {
			return t, err
		}
	case route != nil && route.IsMany():
		r.logger.Warn("node %s returned a fan-out of %d sends; fan-out is not supported, ending the run", current, len(route.Sends))
		next = END
	case route != nil:
		next = route.Node
	default:
		if next, err = r.findNext(ctx, current, state); err != nil {
			return t, err
		}
	}

	t = transition[S]{state: state, next: next}
	extra := map[string]any{}
	switch {
	case fromSubgraph:
		t.interrupted, t.value = true, sub.payload()
		extra["interrupt"] = "subgraph"
		extra["subgraph_thread"] = sub.thread
	case interruptValue != nil:
		t.interrupted, t.value = true, interruptValue
		extra["interrupt"] = "node"
	case route == nil && r.interruptAfter[current]:
		t.interrupted, t.value = true, interruptReason("after", current)
		extra["interrupt"] = "after"
	}

	if err := ex.checkpoint(ctx, current, state, next, extra); err != nil {
		return t, err
	}
	if ex.emit != nil {
		mu.Lock()
		st := step[S]{node: current, before: before, after: state, custom: slices.Clone(custom)}
		mu.Unlock()
		if !ex.emit(st) {
			return t, errStreamClosed
		}
	}

	r.logger.Debug("node %s -> %s", current, next)
	return t, nil
}

func (ex *execution[S]) interrupted(ctx context.Context, state S, at, next string, value any) outcome[S] {
	ex.r.logger.Info("run interrupted at node %s, next node %s", at, next)
	addSpanEvent(ctx, "interrupt",
		attribute.String("node.name", at),
		attribute.String("next.node", next),
	)
	return outcome[S]{
		result: GraphResult[S]{State: state, Interrupted: true, InterruptValue: value, NextNode: next},
		at:     at,
	}
}

func (ex *execution[S]) persistent() bool {
	return ex.cp != nil && ex.cfg.ThreadID != ""
}

func (ex *execution[S]) checkpointConfig() store.CheckpointConfig {
	return store.CheckpointConfig{ThreadID: ex.cfg.ThreadID}
}

// checkpoint writes state with next as the resume node. Metadata records the
// node that produced it and a step counter that continues across resumes.
func (ex *execution[S]) checkpoint(ctx context.Context, source string, state S, next string, extra map[string]any) error {
	if !ex.persistent() {
		return nil
	}
	r := ex.r

	data, err := r.encodeState(state)
	if err != nil {
		return err
	}

	metadata := map[string]any{"source": source, "step": ex.step + 1}
	maps.Copy(metadata, extra)
	cp := &store.Checkpoint{
		ID:        store.NewCheckpointID(),
		State:     data,
		NextNode:  next,
		ParentID:  ex.parentID,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := ex.cp.Put(ctx, ex.checkpointConfig(), cp); err != nil {
		return errs.Graphf("checkpoint: %w", err)
	}

	ex.step++
	ex.parentID = cp.ID
	r.telemetry.recordCheckpoint(ctx, r.name, source)
	return nil
}

// execute runs a node, consulting the cache when the node has a policy.
func (r *StateRunnable[S]) execute(ctx context.Context, spec nodeSpec[S], state S) (NodeOutput[S], error) {
	policy, ok := r.cachePolicies[spec.Name]
	if !ok {
		return r.process(ctx, spec, state)
	}

	fp, err := fingerprint(state)
	if err != nil {
		return NodeOutput[S]{}, errs.Graphf("serialize state: %w", err)
	}
	key := cacheKey{node: spec.Name, fingerprint: fp}

	if data, ok := r.cache.get(key, policy.TTL); ok {
		r.logger.Debug("cache hit for node %s", spec.Name)
		r.telemetry.recordCacheHit(ctx, r.name, spec.Name)
		return decodeOutput[S](data)
	}

	// Only the caller whose function runs sees ran; it keeps the output as
	// returned. Callers that shared the flight decode their own copy.
	var (
		computed NodeOutput[S]
		ran      bool
	)
	v, err, _ := r.cache.group.Do(key.String(), func() (any, error) {
		if data, ok := r.cache.get(key, policy.TTL); ok {
			r.telemetry.recordCacheHit(ctx, r.name, spec.Name)
			return data, nil
		}
		out, err := r.process(ctx, spec, state)
		if err != nil {
			return nil, err
		}
		data, err := sonic.Marshal(out)
		if err != nil {
			return nil, errs.Graphf("serialize state: %w", err)
		}
		r.cache.put(key, data)
		computed, ran = out, true
		return data, nil
	})
	if err != nil {
		return NodeOutput[S]{}, err
	}
	if ran {
		return computed, nil
	}
	return decodeOutput[S](v.([]byte))
}

func decodeOutput[S any](data []byte) (NodeOutput[S], error) {
	var out NodeOutput[S]
	if err := sonic.Unmarshal(data, &out); err != nil {
		return out, errs.Graphf("deserialize state: %w", err)
	}
	return out, nil
}

// process runs the node body inside a span. A panic becomes an error.
func (r *StateRunnable[S]) process(ctx context.Context, spec nodeSpec[S], state S) (out NodeOutput[S], err error) {
	ctx, span := r.telemetry.startNode(ctx, spec.Name)
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = errs.Graphf("panic in node '%s': %v", spec.Name, p)
		}
		r.telemetry.recordNode(ctx, r.name, spec.Name, time.Since(start), err)
		endSpan(span, err)
	}()
	return spec.Node.Process(ctx, state)
}

// findNext applies the routing rules: the first conditional edge from
// current decides, then the first fixed edge, then END.
func (r *StateRunnable[S]) findNext(ctx context.Context, current string, state S) (string, error) {
	for _, ce := range r.conditionalEdges {
		if ce.From != current {
			continue
		}
		key := ce.Router(ctx, state)
		if ce.PathMap == nil {
			return key, nil
		}
		target, ok := ce.PathMap[key]
		if !ok {
			return "", errs.Graphf("router returned unknown key '%s'", key)
		}
		return target, nil
	}
	for _, e := range r.edges {
		if e.From == current {
			return e.To, nil
		}
	}
	return END, nil
}

func (r *StateRunnable[S]) encodeState(state S) (json.RawMessage, error) {
	data, err := sonic.ConfigStd.Marshal(state)
	if err != nil {
		return nil, errs.Graphf("serialize state: %w", err)
	}
	return data, nil
}

func (r *StateRunnable[S]) decodeState(data json.RawMessage) (S, error) {
	var state S
	if err := sonic.ConfigStd.Unmarshal(data, &state); err != nil {
		return state, errs.Graphf("deserialize state: %w", err)
	}
	return state, nil
}

func metadataStep(md map[string]any) int {
	switch v := md["step"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

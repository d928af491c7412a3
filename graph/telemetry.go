package graph

import (
	"context"
	"time"

	"github.com/smallnest/agentgraph/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/smallnest/agentgraph/graph"

// telemetry holds the tracer and instruments of one compiled graph.
type telemetry struct {
	tracer trace.Tracer

	nodeExecutions   metric.Int64Counter
	nodeErrors       metric.Int64Counter
	nodeLatency      metric.Float64Histogram
	cacheHits        metric.Int64Counter
	checkpointWrites metric.Int64Counter
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider, logger log.Logger) *telemetry {
	t, err := newInstruments(mp)
	if err != nil {
		logger.Warn("metrics initialization failed, using no-op meter: %v", err)
		t, _ = newInstruments(noop.NewMeterProvider())
	}
	t.tracer = tp.Tracer(instrumentationName)
	return t
}

func newInstruments(mp metric.MeterProvider) (*telemetry, error) {
	meter := mp.Meter(instrumentationName)
	t := &telemetry{}
	var err error

	if t.nodeExecutions, err = meter.Int64Counter("agentgraph.node.executions",
		metric.WithDescription("Number of node executions"),
	); err != nil {
		return nil, err
	}
	if t.nodeErrors, err = meter.Int64Counter("agentgraph.node.errors",
		metric.WithDescription("Number of node execution errors"),
	); err != nil {
		return nil, err
	}
	if t.nodeLatency, err = meter.Float64Histogram("agentgraph.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if t.cacheHits, err = meter.Int64Counter("agentgraph.cache.hits",
		metric.WithDescription("Number of node outputs served from the cache"),
	); err != nil {
		return nil, err
	}
	if t.checkpointWrites, err = meter.Int64Counter("agentgraph.checkpoint.writes",
		metric.WithDescription("Number of checkpoints written"),
	); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *telemetry) startInvoke(ctx context.Context, graphName, threadID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "agentgraph.invoke",
		trace.WithAttributes(
			attribute.String("graph.name", graphName),
			attribute.String("thread.id", threadID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *telemetry) startNode(ctx context.Context, node string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "agentgraph.node."+node,
		trace.WithAttributes(attribute.String("node.name", node)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *telemetry) recordNode(ctx context.Context, graphName, node string, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("graph.name", graphName),
		attribute.String("node.name", node),
	)
	t.nodeExecutions.Add(ctx, 1, attrs)
	t.nodeLatency.Record(ctx, float64(d.Microseconds())/1000, attrs)
	if err != nil {
		t.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (t *telemetry) recordCacheHit(ctx context.Context, graphName, node string) {
	t.cacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("graph.name", graphName),
		attribute.String("node.name", node),
	))
}

func (t *telemetry) recordCheckpoint(ctx context.Context, graphName, node string) {
	t.checkpointWrites.Add(ctx, 1, metric.WithAttributes(
		attribute.String("graph.name", graphName),
		attribute.String("node.name", node),
	))
}

// endSpan completes a span, recording err when set.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func addSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

package agent

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/danielpatrickdp/path-memory/internal/planner"
)

// scopeName names both the meter and the tracer.
const scopeName = "github.com/danielpatrickdp/path-memory/internal/agent"

// #region instruments
// instruments holds the metric instruments of one agent. They are created
// once in New and reused every step.
type instruments struct {
	steps    metric.Int64Counter
	created  metric.Int64Counter
	pruned   metric.Int64Counter
	plans    metric.Int64Counter
	graphLen metric.Int64Histogram
}

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(scopeName)
	in := &instruments{}
	var err error

	in.steps, err = meter.Int64Counter("pathmem.steps",
		metric.WithDescription("Simulation steps executed"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create steps counter: %w", err)
	}
	in.created, err = meter.Int64Counter("pathmem.waypoints.created",
		metric.WithDescription("Waypoints allocated for newly visited cells"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create created counter: %w", err)
	}
	in.pruned, err = meter.Int64Counter("pathmem.waypoints.pruned",
		metric.WithDescription("Waypoints removed by hazard or decay pruning"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create pruned counter: %w", err)
	}
	in.plans, err = meter.Int64Counter("pathmem.plans",
		metric.WithDescription("Targets chosen, by source"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create plans counter: %w", err)
	}
	in.graphLen, err = meter.Int64Histogram("pathmem.graph.size",
		metric.WithDescription("Live waypoints after each step"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create graph size histogram: %w", err)
	}
	return in, nil
}

// #endregion instruments

// #region record
func (in *instruments) record(ctx context.Context, agentID string, r StepReport, graphLen int) {
	agent := attribute.String("agent.id", agentID)
	in.steps.Add(ctx, 1, metric.WithAttributes(agent))
	if r.Obs.Visit.Created {
		in.created.Add(ctx, 1, metric.WithAttributes(agent))
	}
	if n := r.Obs.Visit.Pruned; n > 0 {
		in.pruned.Add(ctx, int64(n), metric.WithAttributes(agent, attribute.String("reason", "hazard")))
	}
	if n := r.Obs.Decay.Pruned; n > 0 {
		in.pruned.Add(ctx, int64(n), metric.WithAttributes(agent, attribute.String("reason", "decay")))
	}
	in.graphLen.Record(ctx, int64(graphLen), metric.WithAttributes(agent))
}

func (in *instruments) recordPlan(ctx context.Context, agentID string, src planner.Source) {
	in.plans.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent.id", agentID),
		attribute.String("source", string(src)),
	))
}

// #endregion record

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/danielpatrickdp/path-memory/internal/logging"
	"github.com/danielpatrickdp/path-memory/internal/planner"
	"github.com/danielpatrickdp/path-memory/internal/state"
	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/waypoint"
)

// #region interfaces
// World is the ground truth the agent moves through.
type World interface {
	terrain.Oracle
	Bounds() terrain.Bounds
}

// Recorder receives journal events. *logging.Journal satisfies it.
type Recorder interface {
	Record(e logging.Event) error
}

// Committer persists memory snapshots. *state.Store satisfies it.
type Committer interface {
	Commit(agentID string, step int64, snap waypoint.Snapshot, metricsJSON string) (state.Version, error)
}

// #endregion interfaces

// #region agent
// Agent is a simulated body with drives and a path memory, stepping through
// a World one cell at a time.
type Agent struct {
	id      string
	world   World
	cfg     Config
	mem     *Memory
	pos     terrain.Position
	moved   bool
	drives  Drives
	step    int64
	visited map[terrain.Position]struct{}

	rng     *rand.Rand
	noise   float64
	logger  *slog.Logger
	journal Recorder
	mp      metric.MeterProvider
	metrics *instruments
	tp      trace.TracerProvider
	tracer  trace.Tracer
}

// Option configures an Agent.
type Option func(*Agent)

// WithRand sets the random source used for movement, sampling and sensor noise.
func WithRand(rng *rand.Rand) Option { return func(a *Agent) { a.rng = rng } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(a *Agent) { a.logger = l } }

// WithJournal records memory events to r.
func WithJournal(r Recorder) Option { return func(a *Agent) { a.journal = r } }

// WithMeterProvider sets the OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option { return func(a *Agent) { a.mp = mp } }

// WithTracerProvider sets the OpenTelemetry tracer provider. Each step and
// checkpoint becomes a span.
func WithTracerProvider(tp trace.TracerProvider) Option { return func(a *Agent) { a.tp = tp } }

// WithSensorNoise makes the sensors misreport the ground with probability p.
func WithSensorNoise(p float64) Option { return func(a *Agent) { a.noise = p } }

// WithDrives overrides the starting drive levels.
func WithDrives(d Drives) Option { return func(a *Agent) { a.drives = d } }

// New returns an agent standing at start with an empty memory. An empty id
// is replaced by a fresh UUID.
func New(id string, w World, start terrain.Position, cfg Config, opts ...Option) (*Agent, error) {
	return build(id, w, start, cfg, nil, opts)
}

// Restore returns an agent whose memory is rebuilt from snap. The agent is
// placed on the last visited waypoint, or at start if there is none.
func Restore(id string, w World, start terrain.Position, cfg Config, snap waypoint.Snapshot, opts ...Option) (*Agent, error) {
	return build(id, w, start, cfg, &snap, opts)
}

func build(id string, w World, start terrain.Position, cfg Config, snap *waypoint.Snapshot, opts []Option) (*Agent, error) {
	if w == nil {
		return nil, errors.New("agent: nil world")
	}
	if err := cfg.Graph.Classification.Validate(); err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	if id == "" {
		id = uuid.New().String()
	}
	a := &Agent{
		id:      id,
		world:   w,
		cfg:     cfg,
		pos:     start,
		drives:  DefaultDrives(),
		visited: map[terrain.Position]struct{}{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if a.mp == nil {
		a.mp = noop.NewMeterProvider()
	}
	in, err := newInstruments(a.mp)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	a.metrics = in
	if a.tp == nil {
		a.tp = tracenoop.NewTracerProvider()
	}
	a.tracer = a.tp.Tracer(scopeName)

	if snap == nil {
		a.mem = NewMemory(cfg, w, w.Bounds(), a.rng)
	} else {
		a.mem, err = RestoreMemory(cfg, w, w.Bounds(), *snap, a.rng)
		if err != nil {
			return nil, fmt.Errorf("agent: restore memory: %w", err)
		}
		if last := a.mem.Graph().LastVisited(); last != waypoint.None {
			a.pos = a.mem.Graph().Get(last).Pos
		}
		for _, wp := range snap.Waypoints {
			a.visited[terrain.Pt(wp.X, wp.Y)] = struct{}{}
		}
	}
	a.visited[a.pos] = struct{}{}
	a.logger.Info("agent ready", "agent", a.id, "x", a.pos.X, "y", a.pos.Y, "waypoints", a.mem.Graph().Len())
	return a, nil
}

// #endregion agent

// #region step
// Step advances the agent by one simulation step: move toward the target,
// sense the ground, update drives, record the frame in memory, apply decay,
// check arrival and plan the next target.
func (a *Agent) Step(ctx context.Context) StepReport {
	ctx, span := a.tracer.Start(ctx, "agent.step")
	defer span.End()

	a.move()
	ground := a.world.GroundAt(a.pos)
	_, seen := a.visited[a.pos]
	a.visited[a.pos] = struct{}{}
	a.drives.Update(ground, a.moved, !seen)

	a.step++
	r := StepReport{Step: a.step, Pos: a.pos, Moved: a.moved, Ground: ground, Perceived: a.sense(ground)}
	r.Obs = a.mem.Observe(Frame{Pos: a.pos, Perceived: r.Perceived, Moved: a.moved})
	a.journalObservation(r)

	r.Arrived = a.mem.Planner().Arrive(a.pos)
	if r.Arrived {
		a.record(logging.Event{Kind: logging.EventArrive, X: a.pos.X, Y: a.pos.Y})
	}

	r.Goal = a.drives.Goal()
	r.Target, r.Held = a.plan(ctx, r.Goal)
	a.metrics.record(ctx, a.id, r, a.mem.Graph().Len())

	span.SetAttributes(
		attribute.String("agent.id", a.id),
		attribute.Int64("step", r.Step),
		attribute.Int("x", r.Pos.X),
		attribute.Int("y", r.Pos.Y),
		attribute.Bool("moved", r.Moved),
		attribute.Bool("anchored", r.Obs.Visit.Anchored),
		attribute.Int("pruned", r.Obs.Visit.Pruned+r.Obs.Decay.Pruned),
		attribute.String("goal", string(r.Goal)),
		attribute.String("target.source", string(r.Target.Source)),
	)
	if r.Held {
		span.AddEvent("holding position")
	}
	return r
}

// Run executes n steps, stopping early when ctx is cancelled. It returns the
// number of steps executed.
func (a *Agent) Run(ctx context.Context, n int) (int, error) {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		a.Step(ctx)
	}
	return n, nil
}

func (a *Agent) move() {
	t := a.mem.Planner().Target()
	var next terrain.Position
	if t.Valid {
		next = a.pos.Step(t.Pos)
	} else {
		next = terrain.Pt(a.pos.X+a.rng.IntN(3)-1, a.pos.Y+a.rng.IntN(3)-1)
	}
	if next == a.pos || !a.world.Bounds().Contains(next) ||
		a.cfg.Graph.Classification.IsImpassable(a.world.GroundAt(next)) {
		a.moved = false
		return
	}
	a.pos = next
	a.moved = true
}

func (a *Agent) sense(ground terrain.Label) terrain.Label {
	if a.noise <= 0 || a.rng.Float64() >= a.noise {
		return ground
	}
	cls := a.cfg.Graph.Classification
	if n := len(cls.Anchorable); n > 0 {
		return cls.Anchorable[a.rng.IntN(n)]
	}
	return terrain.LabelNone
}

// plan picks the target for the next step. A blocked agent always gets a
// fresh exploration target; a known path to the goal is followed; otherwise
// an existing target is kept so exploration stays on course.
func (a *Agent) plan(ctx context.Context, goal terrain.Label) (planner.Target, bool) {
	p := a.mem.Planner()
	prev := p.Target()

	var (
		t   planner.Target
		err error
	)
	switch {
	case !a.moved:
		t, err = a.mem.Plan(terrain.LabelNone, a.pos)
	case goal != terrain.LabelNone && a.mem.KnowsPathTo(goal):
		t, err = a.mem.Plan(goal, a.pos)
	case prev.Valid:
		return prev, false
	default:
		t, err = a.mem.Plan(goal, a.pos)
	}

	a.metrics.recordPlan(ctx, a.id, t.Source)
	if errors.Is(err, planner.ErrNoValidTarget) {
		a.logger.Warn("no valid target, holding position", "agent", a.id, "step", a.step, "x", a.pos.X, "y", a.pos.Y)
		a.record(logging.Event{Kind: logging.EventNoTarget, X: a.pos.X, Y: a.pos.Y})
		return t, true
	}
	if t.Pos != prev.Pos || t.Valid != prev.Valid {
		a.logger.Debug("new target", "agent", a.id, "step", a.step, "goal", goal, "source", t.Source, "x", t.Pos.X, "y", t.Pos.Y)
		a.record(logging.Event{Kind: logging.EventPlan, X: t.Pos.X, Y: t.Pos.Y, Label: string(t.Source), Detail: string(goal)})
	}
	return t, false
}

// #endregion step

// #region journal
func (a *Agent) journalObservation(r StepReport) {
	v := r.Obs.Visit
	if v.Anchored {
		a.logger.Info("waypoint anchored", "agent", a.id, "step", a.step, "label", v.Label, "x", r.Pos.X, "y", r.Pos.Y)
		a.record(logging.Event{Kind: logging.EventAnchor, X: r.Pos.X, Y: r.Pos.Y, Label: string(v.Label), Count: 1})
	}
	if v.Pruned > 0 {
		a.logger.Info("hazard path pruned", "agent", a.id, "step", a.step, "label", v.Label, "pruned", v.Pruned)
		a.record(logging.Event{Kind: logging.EventHazardPrune, X: r.Pos.X, Y: r.Pos.Y, Label: string(v.Label), Count: v.Pruned})
	}
	if d := r.Obs.Decay; d.Pruned > 0 {
		a.logger.Info("path forgotten", "agent", a.id, "step", a.step, "pruned", d.Pruned, "edges", d.Edges)
		a.record(logging.Event{Kind: logging.EventDecayPrune, X: r.Pos.X, Y: r.Pos.Y, Count: d.Pruned})
	}
}

func (a *Agent) record(e logging.Event) {
	if a.journal == nil {
		return
	}
	e.AgentID = a.id
	e.Step = a.step
	if err := a.journal.Record(e); err != nil {
		a.logger.Error("journal write failed", "agent", a.id, "kind", e.Kind, "error", err)
	}
}

// #endregion journal

// #region checkpoint
type checkpointMetrics struct {
	Step      int64            `json:"step"`
	Pos       terrain.Position `json:"pos"`
	Drives    Drives           `json:"drives"`
	Waypoints int              `json:"waypoints"`
}

// Checkpoint commits the current memory to c and journals the new version.
func (a *Agent) Checkpoint(ctx context.Context, c Committer) (state.Version, error) {
	_, span := a.tracer.Start(ctx, "agent.checkpoint")
	defer span.End()
	span.SetAttributes(attribute.String("agent.id", a.id), attribute.Int64("step", a.step))

	m, err := json.Marshal(checkpointMetrics{Step: a.step, Pos: a.pos, Drives: a.drives, Waypoints: a.mem.Graph().Len()})
	if err != nil {
		return state.Version{}, fmt.Errorf("marshal checkpoint metrics: %w", err)
	}
	v, err := c.Commit(a.id, a.step, a.mem.Graph().Snapshot(), string(m))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return state.Version{}, fmt.Errorf("checkpoint: %w", err)
	}
	span.SetAttributes(attribute.String("version.id", v.VersionID))
	span.SetStatus(codes.Ok, "")
	a.logger.Info("memory committed", "agent", a.id, "step", a.step, "version", v.VersionID)
	a.record(logging.Event{Kind: logging.EventSnapshot, X: a.pos.X, Y: a.pos.Y, Count: a.mem.Graph().Len(), Detail: v.VersionID})
	return v, nil
}

// #endregion checkpoint

// #region accessors
// ID returns the agent id.
func (a *Agent) ID() string { return a.id }

// Position returns where the agent stands.
func (a *Agent) Position() terrain.Position { return a.pos }

// Drives returns the current drive levels.
func (a *Agent) Drives() Drives { return a.drives }

// Steps returns the number of steps taken.
func (a *Agent) Steps() int64 { return a.step }

// Memory exposes the path memory.
func (a *Agent) Memory() *Memory { return a.mem }

// #endregion accessors

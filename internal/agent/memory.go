package agent

import (
	"math/rand/v2"

	"github.com/danielpatrickdp/path-memory/internal/decay"
	"github.com/danielpatrickdp/path-memory/internal/planner"
	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/waypoint"
)

// #region memory
// Memory bundles the waypoint graph with its decay scheduler and planner:
// the whole path memory of one agent.
type Memory struct {
	graph   *waypoint.Graph
	sched   *decay.Scheduler
	planner *planner.Planner
}

// NewMemory returns an empty path memory.
func NewMemory(cfg Config, oracle terrain.Oracle, bounds terrain.Bounds, rng *rand.Rand) *Memory {
	return wrap(waypoint.New(cfg.Graph, oracle), cfg, oracle, bounds, rng)
}

// RestoreMemory rebuilds a path memory from a stored snapshot.
func RestoreMemory(cfg Config, oracle terrain.Oracle, bounds terrain.Bounds, snap waypoint.Snapshot, rng *rand.Rand) (*Memory, error) {
	g, err := waypoint.Restore(cfg.Graph, oracle, snap)
	if err != nil {
		return nil, err
	}
	return wrap(g, cfg, oracle, bounds, rng), nil
}

func wrap(g *waypoint.Graph, cfg Config, oracle terrain.Oracle, bounds terrain.Bounds, rng *rand.Rand) *Memory {
	return &Memory{
		graph:   g,
		sched:   decay.New(g, cfg.Decay),
		planner: planner.New(g, oracle, bounds, cfg.Planner, rng),
	}
}

// #endregion memory

// #region observe
// Observation is what one frame did to the memory.
type Observation struct {
	Visit waypoint.VisitResult
	Decay decay.Result
}

// Observe records the frame and then runs one decay tick.
func (m *Memory) Observe(f Frame) Observation {
	var obs Observation
	obs.Visit = m.graph.RecordVisit(f.Pos, f.Perceived, f.Moved)
	obs.Decay = m.sched.Tick()
	return obs
}

// Plan asks the planner for a target toward goal.
func (m *Memory) Plan(goal terrain.Label, pos terrain.Position) (planner.Target, error) {
	return m.planner.Plan(goal, pos)
}

// KnowsPathTo reports whether any waypoint is anchored to goal.
func (m *Memory) KnowsPathTo(goal terrain.Label) bool {
	return len(m.graph.Members(goal)) > 0
}

// Graph exposes the waypoint graph.
func (m *Memory) Graph() *waypoint.Graph { return m.graph }

// Planner exposes the planner.
func (m *Memory) Planner() *planner.Planner { return m.planner }

// #endregion observe

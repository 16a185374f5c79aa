package planner

import (
	"fmt"
	"math/rand/v2"

	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/waypoint"
)

// #region planner-struct
// Planner turns the path memory into a next target for the agent. It keeps
// the agent's current target between calls.
type Planner struct {
	graph  *waypoint.Graph
	oracle terrain.Oracle
	bounds terrain.Bounds
	cfg    Config
	rng    *rand.Rand
	target Target
}

// New returns a Planner over g. A nil rng is replaced by a randomly seeded one.
func New(g *waypoint.Graph, oracle terrain.Oracle, bounds terrain.Bounds, cfg Config, rng *rand.Rand) *Planner {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Planner{graph: g, oracle: oracle, bounds: bounds, cfg: cfg, rng: rng}
}

// #endregion planner-struct

// #region leads-to-goal
// LeadsToGoal reports whether walking forward from id reaches a waypoint
// anchored to label before the chain ends.
func (p *Planner) LeadsToGoal(id waypoint.ID, label terrain.Label) bool {
	if label == terrain.LabelNone {
		return false
	}
	limit := p.graph.Len()
	steps := 0
	for cur := id; cur != waypoint.None; cur = p.graph.Next(cur) {
		if p.graph.Get(cur).Anchor == label {
			return true
		}
		steps++
		if steps > limit {
			panic(fmt.Sprintf("planner: chain from %d does not terminate", id))
		}
	}
	return false
}

// #endregion leads-to-goal

// #region nearest
// NearestWaypointToward walks backward from every waypoint anchored to label
// and returns the one closest to pos. If the agent already stands on a path
// waypoint (distance < 1) its forward neighbour is returned at once, so the
// agent continues along that path. Ties keep the first waypoint seen.
func (p *Planner) NearestWaypointToward(label terrain.Label, pos terrain.Position) (waypoint.ID, bool) {
	best := waypoint.None
	bestDist := 0.0
	limit := p.graph.Len()

	for _, m := range p.graph.Members(label) {
		steps := 0
		for cur := m; cur != waypoint.None; cur = p.graph.Prev(cur) {
			d := pos.Distance(p.graph.Get(cur).Pos)
			if d < 1 {
				if next := p.graph.Next(cur); next != waypoint.None {
					return next, true
				}
			}
			if best == waypoint.None || d < bestDist {
				best, bestDist = cur, d
			}
			steps++
			if steps > limit {
				panic(fmt.Sprintf("planner: chain behind %d does not terminate", m))
			}
		}
	}
	return best, best != waypoint.None
}

// #endregion nearest

// #region plan
// Plan picks the target for goal from pos. An existing target that already
// leads to goal is kept; otherwise the nearest remembered path waypoint is
// used; otherwise a random passable cell is sampled. When sampling is
// exhausted the target is cleared and ErrNoValidTarget returned.
func (p *Planner) Plan(goal terrain.Label, pos terrain.Position) (Target, error) {
	if goal != terrain.LabelNone && p.graph.HasAnchor(goal) && p.target.Valid {
		if id, ok := p.graph.Lookup(p.target.Pos); ok && p.LeadsToGoal(id, goal) {
			p.target.Source = SourceKept
			return p.target, nil
		}
	}

	if goal != terrain.LabelNone {
		if id, ok := p.NearestWaypointToward(goal, pos); ok {
			p.target = Target{Pos: p.graph.Get(id).Pos, Valid: true, Source: SourcePath}
			return p.target, nil
		}
	}

	return p.sample(pos)
}

func (p *Planner) sample(pos terrain.Position) (Target, error) {
	cls := p.graph.Config().Classification
	if p.bounds.Width > 0 && p.bounds.Height > 0 {
		for i := 0; i < p.cfg.MaxSampleAttempts; i++ {
			c := terrain.Pt(p.rng.IntN(p.bounds.Width), p.rng.IntN(p.bounds.Height))
			if !cls.IsImpassable(p.oracle.GroundAt(c)) {
				p.target = Target{Pos: c, Valid: true, Source: SourceRandom}
				return p.target, nil
			}
		}
	}
	p.target = NoTarget
	return Target{Pos: pos, Source: SourceHolding}, ErrNoValidTarget
}

// #endregion plan

// #region target
// Target returns the current target.
func (p *Planner) Target() Target { return p.target }

// SetTarget overrides the current target.
func (p *Planner) SetTarget(t Target) { p.target = t }

// Arrive clears the target when pos equals it, so a new plan is requested
// next cycle. It reports whether the target was reached.
func (p *Planner) Arrive(pos terrain.Position) bool {
	if p.target.Valid && p.target.Pos == pos {
		p.target = NoTarget
		return true
	}
	return false
}

// #endregion target

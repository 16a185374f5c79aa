package decay

import (
	"fmt"

	"github.com/danielpatrickdp/path-memory/internal/waypoint"
)

// deadWeight absorbs float error so WMax decayed ceil(WMax/d) times is pruned.
const deadWeight = 1e-9

// #region types
// Config holds the per-tick decay amount.
type Config struct {
	Decay float64 // subtracted from every chain edge on the active path per tick
}

// DefaultConfig returns the forgetting rate of the island agent.
func DefaultConfig() Config {
	return Config{Decay: 0.01}
}

// Result reports what one tick did.
type Result struct {
	Edges  int // chain edges weakened
	Pruned int // waypoints removed because an edge reached zero
}

// Scheduler weakens the active path once per simulation step.
type Scheduler struct {
	graph *waypoint.Graph
	cfg   Config
}

// #endregion types

// #region constructor
// New returns a Scheduler operating on g.
func New(g *waypoint.Graph, cfg Config) *Scheduler {
	return &Scheduler{graph: g, cfg: cfg}
}

// #endregion constructor

// #region tick
// Tick decays the chain behind the last visited waypoint by the configured amount.
func (s *Scheduler) Tick() Result {
	return s.TickFrom(s.graph.LastVisited(), s.cfg.Decay)
}

// TickFrom walks the chain backward from root, subtracting d from each edge
// exactly once. The source of the dead edge nearest root is pruned together
// with everything behind it.
func (s *Scheduler) TickFrom(root waypoint.ID, d float64) Result {
	if root == waypoint.None {
		return Result{}
	}

	var sources []waypoint.ID
	limit := s.graph.Len()
	for cur := s.graph.Prev(root); cur != waypoint.None; cur = s.graph.Prev(cur) {
		if len(sources) >= limit {
			panic(fmt.Sprintf("decay: chain behind %d does not terminate", root))
		}
		sources = append(sources, cur)
	}

	res := Result{Edges: len(sources)}
	dead := waypoint.None
	for _, src := range sources {
		if s.graph.Weaken(src, d) <= deadWeight && dead == waypoint.None {
			dead = src
		}
	}
	if dead != waypoint.None {
		res.Pruned = s.graph.PruneChainBackward(dead, true)
	}
	return res
}

// #endregion tick

package waypoint

import (
	"fmt"

	"github.com/danielpatrickdp/path-memory/internal/terrain"
)

// #region check
// CheckInvariants verifies the structural invariants of the graph: chain
// edges are mutually consistent simple paths, weights lie in [0, WMax], and
// anchor membership agrees with the waypoints' anchor fields.
func (g *Graph) CheckInvariants() error {
	live := 0
	for i := range g.nodes {
		n := &g.nodes[i]
		if !n.alive {
			continue
		}
		live++
		id := ID(i + 1)

		if got, ok := g.byCell[n.pos]; !ok || got != id {
			return fmt.Errorf("waypoint %d: cell %v not indexed", id, n.pos)
		}
		if n.next != None {
			if !g.Exists(n.next) {
				return fmt.Errorf("waypoint %d: chain edge to removed waypoint %d", id, n.next)
			}
			if g.nodes[n.next-1].prev != id {
				return fmt.Errorf("waypoint %d: successor %d does not point back", id, n.next)
			}
			if n.weight < 0 || n.weight > g.cfg.WMax {
				return fmt.Errorf("waypoint %d: weight %.4f outside [0, %.4f]", id, n.weight, g.cfg.WMax)
			}
		} else if n.weight != 0 {
			return fmt.Errorf("waypoint %d: weight %.4f without chain edge", id, n.weight)
		}
		if n.prev != None {
			if !g.Exists(n.prev) {
				return fmt.Errorf("waypoint %d: chain edge from removed waypoint %d", id, n.prev)
			}
			if g.nodes[n.prev-1].next != id {
				return fmt.Errorf("waypoint %d: predecessor %d does not point forward", id, n.prev)
			}
		}
		if n.anchor != terrain.LabelNone {
			a, ok := g.anchors[n.anchor]
			if !ok || countOf(a.members, id) != 1 {
				return fmt.Errorf("waypoint %d: not a member of anchor %q", id, n.anchor)
			}
		}
	}
	if live != g.live {
		return fmt.Errorf("live count %d, counted %d", g.live, live)
	}
	if len(g.byCell) != live {
		return fmt.Errorf("cell index holds %d entries for %d waypoints", len(g.byCell), live)
	}
	if g.last != None && !g.Exists(g.last) {
		return fmt.Errorf("last visited %d was removed", g.last)
	}

	for label, a := range g.anchors {
		for _, m := range a.members {
			if !g.Exists(m) {
				return fmt.Errorf("anchor %q: member %d was removed", label, m)
			}
			if g.nodes[m-1].anchor != label {
				return fmt.Errorf("anchor %q: member %d anchored to %q", label, m, g.nodes[m-1].anchor)
			}
		}
	}

	// Acyclic: a forward walk from any waypoint ends within live steps.
	for i := range g.nodes {
		if !g.nodes[i].alive || g.nodes[i].prev != None {
			continue
		}
		steps := 0
		for cur := ID(i + 1); cur != None; cur = g.nodes[cur-1].next {
			steps++
			if steps > live {
				return fmt.Errorf("chain from %d does not terminate", i+1)
			}
		}
	}
	for i := range g.nodes {
		if g.nodes[i].alive && g.nodes[i].prev != None && g.rootless(ID(i+1), live) {
			return fmt.Errorf("waypoint %d lies on a chain cycle", i+1)
		}
	}
	return nil
}

// rootless reports whether walking back from id never reaches a chain head.
func (g *Graph) rootless(id ID, limit int) bool {
	cur := id
	for steps := 0; steps <= limit; steps++ {
		p := g.nodes[cur-1].prev
		if p == None {
			return false
		}
		cur = p
	}
	return true
}

func countOf(ids []ID, id ID) int {
	c := 0
	for _, x := range ids {
		if x == id {
			c++
		}
	}
	return c
}

// #endregion check

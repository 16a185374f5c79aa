package waypoint

import "fmt"

// #region prune
// PruneChainBackward removes every waypoint feeding into id along the chain,
// and id itself when includeSelf is set. Anchor memberships of removed
// waypoints are detached; anchors themselves are kept. Returns the number of
// waypoints removed.
func (g *Graph) PruneChainBackward(id ID, includeSelf bool) int {
	doomed := g.chainBehind(id)
	if includeSelf {
		doomed = append(doomed, id)
	}
	// Nearest predecessor first, so each removal only touches live neighbours.
	for _, d := range doomed {
		g.remove(d)
	}
	return len(doomed)
}

// chainBehind collects the predecessors of id, nearest first.
func (g *Graph) chainBehind(id ID) []ID {
	var stack []ID
	seen := map[ID]bool{id: true}
	for cur := g.mustGet(id).prev; cur != None; cur = g.mustGet(cur).prev {
		if seen[cur] {
			panic(fmt.Sprintf("waypoint: chain cycle through %d", cur))
		}
		seen[cur] = true
		stack = append(stack, cur)
	}
	return stack
}

func (g *Graph) remove(id ID) {
	n := g.mustGet(id)
	if n.prev != None {
		p := g.mustGet(n.prev)
		p.next = None
		p.weight = 0
		n.prev = None
	}
	if n.next != None {
		g.mustGet(n.next).prev = None
		n.next = None
		n.weight = 0
	}
	g.detachAnchor(id)
	delete(g.byCell, n.pos)
	if g.last == id {
		g.last = None
	}
	n.alive = false
	g.live--
}

// #endregion prune

package waypoint

import (
	"fmt"
	"slices"

	"github.com/danielpatrickdp/path-memory/internal/terrain"
)

// #region types
type node struct {
	alive   bool
	pos     terrain.Position
	next    ID
	prev    ID
	weight  float64
	anchor  terrain.Label
	pending bool
}

type anchor struct {
	label   terrain.Label
	members []ID
}

// Graph is the topological path memory of one agent. It owns every waypoint
// in an indexed arena; chain edges are stored as id pairs on the nodes.
// A Graph is not safe for concurrent use.
type Graph struct {
	cfg    Config
	oracle terrain.Oracle

	nodes   []node // nodes[id-1]
	byCell  map[terrain.Position]ID
	anchors map[terrain.Label]*anchor
	order   []terrain.Label // anchor creation order
	last    ID
	live    int
}

// #endregion types

// #region constructor
// New returns an empty graph. oracle is consulted to confirm perceived terrain.
func New(cfg Config, oracle terrain.Oracle) *Graph {
	if oracle == nil {
		panic("waypoint: nil terrain oracle")
	}
	return &Graph{
		cfg:     cfg,
		oracle:  oracle,
		byCell:  make(map[terrain.Position]ID),
		anchors: make(map[terrain.Label]*anchor),
	}
}

// Config returns the configuration the graph was built with.
func (g *Graph) Config() Config { return g.cfg }

// #endregion constructor

// #region record-visit
// RecordVisit extends the path memory with the cell the agent now occupies.
// It does nothing when moved is false.
func (g *Graph) RecordVisit(pos terrain.Position, perceived terrain.Label, moved bool) VisitResult {
	if !moved {
		return VisitResult{}
	}

	id, created := g.lookupOrCreate(pos)
	res := VisitResult{ID: id, Created: created}

	// A revisit is a lookup: only a fresh waypoint is appended to the chain,
	// which keeps in-degree at one and rules out cycles.
	if g.last != None && g.last != id && created {
		g.link(g.last, id)
		res.Linked = true
	}
	g.last = id

	cls := g.cfg.Classification
	if !cls.IsAnchorable(perceived) || g.oracle.GroundAt(pos) != perceived {
		return res
	}
	res.Label = perceived

	n := g.mustGet(id)
	if n.anchor == terrain.LabelNone && len(g.WaypointsNear(perceived, pos, g.cfg.AnchorRadius)) == 0 {
		g.attach(id, perceived)
		res.Anchored = true
	}

	if cls.IsHazardous(perceived) {
		res.Pruned = g.PruneChainBackward(id, false)
	}
	return res
}

func (g *Graph) lookupOrCreate(pos terrain.Position) (ID, bool) {
	if id, ok := g.byCell[pos]; ok {
		return id, false
	}
	g.nodes = append(g.nodes, node{alive: true, pos: pos, pending: true})
	id := ID(len(g.nodes))
	g.byCell[pos] = id
	g.live++
	return id, true
}

// #endregion record-visit

// #region edges
// link attaches from -> to at WMax. A successor from is already holding
// (it was re-entered by a revisit) is detached first.
func (g *Graph) link(from, to ID) {
	f := g.mustGet(from)
	t := g.mustGet(to)
	if t.prev != None {
		panic(fmt.Sprintf("waypoint: %d already has predecessor %d", to, t.prev))
	}
	if f.next != None {
		g.unlink(from)
	}
	f.next = to
	f.weight = g.cfg.WMax
	f.pending = false
	t.prev = from
}

func (g *Graph) unlink(from ID) {
	f := g.mustGet(from)
	if f.next == None {
		return
	}
	g.mustGet(f.next).prev = None
	f.next = None
	f.weight = 0
}

// Weaken subtracts d from the chain edge leaving id and returns the new
// weight, floored at zero.
func (g *Graph) Weaken(id ID, d float64) float64 {
	n := g.mustGet(id)
	if n.next == None {
		panic(fmt.Sprintf("waypoint: %d has no chain edge to weaken", id))
	}
	n.weight -= d
	if n.weight < 0 {
		n.weight = 0
	}
	return n.weight
}

// #endregion edges

// #region anchors
func (g *Graph) attach(id ID, label terrain.Label) {
	a, ok := g.anchors[label]
	if !ok {
		a = &anchor{label: label}
		g.anchors[label] = a
		g.order = append(g.order, label)
	}
	a.members = append(a.members, id)
	n := g.mustGet(id)
	n.anchor = label
	n.pending = false
}

func (g *Graph) detachAnchor(id ID) {
	n := g.mustGet(id)
	if n.anchor == terrain.LabelNone {
		return
	}
	a := g.anchors[n.anchor]
	a.members = slices.DeleteFunc(a.members, func(m ID) bool { return m == id })
	n.anchor = terrain.LabelNone
}

// WaypointsNear returns the members of label's anchor lying strictly inside
// the box of half-width radius around pos, in attach order.
func (g *Graph) WaypointsNear(label terrain.Label, pos terrain.Position, radius int) []ID {
	a, ok := g.anchors[label]
	if !ok {
		return nil
	}
	var out []ID
	for _, m := range a.members {
		if pos.WithinBox(g.nodes[m-1].pos, radius) {
			out = append(out, m)
		}
	}
	return out
}

// HasAnchor reports whether a GroundAnchor for label has been created.
func (g *Graph) HasAnchor(label terrain.Label) bool {
	_, ok := g.anchors[label]
	return ok
}

// Members returns a copy of the waypoints anchored to label.
func (g *Graph) Members(label terrain.Label) []ID {
	a, ok := g.anchors[label]
	if !ok {
		return nil
	}
	return slices.Clone(a.members)
}

// Anchors lists every anchor in creation order.
func (g *Graph) Anchors() []Anchor {
	out := make([]Anchor, 0, len(g.order))
	for _, l := range g.order {
		var members []ID
		if m := g.anchors[l].members; len(m) > 0 {
			members = slices.Clone(m)
		}
		out = append(out, Anchor{Label: l, Members: members})
	}
	return out
}

// #endregion anchors

// #region accessors
func (g *Graph) mustGet(id ID) *node {
	if id <= None || int(id) > len(g.nodes) || !g.nodes[id-1].alive {
		panic(fmt.Sprintf("waypoint: unknown waypoint %d", id))
	}
	return &g.nodes[id-1]
}

// Exists reports whether id names a live waypoint.
func (g *Graph) Exists(id ID) bool {
	return id > None && int(id) <= len(g.nodes) && g.nodes[id-1].alive
}

// Get returns a view of waypoint id. It panics if id is unknown.
func (g *Graph) Get(id ID) Waypoint {
	n := g.mustGet(id)
	return Waypoint{
		ID:      id,
		Pos:     n.pos,
		Next:    n.next,
		Prev:    n.prev,
		Weight:  n.weight,
		Anchor:  n.anchor,
		Pending: n.pending,
	}
}

// Lookup returns the waypoint remembered for a cell.
func (g *Graph) Lookup(pos terrain.Position) (ID, bool) {
	id, ok := g.byCell[pos]
	return id, ok
}

// Next returns the successor of id along the chain, or None.
func (g *Graph) Next(id ID) ID { return g.mustGet(id).next }

// Prev returns the predecessor of id along the chain, or None.
func (g *Graph) Prev(id ID) ID { return g.mustGet(id).prev }

// LastVisited returns the waypoint most recently recorded, or None.
func (g *Graph) LastVisited() ID { return g.last }

// Len returns the number of live waypoints.
func (g *Graph) Len() int { return g.live }

// IDs returns every live waypoint id in creation order.
func (g *Graph) IDs() []ID {
	out := make([]ID, 0, g.live)
	for i := range g.nodes {
		if g.nodes[i].alive {
			out = append(out, ID(i+1))
		}
	}
	return out
}

// Edges returns every chain edge, ordered by source id.
func (g *Graph) Edges() []ChainEdge {
	var out []ChainEdge
	for i := range g.nodes {
		n := &g.nodes[i]
		if n.alive && n.next != None {
			out = append(out, ChainEdge{From: ID(i + 1), To: n.next, Weight: n.weight})
		}
	}
	return out
}

// #endregion accessors

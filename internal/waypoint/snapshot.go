package waypoint

import (
	"fmt"

	"github.com/danielpatrickdp/path-memory/internal/terrain"
)

// #region snapshot-types
// Snapshot is a flat, serializable copy of a graph: waypoint records, edge
// records keyed by waypoint id, and the anchor table.
type Snapshot struct {
	LastVisited ID               `json:"last_visited" yaml:"last_visited"`
	Waypoints   []WaypointRecord `json:"waypoints" yaml:"waypoints"`
	Edges       []ChainEdge      `json:"edges" yaml:"edges"`
	Anchors     []AnchorRecord   `json:"anchors" yaml:"anchors"`
}

// WaypointRecord is one row of a Snapshot.
type WaypointRecord struct {
	ID      ID            `json:"id" yaml:"id"`
	X       int           `json:"x" yaml:"x"`
	Y       int           `json:"y" yaml:"y"`
	Anchor  terrain.Label `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	Pending bool          `json:"pending" yaml:"pending"`
}

// AnchorRecord lists the members of one anchor in attach order.
type AnchorRecord struct {
	Label   terrain.Label `json:"label" yaml:"label"`
	Members []ID          `json:"members" yaml:"members"`
}

// #endregion snapshot-types

// #region snapshot
// Snapshot copies the graph into flat records.
func (g *Graph) Snapshot() Snapshot {
	snap := Snapshot{LastVisited: g.last}
	for _, id := range g.IDs() {
		n := &g.nodes[id-1]
		snap.Waypoints = append(snap.Waypoints, WaypointRecord{
			ID:      id,
			X:       n.pos.X,
			Y:       n.pos.Y,
			Anchor:  n.anchor,
			Pending: n.pending,
		})
	}
	snap.Edges = g.Edges()
	for _, a := range g.Anchors() {
		snap.Anchors = append(snap.Anchors, AnchorRecord{Label: a.Label, Members: a.Members})
	}
	return snap
}

// #endregion snapshot

// #region restore
// Restore rebuilds a graph from a snapshot, keeping waypoint ids. Snapshots
// come from storage, so inconsistencies are reported as errors.
func Restore(cfg Config, oracle terrain.Oracle, snap Snapshot) (*Graph, error) {
	g := New(cfg, oracle)

	var maxID ID
	for _, w := range snap.Waypoints {
		if w.ID <= None {
			return nil, fmt.Errorf("restore: invalid waypoint id %d", w.ID)
		}
		maxID = max(maxID, w.ID)
	}
	g.nodes = make([]node, maxID)
	for _, w := range snap.Waypoints {
		pos := terrain.Pt(w.X, w.Y)
		if g.nodes[w.ID-1].alive {
			return nil, fmt.Errorf("restore: duplicate waypoint id %d", w.ID)
		}
		if _, dup := g.byCell[pos]; dup {
			return nil, fmt.Errorf("restore: duplicate cell %v", pos)
		}
		g.nodes[w.ID-1] = node{alive: true, pos: pos, pending: w.Pending}
		g.byCell[pos] = w.ID
		g.live++
	}

	for _, e := range snap.Edges {
		if !g.Exists(e.From) || !g.Exists(e.To) {
			return nil, fmt.Errorf("restore: edge %d->%d references unknown waypoint", e.From, e.To)
		}
		f, t := &g.nodes[e.From-1], &g.nodes[e.To-1]
		if f.next != None || t.prev != None {
			return nil, fmt.Errorf("restore: edge %d->%d branches the chain", e.From, e.To)
		}
		f.next, f.weight, t.prev = e.To, e.Weight, e.From
	}

	for _, a := range snap.Anchors {
		if _, dup := g.anchors[a.Label]; dup {
			return nil, fmt.Errorf("restore: duplicate anchor %q", a.Label)
		}
		g.anchors[a.Label] = &anchor{label: a.Label}
		g.order = append(g.order, a.Label)
		for _, m := range a.Members {
			if !g.Exists(m) {
				return nil, fmt.Errorf("restore: anchor %q references unknown waypoint %d", a.Label, m)
			}
			if g.nodes[m-1].anchor != terrain.LabelNone {
				return nil, fmt.Errorf("restore: waypoint %d anchored twice", m)
			}
			g.anchors[a.Label].members = append(g.anchors[a.Label].members, m)
			g.nodes[m-1].anchor = a.Label
		}
	}
	for _, w := range snap.Waypoints {
		if w.Anchor != g.nodes[w.ID-1].anchor {
			return nil, fmt.Errorf("restore: waypoint %d anchor %q not in anchor table", w.ID, w.Anchor)
		}
	}

	if snap.LastVisited != None && !g.Exists(snap.LastVisited) {
		return nil, fmt.Errorf("restore: last visited %d unknown", snap.LastVisited)
	}
	g.last = snap.LastVisited

	if err := g.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return g, nil
}

// #endregion restore

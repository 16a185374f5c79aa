package waypoint

import (
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/danielpatrickdp/path-memory/internal/terrain"
)

// #region helpers
// mapOracle returns fallback everywhere except the listed cells.
func mapOracle(fallback terrain.Label, cells map[terrain.Position]terrain.Label) terrain.Oracle {
	return terrain.OracleFunc(func(p terrain.Position) terrain.Label {
		if l, ok := cells[p]; ok {
			return l
		}
		return fallback
	})
}

// visit records a move and perceives the true ground.
func visit(g *Graph, oracle terrain.Oracle, p terrain.Position) VisitResult {
	return g.RecordVisit(p, oracle.GroundAt(p), true)
}

func mustCheck(t *testing.T, g *Graph) {
	t.Helper()
	if err := g.CheckInvariants(); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

// foodChain builds (0,0) -> (1,0) -> (2,0) with food at (2,0).
func foodChain(t *testing.T) (*Graph, [3]ID) {
	t.Helper()
	oracle := mapOracle(terrain.LabelBasic, map[terrain.Position]terrain.Label{
		terrain.Pt(2, 0): terrain.LabelFood,
	})
	g := New(DefaultConfig(), oracle)
	var ids [3]ID
	for i := 0; i < 3; i++ {
		ids[i] = visit(g, oracle, terrain.Pt(i, 0)).ID
	}
	mustCheck(t, g)
	return g, ids
}

// #endregion helpers

// #region test-record-visit
func TestRecordVisitIgnoredWithoutMove(t *testing.T) {
	g := New(DefaultConfig(), mapOracle(terrain.LabelBasic, nil))
	res := g.RecordVisit(terrain.Pt(1, 1), terrain.LabelBasic, false)
	if res.ID != None || g.Len() != 0 || g.LastVisited() != None {
		t.Fatalf("expected no-op, got %+v with %d waypoints", res, g.Len())
	}
}

func TestRecordVisitFoodScenario(t *testing.T) {
	g, ids := foodChain(t)

	if g.Len() != 3 {
		t.Fatalf("expected 3 waypoints, got %d", g.Len())
	}
	edges := g.Edges()
	if len(edges) != 2 {
		t.Fatalf("expected 2 chain edges, got %d", len(edges))
	}
	for _, e := range edges {
		if e.Weight != 1.0 {
			t.Errorf("edge %d->%d weight %.2f, want 1.0", e.From, e.To, e.Weight)
		}
	}
	if g.Next(ids[0]) != ids[1] || g.Next(ids[1]) != ids[2] || g.Prev(ids[2]) != ids[1] {
		t.Error("chain order does not follow visit order")
	}
	members := g.Members(terrain.LabelFood)
	if len(members) != 1 || members[0] != ids[2] {
		t.Fatalf("expected food anchor with (2,0), got %v", members)
	}
	if g.HasAnchor(terrain.LabelHealing) {
		t.Error("healing anchor should not exist yet")
	}
	if g.LastVisited() != ids[2] {
		t.Errorf("last visited %d, want %d", g.LastVisited(), ids[2])
	}
}

func TestPendingMarker(t *testing.T) {
	oracle := mapOracle(terrain.LabelBasic, nil)
	g := New(DefaultConfig(), oracle)

	a := visit(g, oracle, terrain.Pt(0, 0)).ID
	if !g.Get(a).Pending {
		t.Fatal("fresh waypoint should carry the pending marker")
	}
	visit(g, oracle, terrain.Pt(0, 1))
	if g.Get(a).Pending {
		t.Error("pending marker should be cleared by the outgoing chain edge")
	}

	food := mapOracle(terrain.LabelFood, nil)
	g2 := New(DefaultConfig(), food)
	b := visit(g2, food, terrain.Pt(4, 4)).ID
	if g2.Get(b).Pending {
		t.Error("pending marker should be cleared by anchoring")
	}
}

func TestRevisitIsLookup(t *testing.T) {
	oracle := mapOracle(terrain.LabelBasic, nil)
	g := New(DefaultConfig(), oracle)

	a := visit(g, oracle, terrain.Pt(0, 0))
	b := visit(g, oracle, terrain.Pt(1, 0))
	again := visit(g, oracle, terrain.Pt(0, 0))

	if again.Created || again.Linked || again.ID != a.ID {
		t.Fatalf("revisit should reuse waypoint %d without linking, got %+v", a.ID, again)
	}
	if g.Len() != 2 || len(g.Edges()) != 1 {
		t.Fatalf("expected 2 waypoints and 1 edge, got %d and %d", g.Len(), len(g.Edges()))
	}
	if g.LastVisited() != a.ID {
		t.Errorf("last visited should rebind to %d", a.ID)
	}

	// Leaving the revisited cell replaces its older successor.
	c := visit(g, oracle, terrain.Pt(0, 1))
	mustCheck(t, g)
	if g.Next(a.ID) != c.ID {
		t.Errorf("expected %d -> %d, got next %d", a.ID, c.ID, g.Next(a.ID))
	}
	if g.Prev(b.ID) != None {
		t.Errorf("old successor %d should have lost its predecessor", b.ID)
	}
}

func TestAnchorRequiresConsistentTerrain(t *testing.T) {
	oracle := mapOracle(terrain.LabelBasic, nil)
	g := New(DefaultConfig(), oracle)

	res := g.RecordVisit(terrain.Pt(3, 3), terrain.LabelFood, true)
	if res.Anchored || res.Label != terrain.LabelNone {
		t.Fatalf("stale perception must not anchor, got %+v", res)
	}
	if g.HasAnchor(terrain.LabelFood) {
		t.Error("food anchor should not be created")
	}
}

func TestUnrecognizedLabelIsIgnored(t *testing.T) {
	oracle := mapOracle(terrain.LabelBasic, nil)
	g := New(DefaultConfig(), oracle)
	res := visit(g, oracle, terrain.Pt(0, 0))
	if res.Anchored || len(g.Anchors()) != 0 {
		t.Fatalf("sand should not anchor, got %+v", res)
	}
}

func TestAnchorExclusivityRadius(t *testing.T) {
	oracle := mapOracle(terrain.LabelFood, nil)
	g := New(DefaultConfig(), oracle)

	var ids []ID
	for x := 0; x < 4; x++ {
		ids = append(ids, visit(g, oracle, terrain.Pt(x, 0)).ID)
	}
	got := g.Members(terrain.LabelFood)
	want := []ID{ids[0], ids[3]}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected members %v, got %v", want, got)
	}
	if near := g.WaypointsNear(terrain.LabelFood, terrain.Pt(1, 1), 3); len(near) != 2 {
		t.Errorf("expected both members within 3 of (1,1), got %v", near)
	}
	if near := g.WaypointsNear(terrain.LabelFood, terrain.Pt(10, 10), 3); len(near) != 0 {
		t.Errorf("expected no members near (10,10), got %v", near)
	}
	if near := g.WaypointsNear(terrain.LabelHealing, terrain.Pt(0, 0), 3); near != nil {
		t.Errorf("missing anchor should yield nil, got %v", near)
	}
}

// #endregion test-record-visit

// #region test-prune
func TestHazardPrunesPrecedingWaypoints(t *testing.T) {
	oracle := mapOracle(terrain.LabelBasic, map[terrain.Position]terrain.Label{
		terrain.Pt(2, 0): terrain.LabelDanger,
	})
	g := New(DefaultConfig(), oracle)
	visit(g, oracle, terrain.Pt(0, 0))
	visit(g, oracle, terrain.Pt(1, 0))
	res := visit(g, oracle, terrain.Pt(2, 0))
	mustCheck(t, g)

	if !res.Anchored || res.Label != terrain.LabelDanger || res.Pruned != 2 {
		t.Fatalf("unexpected visit result %+v", res)
	}
	if g.Len() != 1 || len(g.Edges()) != 0 {
		t.Fatalf("expected only the hazard waypoint, got %d waypoints, %d edges", g.Len(), len(g.Edges()))
	}
	if _, ok := g.Lookup(terrain.Pt(0, 0)); ok {
		t.Error("(0,0) should be forgotten")
	}
	if m := g.Members(terrain.LabelDanger); len(m) != 1 || m[0] != res.ID {
		t.Errorf("hazard waypoint should stay anchored, got %v", m)
	}
	if g.LastVisited() != res.ID {
		t.Error("hazard waypoint should remain last visited")
	}
}

func TestPruneChainBackwardIncludeSelf(t *testing.T) {
	oracle := mapOracle(terrain.LabelBasic, nil)
	g := New(DefaultConfig(), oracle)
	var ids []ID
	for y := 0; y < 4; y++ {
		ids = append(ids, visit(g, oracle, terrain.Pt(0, y)).ID)
	}

	if n := g.PruneChainBackward(ids[2], true); n != 3 {
		t.Fatalf("expected 3 removed, got %d", n)
	}
	mustCheck(t, g)
	for _, id := range ids[:3] {
		if g.Exists(id) {
			t.Errorf("waypoint %d should be removed", id)
		}
	}
	if g.Prev(ids[3]) != None {
		t.Error("survivor should have no predecessor")
	}
	if g.LastVisited() != ids[3] {
		t.Error("last visited should be untouched")
	}
	for _, e := range g.Edges() {
		if !g.Exists(e.From) || !g.Exists(e.To) {
			t.Errorf("dangling edge %+v", e)
		}
	}
}

func TestPruneKeepsSharedAnchor(t *testing.T) {
	oracle := mapOracle(terrain.LabelHealing, nil)
	g := New(DefaultConfig(), oracle)
	a := visit(g, oracle, terrain.Pt(0, 0)).ID
	visit(g, oracle, terrain.Pt(1, 0))
	visit(g, oracle, terrain.Pt(2, 0))
	b := visit(g, oracle, terrain.Pt(5, 0)).ID

	if m := g.Members(terrain.LabelHealing); len(m) != 2 {
		t.Fatalf("expected two healing members, got %v", m)
	}
	g.PruneChainBackward(b, false)
	mustCheck(t, g)
	if m := g.Members(terrain.LabelHealing); len(m) != 1 || m[0] != b {
		t.Fatalf("expected anchor to keep %d only, got %v", b, m)
	}
	if g.Exists(a) {
		t.Error("pruned member should be gone")
	}

	g.PruneChainBackward(b, true)
	mustCheck(t, g)
	if !g.HasAnchor(terrain.LabelHealing) {
		t.Error("anchors are never removed")
	}
	if len(g.Members(terrain.LabelHealing)) != 0 {
		t.Error("anchor should be empty")
	}
	if g.LastVisited() != None {
		t.Error("removing last visited should reset the pointer")
	}
}

func TestPruneUnknownWaypointPanics(t *testing.T) {
	g := New(DefaultConfig(), mapOracle(terrain.LabelBasic, nil))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown waypoint")
		}
	}()
	g.PruneChainBackward(42, true)
}

// #endregion test-prune

// #region test-random-walk
func TestChainInvariantUnderRandomWalk(t *testing.T) {
	cells := map[terrain.Position]terrain.Label{}
	rng := rand.New(rand.NewPCG(1, 2))
	labels := []terrain.Label{terrain.LabelFood, terrain.LabelHealing, terrain.LabelDanger}
	for i := 0; i < 25; i++ {
		cells[terrain.Pt(rng.IntN(12), rng.IntN(12))] = labels[rng.IntN(len(labels))]
	}
	oracle := mapOracle(terrain.LabelBasic, cells)
	cfg := DefaultConfig()
	g := New(cfg, oracle)

	pos := terrain.Pt(6, 6)
	for step := 0; step < 3000; step++ {
		pos = terrain.Pt(clamp(pos.X+rng.IntN(3)-1, 0, 11), clamp(pos.Y+rng.IntN(3)-1, 0, 11))
		perceived := oracle.GroundAt(pos)
		if rng.IntN(10) == 0 {
			perceived = labels[rng.IntN(len(labels))] // stale sensor reading
		}
		g.RecordVisit(pos, perceived, rng.IntN(8) != 0)

		if rng.IntN(50) == 0 && g.Len() > 0 {
			ids := g.IDs()
			g.PruneChainBackward(ids[rng.IntN(len(ids))], rng.IntN(2) == 0)
		}
		if err := g.CheckInvariants(); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}

	for _, a := range g.Anchors() {
		for i, m := range a.Members {
			for _, o := range a.Members[i+1:] {
				if g.Get(m).Pos.WithinBox(g.Get(o).Pos, cfg.AnchorRadius) {
					t.Errorf("anchor %q members %d and %d are within radius", a.Label, m, o)
				}
			}
		}
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// #endregion test-random-walk

// #region test-snapshot
func TestSnapshotRestoreRoundTrip(t *testing.T) {
	g, _ := foodChain(t)
	oracle := mapOracle(terrain.LabelBasic, nil)
	visit(g, oracle, terrain.Pt(2, 1))
	g.PruneChainBackward(g.LastVisited(), false)
	visit(g, oracle, terrain.Pt(3, 1))

	snap := g.Snapshot()
	restored, err := Restore(DefaultConfig(), oracle, snap)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(restored.Snapshot(), snap) {
		t.Fatalf("restored snapshot differs:\n got %+v\nwant %+v", restored.Snapshot(), snap)
	}

	// New waypoints must not collide with restored ids.
	next := visit(restored, oracle, terrain.Pt(4, 1))
	for _, w := range snap.Waypoints {
		if w.ID == next.ID {
			t.Fatalf("id %d reused after restore", next.ID)
		}
	}
	mustCheck(t, restored)
}

func TestRestoreRejectsBrokenSnapshot(t *testing.T) {
	oracle := mapOracle(terrain.LabelBasic, nil)
	cases := map[string]Snapshot{
		"dangling edge": {
			Waypoints: []WaypointRecord{{ID: 1}},
			Edges:     []ChainEdge{{From: 1, To: 2, Weight: 1}},
		},
		"branching": {
			Waypoints: []WaypointRecord{{ID: 1}, {ID: 2, X: 1}, {ID: 3, X: 2}},
			Edges:     []ChainEdge{{From: 1, To: 2, Weight: 1}, {From: 1, To: 3, Weight: 1}},
		},
		"anchor mismatch": {
			Waypoints: []WaypointRecord{{ID: 1, Anchor: terrain.LabelFood}},
		},
		"duplicate cell": {
			Waypoints: []WaypointRecord{{ID: 1}, {ID: 2}},
		},
		"cycle": {
			Waypoints: []WaypointRecord{{ID: 1}, {ID: 2, X: 1}},
			Edges:     []ChainEdge{{From: 1, To: 2, Weight: 1}, {From: 2, To: 1, Weight: 1}},
		},
	}
	for name, snap := range cases {
		if _, err := Restore(DefaultConfig(), oracle, snap); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

// #endregion test-snapshot

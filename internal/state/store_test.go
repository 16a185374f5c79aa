package state

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/waypoint"
	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// sampleSnapshot builds a small memory: a chain into a food cell plus an
// emptied healing anchor.
func sampleSnapshot(t *testing.T) waypoint.Snapshot {
	t.Helper()
	oracle := terrain.OracleFunc(func(p terrain.Position) terrain.Label {
		switch p {
		case terrain.Pt(0, 0):
			return terrain.LabelHealing
		case terrain.Pt(6, 0):
			return terrain.LabelFood
		}
		return terrain.LabelBasic
	})
	g := waypoint.New(waypoint.DefaultConfig(), oracle)
	for x := 0; x <= 6; x++ {
		p := terrain.Pt(x, 0)
		g.RecordVisit(p, oracle.GroundAt(p), true)
	}
	id, _ := g.Lookup(terrain.Pt(2, 0))
	g.PruneChainBackward(id, false)
	return g.Snapshot()
}

func TestCommitAndGetCurrent(t *testing.T) {
	s := tempDB(t)
	snap := sampleSnapshot(t)

	v, err := s.Commit("agent-1", 42, snap, `{"steps":42}`)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if v.VersionID == "" || v.ParentID != "" {
		t.Fatalf("unexpected first version %+v", v)
	}

	cur, err := s.GetCurrent("agent-1")
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != v.VersionID || cur.Step != 42 || cur.MetricsJSON != `{"steps":42}` {
		t.Fatalf("unexpected current version %+v", cur)
	}
	if !reflect.DeepEqual(cur.Snapshot, snap) {
		t.Fatalf("snapshot round trip differs:\n got %+v\nwant %+v", cur.Snapshot, snap)
	}
	if cur.CreatedAt.IsZero() {
		t.Error("created_at should be parsed")
	}

	if _, err := waypoint.Restore(waypoint.DefaultConfig(), terrain.OracleFunc(func(terrain.Position) terrain.Label {
		return terrain.LabelBasic
	}), cur.Snapshot); err != nil {
		t.Fatalf("stored snapshot should restore: %v", err)
	}
}

func TestCommitChainsParentsAndRollback(t *testing.T) {
	s := tempDB(t)
	snap := sampleSnapshot(t)

	v1, err := s.Commit("agent-1", 1, snap, "")
	if err != nil {
		t.Fatalf("Commit v1: %v", err)
	}
	v2, err := s.Commit("agent-1", 2, waypoint.Snapshot{}, "")
	if err != nil {
		t.Fatalf("Commit v2: %v", err)
	}
	if v2.ParentID != v1.VersionID {
		t.Fatalf("expected parent %s, got %s", v1.VersionID, v2.ParentID)
	}

	cur, _ := s.GetCurrent("agent-1")
	if cur.VersionID != v2.VersionID || len(cur.Snapshot.Waypoints) != 0 {
		t.Fatalf("expected empty v2 active, got %+v", cur)
	}

	if err := s.Rollback("agent-1", v1.VersionID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	cur, _ = s.GetCurrent("agent-1")
	if cur.VersionID != v1.VersionID {
		t.Fatalf("expected %s after rollback, got %s", v1.VersionID, cur.VersionID)
	}
}

func TestRollbackOtherAgentsVersion(t *testing.T) {
	s := tempDB(t)
	v, err := s.Commit("agent-1", 1, waypoint.Snapshot{}, "")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := s.Commit("agent-2", 1, waypoint.Snapshot{}, ""); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := s.Rollback("agent-2", v.VersionID); err == nil {
		t.Fatal("expected error rolling back onto another agent's version")
	}
	if err := s.Rollback("agent-1", "nope"); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestListVersions(t *testing.T) {
	s := tempDB(t)
	snap := sampleSnapshot(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Commit("agent-1", int64(i), snap, ""); err != nil {
			t.Fatalf("Commit %d: %v", i, err)
		}
	}
	if _, err := s.Commit("agent-2", 9, waypoint.Snapshot{}, ""); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	all, err := s.ListVersions("", 10)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 versions, got %d", len(all))
	}
	if all[0].AgentID != "agent-2" {
		t.Errorf("newest first: expected agent-2, got %s", all[0].AgentID)
	}

	mine, err := s.ListVersions("agent-1", 2)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(mine) != 2 || mine[0].Step != 2 || mine[1].Step != 1 {
		t.Fatalf("unexpected listing %+v", mine)
	}
	if mine[0].Waypoints != len(snap.Waypoints) || mine[0].Edges != len(snap.Edges) || mine[0].Anchors != len(snap.Anchors) {
		t.Errorf("counts %+v do not match snapshot", mine[0])
	}
}

func TestGetCurrentNoActiveVersion(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetCurrent("ghost")
	if !errors.Is(err, ErrNoActiveVersion) {
		t.Fatalf("expected ErrNoActiveVersion, got %v", err)
	}
}

func TestGetVersionNotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetVersion("missing"); err == nil {
		t.Fatal("expected error for missing version")
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	if _, err := NewStore(filepath.Join(os.DevNull, "sub", "x.db")); err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestDBAccessor(t *testing.T) {
	s := tempDB(t)
	if s.DB() == nil {
		t.Fatal("DB() returned nil")
	}
}

func TestOperationsOnClosedDB(t *testing.T) {
	s := tempDB(t)
	s.Close()

	if _, err := s.Commit("a", 1, waypoint.Snapshot{}, ""); err == nil {
		t.Error("Commit: expected error on closed db")
	}
	if _, err := s.GetCurrent("a"); err == nil {
		t.Error("GetCurrent: expected error on closed db")
	}
	if err := s.Rollback("a", "v"); err == nil {
		t.Error("Rollback: expected error on closed db")
	}
	if _, err := s.ListVersions("", 5); err == nil {
		t.Error("ListVersions: expected error on closed db")
	}
}

func TestGetVersionBadAnchorJSON(t *testing.T) {
	s := tempDB(t)
	v, err := s.Commit("a", 1, sampleSnapshot(t), "")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := s.DB().Exec(`UPDATE snapshot_anchors SET members_json = 'nope' WHERE version_id = ?`, v.VersionID); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := s.GetVersion(v.VersionID); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

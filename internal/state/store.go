package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/waypoint"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS snapshot_versions (
	version_id    TEXT PRIMARY KEY,
	agent_id      TEXT NOT NULL,
	parent_id     TEXT,
	step          INTEGER NOT NULL,
	last_visited  INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES snapshot_versions(version_id)
);
CREATE INDEX IF NOT EXISTS idx_versions_agent ON snapshot_versions(agent_id, created_at);

CREATE TABLE IF NOT EXISTS snapshot_waypoints (
	version_id    TEXT NOT NULL,
	waypoint_id   INTEGER NOT NULL,
	x             INTEGER NOT NULL,
	y             INTEGER NOT NULL,
	anchor        TEXT,
	pending       INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (version_id, waypoint_id),
	FOREIGN KEY (version_id) REFERENCES snapshot_versions(version_id)
);

CREATE TABLE IF NOT EXISTS snapshot_edges (
	version_id    TEXT NOT NULL,
	source_id     INTEGER NOT NULL,
	target_id     INTEGER NOT NULL,
	weight        REAL NOT NULL,
	PRIMARY KEY (version_id, source_id),
	FOREIGN KEY (version_id) REFERENCES snapshot_versions(version_id)
);

CREATE TABLE IF NOT EXISTS snapshot_anchors (
	version_id    TEXT NOT NULL,
	label         TEXT NOT NULL,
	ord           INTEGER NOT NULL,
	members_json  TEXT NOT NULL,
	PRIMARY KEY (version_id, label),
	FOREIGN KEY (version_id) REFERENCES snapshot_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_agents (
	agent_id      TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES snapshot_versions(version_id)
);
`

// timeFormat is fixed-width so created_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// #endregion schema

// #region store-struct
// Store keeps versioned snapshots of agents' path memories in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region commit
// Commit stores snap as a new version for agentID, parented on the agent's
// active version, and makes it active.
func (s *Store) Commit(agentID string, step int64, snap waypoint.Snapshot, metricsJSON string) (Version, error) {
	rec := Version{
		VersionID:   uuid.New().String(),
		AgentID:     agentID,
		Step:        step,
		Snapshot:    snap,
		CreatedAt:   time.Now().UTC(),
		MetricsJSON: metricsJSON,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Version{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRow(`SELECT version_id FROM active_agents WHERE agent_id = ?`, agentID).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Version{}, fmt.Errorf("read active: %w", err)
	}
	if parent.Valid {
		rec.ParentID = parent.String
	}

	_, err = tx.Exec(
		`INSERT INTO snapshot_versions (version_id, agent_id, parent_id, step, last_visited, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, agentID, nullIfEmpty(rec.ParentID), step, int64(snap.LastVisited),
		rec.CreatedAt.Format(timeFormat), nullIfEmpty(metricsJSON),
	)
	if err != nil {
		return Version{}, fmt.Errorf("insert version: %w", err)
	}

	for _, w := range snap.Waypoints {
		pending := 0
		if w.Pending {
			pending = 1
		}
		_, err = tx.Exec(
			`INSERT INTO snapshot_waypoints (version_id, waypoint_id, x, y, anchor, pending)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.VersionID, int64(w.ID), w.X, w.Y, nullIfEmpty(string(w.Anchor)), pending,
		)
		if err != nil {
			return Version{}, fmt.Errorf("insert waypoint %d: %w", w.ID, err)
		}
	}

	for _, e := range snap.Edges {
		_, err = tx.Exec(
			`INSERT INTO snapshot_edges (version_id, source_id, target_id, weight) VALUES (?, ?, ?, ?)`,
			rec.VersionID, int64(e.From), int64(e.To), e.Weight,
		)
		if err != nil {
			return Version{}, fmt.Errorf("insert edge %d->%d: %w", e.From, e.To, err)
		}
	}

	for i, a := range snap.Anchors {
		members, err := json.Marshal(a.Members)
		if err != nil {
			return Version{}, fmt.Errorf("marshal anchor %q: %w", a.Label, err)
		}
		_, err = tx.Exec(
			`INSERT INTO snapshot_anchors (version_id, label, ord, members_json) VALUES (?, ?, ?, ?)`,
			rec.VersionID, string(a.Label), i, string(members),
		)
		if err != nil {
			return Version{}, fmt.Errorf("insert anchor %q: %w", a.Label, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO active_agents (agent_id, version_id) VALUES (?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET version_id = excluded.version_id`,
		agentID, rec.VersionID,
	)
	if err != nil {
		return Version{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Version{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion commit

// #region get-current
// GetCurrent reads the active version of agentID.
func (s *Store) GetCurrent(agentID string) (Version, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_agents WHERE agent_id = ?`, agentID).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, fmt.Errorf("get active %s: %w", agentID, ErrNoActiveVersion)
	}
	if err != nil {
		return Version{}, fmt.Errorf("get active %s: %w", agentID, err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a version and all of its records.
func (s *Store) GetVersion(id string) (Version, error) {
	var rec Version
	var parentID, metricsJSON sql.NullString
	var createdStr string
	var last int64

	err := s.db.QueryRow(
		`SELECT version_id, agent_id, parent_id, step, last_visited, created_at, metrics_json
		 FROM snapshot_versions WHERE version_id = ?`, id,
	).Scan(&rec.VersionID, &rec.AgentID, &parentID, &rec.Step, &last, &createdStr, &metricsJSON)
	if err != nil {
		return Version{}, fmt.Errorf("get version %s: %w", id, err)
	}
	rec.ParentID = parentID.String
	rec.MetricsJSON = metricsJSON.String
	rec.CreatedAt, _ = time.Parse(timeFormat, createdStr)
	rec.Snapshot.LastVisited = waypoint.ID(last)

	if err := s.loadWaypoints(&rec); err != nil {
		return Version{}, err
	}
	if err := s.loadEdges(&rec); err != nil {
		return Version{}, err
	}
	if err := s.loadAnchors(&rec); err != nil {
		return Version{}, err
	}
	return rec, nil
}

func (s *Store) loadWaypoints(rec *Version) error {
	rows, err := s.db.Query(
		`SELECT waypoint_id, x, y, anchor, pending FROM snapshot_waypoints
		 WHERE version_id = ? ORDER BY waypoint_id`, rec.VersionID,
	)
	if err != nil {
		return fmt.Errorf("load waypoints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var w waypoint.WaypointRecord
		var id int64
		var anchor sql.NullString
		var pending int
		if err := rows.Scan(&id, &w.X, &w.Y, &anchor, &pending); err != nil {
			return fmt.Errorf("scan waypoint: %w", err)
		}
		w.ID = waypoint.ID(id)
		w.Anchor = terrain.Label(anchor.String)
		w.Pending = pending != 0
		rec.Snapshot.Waypoints = append(rec.Snapshot.Waypoints, w)
	}
	return rows.Err()
}

func (s *Store) loadEdges(rec *Version) error {
	rows, err := s.db.Query(
		`SELECT source_id, target_id, weight FROM snapshot_edges
		 WHERE version_id = ? ORDER BY source_id`, rec.VersionID,
	)
	if err != nil {
		return fmt.Errorf("load edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var from, to int64
		var e waypoint.ChainEdge
		if err := rows.Scan(&from, &to, &e.Weight); err != nil {
			return fmt.Errorf("scan edge: %w", err)
		}
		e.From, e.To = waypoint.ID(from), waypoint.ID(to)
		rec.Snapshot.Edges = append(rec.Snapshot.Edges, e)
	}
	return rows.Err()
}

func (s *Store) loadAnchors(rec *Version) error {
	rows, err := s.db.Query(
		`SELECT label, members_json FROM snapshot_anchors
		 WHERE version_id = ? ORDER BY ord`, rec.VersionID,
	)
	if err != nil {
		return fmt.Errorf("load anchors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label, membersJSON string
		if err := rows.Scan(&label, &membersJSON); err != nil {
			return fmt.Errorf("scan anchor: %w", err)
		}
		a := waypoint.AnchorRecord{Label: terrain.Label(label)}
		if err := json.Unmarshal([]byte(membersJSON), &a.Members); err != nil {
			return fmt.Errorf("unmarshal anchor %q: %w", label, err)
		}
		if len(a.Members) == 0 {
			a.Members = nil
		}
		rec.Snapshot.Anchors = append(rec.Snapshot.Anchors, a)
	}
	return rows.Err()
}

// #endregion get-version

// #region rollback
// Rollback points agentID back at one of its earlier versions.
func (s *Store) Rollback(agentID, targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM snapshot_versions WHERE version_id = ? AND agent_id = ?`,
		targetVersionID, agentID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found for agent %s", targetVersionID, agentID)
	}

	_, err = s.db.Exec(`UPDATE active_agents SET version_id = ? WHERE agent_id = ?`, targetVersionID, agentID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent versions, newest first. An empty
// agentID lists every agent.
func (s *Store) ListVersions(agentID string, limit int) ([]VersionSummary, error) {
	rows, err := s.db.Query(
		`SELECT v.version_id, v.agent_id, v.parent_id, v.step, v.created_at, v.metrics_json,
		        (SELECT COUNT(*) FROM snapshot_waypoints w WHERE w.version_id = v.version_id),
		        (SELECT COUNT(*) FROM snapshot_edges e WHERE e.version_id = v.version_id),
		        (SELECT COUNT(*) FROM snapshot_anchors a WHERE a.version_id = v.version_id)
		 FROM snapshot_versions v
		 WHERE ? = '' OR v.agent_id = ?
		 ORDER BY v.created_at DESC, v.rowid DESC
		 LIMIT ?`, agentID, agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []VersionSummary
	for rows.Next() {
		var vs VersionSummary
		var parentID, metricsJSON sql.NullString
		var createdStr string
		if err := rows.Scan(&vs.VersionID, &vs.AgentID, &parentID, &vs.Step, &createdStr, &metricsJSON,
			&vs.Waypoints, &vs.Edges, &vs.Anchors); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		vs.ParentID = parentID.String
		vs.MetricsJSON = metricsJSON.String
		vs.CreatedAt, _ = time.Parse(timeFormat, createdStr)
		out = append(out, vs)
	}
	return out, rows.Err()
}

// #endregion list-versions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers

package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS memory_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id    TEXT NOT NULL,
	step        INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	x           INTEGER NOT NULL,
	y           INTEGER NOT NULL,
	label       TEXT,
	count       INTEGER NOT NULL DEFAULT 0,
	detail      TEXT,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_agent ON memory_events(agent_id, step);
`

// EnsureSchema creates the memory_events table if needed.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("events schema: %w", err)
	}
	return nil
}

// #endregion schema

// #region log-event
// LogEvent writes an entry to the memory_events table.
func LogEvent(db *sql.DB, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO memory_events (agent_id, step, kind, x, y, label, count, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AgentID,
		e.Step,
		string(e.Kind),
		e.X,
		e.Y,
		nullIfEmpty(e.Label),
		e.Count,
		nullIfEmpty(e.Detail),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// #endregion log-event

// #region list-events
// ListEvents returns the most recent events of agentID, oldest first.
func ListEvents(db *sql.DB, agentID string, limit int) ([]Event, error) {
	rows, err := db.Query(
		`SELECT agent_id, step, kind, x, y, label, count, detail, created_at FROM (
		   SELECT * FROM memory_events WHERE agent_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id`, agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var kind, createdStr string
		var label, detail sql.NullString
		if err := rows.Scan(&e.AgentID, &e.Step, &kind, &e.X, &e.Y, &label, &e.Count, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = EventKind(kind)
		e.Label = label.String
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-events

// #region journal
// Journal binds LogEvent to one database.
type Journal struct {
	db *sql.DB
}

// NewJournal ensures the schema exists and returns a Journal on db.
func NewJournal(db *sql.DB) (*Journal, error) {
	if err := EnsureSchema(db); err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Record writes e.
func (j *Journal) Record(e Event) error {
	return LogEvent(j.db, e)
}

// #endregion journal

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers

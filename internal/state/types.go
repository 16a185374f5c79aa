package state

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/path-memory/internal/waypoint"
)

// ErrNoActiveVersion is returned when an agent has never committed a snapshot.
var ErrNoActiveVersion = errors.New("state: no active version")

// #region version
// Version is one committed snapshot of an agent's path memory.
type Version struct {
	VersionID   string
	AgentID     string
	ParentID    string
	Step        int64
	Snapshot    waypoint.Snapshot
	CreatedAt   time.Time
	MetricsJSON string
}

// #endregion version

// #region version-summary
// VersionSummary is a listing row: a version without its records.
type VersionSummary struct {
	VersionID   string    `json:"version_id" yaml:"version_id"`
	AgentID     string    `json:"agent_id" yaml:"agent_id"`
	ParentID    string    `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Step        int64     `json:"step" yaml:"step"`
	Waypoints   int       `json:"waypoints" yaml:"waypoints"`
	Edges       int       `json:"edges" yaml:"edges"`
	Anchors     int       `json:"anchors" yaml:"anchors"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	MetricsJSON string    `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// #endregion version-summary

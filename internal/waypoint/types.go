package waypoint

import "github.com/danielpatrickdp/path-memory/internal/terrain"

// #region id
// ID identifies a waypoint inside one Graph. IDs are never reused.
type ID int64

// None is the sentinel for "no waypoint".
const None ID = 0

// #endregion id

// #region config
// Config holds the tunables of the waypoint graph.
type Config struct {
	WMax           float64                // weight of a freshly created chain edge
	AnchorRadius   int                    // min spacing between waypoints anchored to one label
	Classification terrain.Classification // which labels anchor and which are hazardous
}

// DefaultConfig returns the values used by the island agent.
func DefaultConfig() Config {
	return Config{
		WMax:           1.0,
		AnchorRadius:   3,
		Classification: terrain.DefaultClassification(),
	}
}

// #endregion config

// #region waypoint
// Waypoint is a read-only view of a remembered cell.
type Waypoint struct {
	ID      ID
	Pos     terrain.Position
	Next    ID            // successor along the chain (por)
	Prev    ID            // predecessor along the chain (ret)
	Weight  float64       // weight of the edge to Next; 0 when Next is None
	Anchor  terrain.Label // LabelNone when not anchored
	Pending bool          // provisional marker, superseded by a chain edge or an anchor
}

// ChainEdge is a directed, weighted link between consecutive waypoints.
type ChainEdge struct {
	From   ID      `json:"from" yaml:"from"`
	To     ID      `json:"to" yaml:"to"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Anchor lists the waypoints attached to a terrain label, in attach order.
type Anchor struct {
	Label   terrain.Label
	Members []ID
}

// #endregion waypoint

// #region visit-result
// VisitResult reports what a RecordVisit call did to the graph.
type VisitResult struct {
	ID       ID            // waypoint now LastVisited; None when the agent did not move
	Created  bool          // a new waypoint was allocated for the cell
	Linked   bool          // a chain edge from the previous waypoint was attached
	Label    terrain.Label // confirmed terrain label, LabelNone if unrecognized or inconsistent
	Anchored bool          // the waypoint was attached to the anchor for Label
	Pruned   int           // waypoints removed because Label is hazardous
}

// #endregion visit-result

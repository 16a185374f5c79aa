package logging

import "time"

// #region event-kind
// EventKind classifies a journal entry.
type EventKind string

const (
	EventAnchor      EventKind = "anchor"       // waypoint attached to a ground anchor
	EventHazardPrune EventKind = "hazard_prune" // path into a hazard discarded
	EventDecayPrune  EventKind = "decay_prune"  // path forgotten by decay
	EventPlan        EventKind = "plan"         // new target chosen
	EventArrive      EventKind = "arrive"       // target reached
	EventNoTarget    EventKind = "no_target"    // sampling exhausted, holding position
	EventSnapshot    EventKind = "snapshot"     // memory committed to the state store
)

// #endregion event-kind

// #region event
// Event is a single row in the memory_events table.
type Event struct {
	AgentID   string
	Step      int64
	Kind      EventKind
	X, Y      int
	Label     string // terrain label or plan source, when relevant
	Count     int    // waypoints affected
	Detail    string
	CreatedAt time.Time
}

// #endregion event

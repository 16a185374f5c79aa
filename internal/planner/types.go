package planner

import (
	"errors"

	"github.com/danielpatrickdp/path-memory/internal/terrain"
)

// #region errors
// ErrNoValidTarget is returned when random sampling found no passable cell.
// The agent holds position for the step.
var ErrNoValidTarget = errors.New("planner: no valid target found")

// #endregion errors

// #region source
// Source records how a target was chosen.
type Source string

const (
	SourceNone    Source = "none"
	SourceKept    Source = "kept"    // existing target already leads to the goal
	SourcePath    Source = "path"    // nearest waypoint on a remembered path
	SourceRandom  Source = "random"  // sampled because no path is known
	SourceHolding Source = "holding" // sampling exhausted, hold position
)

// #endregion source

// #region target
// Target is the position the agent is heading for. The zero value means no target.
type Target struct {
	Pos    terrain.Position `json:"pos" yaml:"pos"`
	Valid  bool             `json:"valid" yaml:"valid"`
	Source Source           `json:"source,omitempty" yaml:"source,omitempty"`
}

// NoTarget is the sentinel for "no target set".
var NoTarget = Target{}

// #endregion target

// #region config
// Config bounds the planner's random fallback.
type Config struct {
	MaxSampleAttempts int // rejection-sampling attempts before holding position
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxSampleAttempts: 100}
}

// #endregion config

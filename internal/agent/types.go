package agent

import (
	"github.com/danielpatrickdp/path-memory/internal/decay"
	"github.com/danielpatrickdp/path-memory/internal/planner"
	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/waypoint"
)

// #region frame
// Frame is what the sensors report for one simulation step.
type Frame struct {
	Pos       terrain.Position
	Perceived terrain.Label
	Moved     bool
}

// #endregion frame

// #region config
// Config collects the tunables of every memory component.
type Config struct {
	Graph   waypoint.Config
	Decay   decay.Config
	Planner planner.Config
}

// DefaultConfig returns the defaults of each component.
func DefaultConfig() Config {
	return Config{
		Graph:   waypoint.DefaultConfig(),
		Decay:   decay.DefaultConfig(),
		Planner: planner.DefaultConfig(),
	}
}

// #endregion config

// #region step-report
// StepReport summarizes one call to Agent.Step.
type StepReport struct {
	Step      int64
	Pos       terrain.Position
	Moved     bool
	Ground    terrain.Label
	Perceived terrain.Label // what the sensors reported, differs from Ground under noise
	Goal      terrain.Label
	Obs       Observation
	Arrived   bool
	Target    planner.Target
	Held      bool // no valid target could be found, holding position
}

// #endregion step-report

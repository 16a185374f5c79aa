package agent

import "github.com/danielpatrickdp/path-memory/internal/terrain"

// #region drives
// Drives are the agent's internal tanks, each kept in [0, 1]. The emptiest
// tank decides what the agent looks for.
type Drives struct {
	Energy      float64 `json:"energy" yaml:"energy"`
	Health      float64 `json:"health" yaml:"health"`
	Exploration float64 `json:"exploration" yaml:"exploration"`
}

// Motive names the drive currently in control.
type Motive string

const (
	MotiveEnergy      Motive = "energy"
	MotiveHealth      Motive = "health"
	MotiveExploration Motive = "exploration"
)

const (
	foodRefill    = 0.1
	healRefill    = 0.1
	dangerDamage  = 0.1
	metabolism    = 0.001
	moveCost      = 0.01
	boredom       = 0.001
	noveltyReward = 0.01
)

// DefaultDrives returns full energy and health with half-curious exploration.
func DefaultDrives() Drives {
	return Drives{Energy: 1, Health: 1, Exploration: 0.5}
}

// Update applies one step of the world to the tanks. ground is the cell the
// agent stands on; novel is true when the cell was never visited before.
func (d *Drives) Update(ground terrain.Label, moved, novel bool) {
	switch ground {
	case terrain.LabelFood:
		d.Energy += foodRefill
	case terrain.LabelHealing:
		d.Health += healRefill
	case terrain.LabelDanger:
		d.Health -= dangerDamage
	}
	d.Energy -= metabolism
	if moved {
		d.Energy -= moveCost
	}
	d.Exploration -= boredom
	if novel {
		d.Exploration += noveltyReward
	}
	d.Energy = clamp01(d.Energy)
	d.Health = clamp01(d.Health)
	d.Exploration = clamp01(d.Exploration)
}

// Motive returns the lowest tank. Ties prefer energy, then health.
func (d Drives) Motive() Motive {
	m, low := MotiveEnergy, d.Energy
	if d.Health < low {
		m, low = MotiveHealth, d.Health
	}
	if d.Exploration < low {
		m = MotiveExploration
	}
	return m
}

// Goal maps the current motive to the terrain label that satisfies it.
// Exploration has no goal label.
func (d Drives) Goal() terrain.Label {
	switch d.Motive() {
	case MotiveEnergy:
		return terrain.LabelFood
	case MotiveHealth:
		return terrain.LabelHealing
	}
	return terrain.LabelNone
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion drives

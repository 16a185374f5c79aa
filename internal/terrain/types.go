package terrain

import "math"

// #region label
// Label names a terrain type as the agent perceives it.
type Label string

const (
	LabelNone    Label = ""
	LabelHealing Label = "healing" // grass
	LabelBasic   Label = "basic"   // sand
	LabelDanger  Label = "danger"  // swamp
	LabelFood    Label = "food"    // darkgrass
	LabelWater   Label = "water"
)

// #endregion label

// #region position
// Position is a discretized grid cell.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Pt is a convenience constructor for Position.
func Pt(x, y int) Position { return Position{X: x, Y: y} }

// Distance returns the Euclidean distance between two cells.
func (p Position) Distance(other Position) float64 {
	dx := float64(p.X - other.X)
	dy := float64(p.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// WithinBox reports whether other lies strictly inside the square of
// half-width radius centred on p.
func (p Position) WithinBox(other Position, radius int) bool {
	return other.X > p.X-radius && other.X < p.X+radius &&
		other.Y > p.Y-radius && other.Y < p.Y+radius
}

// Step returns a copy of p moved one cell toward target on each axis.
func (p Position) Step(target Position) Position {
	p.X += sign(target.X - p.X)
	p.Y += sign(target.Y - p.Y)
	return p
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

// #endregion position

// #region bounds
// Bounds is the known extent of the world, used for random target sampling.
type Bounds struct {
	Width  int `json:"width" yaml:"width" mapstructure:"width"`
	Height int `json:"height" yaml:"height" mapstructure:"height"`
}

// Contains reports whether p lies in [0,Width) x [0,Height).
func (b Bounds) Contains(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < b.Width && p.Y < b.Height
}

// #endregion bounds

// #region oracle
// Oracle answers what the world's terrain actually is at a cell.
type Oracle interface {
	GroundAt(p Position) Label
}

// OracleFunc adapts a plain function to Oracle.
type OracleFunc func(p Position) Label

// GroundAt calls f(p).
func (f OracleFunc) GroundAt(p Position) Label { return f(p) }

// #endregion oracle

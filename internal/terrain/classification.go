package terrain

import "fmt"

// #region classification
// Classification tells the memory which labels it cares about.
type Classification struct {
	Anchorable []Label `json:"anchorable" yaml:"anchorable" mapstructure:"anchorable"` // labels that get a GroundAnchor
	Hazardous  []Label `json:"hazardous" yaml:"hazardous" mapstructure:"hazardous"`    // paths into these are discarded
	Impassable []Label `json:"impassable" yaml:"impassable" mapstructure:"impassable"` // never a valid target or step
}

// DefaultClassification mirrors the island world: food, danger and healing
// areas are remembered, swamp is hazardous, water cannot be entered.
func DefaultClassification() Classification {
	return Classification{
		Anchorable: []Label{LabelFood, LabelDanger, LabelHealing},
		Hazardous:  []Label{LabelDanger},
		Impassable: []Label{LabelWater},
	}
}

// IsAnchorable reports whether l is a recognized label the agent anchors paths to.
func (c Classification) IsAnchorable(l Label) bool { return contains(c.Anchorable, l) }

// IsHazardous reports whether paths leading into l should be forgotten.
func (c Classification) IsHazardous(l Label) bool { return contains(c.Hazardous, l) }

// IsImpassable reports whether l blocks movement.
func (c Classification) IsImpassable(l Label) bool { return contains(c.Impassable, l) }

// Validate checks that every hazardous label is also anchorable.
func (c Classification) Validate() error {
	for _, l := range c.Hazardous {
		if !c.IsAnchorable(l) {
			return fmt.Errorf("terrain: hazardous label %q is not anchorable", l)
		}
	}
	for _, l := range c.Impassable {
		if c.IsAnchorable(l) {
			return fmt.Errorf("terrain: impassable label %q cannot be anchorable", l)
		}
	}
	return nil
}

func contains(ls []Label, l Label) bool {
	if l == LabelNone {
		return false
	}
	for _, x := range ls {
		if x == l {
			return true
		}
	}
	return false
}

// #endregion classification

// #region ground-codes
// groundCodes is the numeric ground table of the island map images.
var groundCodes = map[int]Label{
	0: LabelHealing,
	1: LabelBasic,
	2: LabelDanger,
	3: LabelFood,
	7: LabelWater,
}

// FromCode maps a numeric ground code to its label. Unknown codes map to LabelNone.
func FromCode(code int) Label {
	return groundCodes[code]
}

// Code returns the numeric ground code of l, or -1 when l has none.
func Code(l Label) int {
	for c, x := range groundCodes {
		if x == l {
			return c
		}
	}
	return -1
}

// #endregion ground-codes

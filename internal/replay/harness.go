package replay

import (
	"fmt"

	"github.com/danielpatrickdp/path-memory/internal/agent"
)

// #region types
// Result captures what replaying one frame did to the memory.
type Result struct {
	Step      int
	Frame     agent.Frame
	Obs       agent.Observation
	Waypoints int   // live waypoints after the step
	Err       error // invariant violation detected after the step
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Steps          int
	Created        int
	Anchored       int
	HazardPruned   int
	DecayPruned    int
	FinalWaypoints int
	Violations     int
}

// Mismatch is one expectation the replay did not meet.
type Mismatch struct {
	Step  int
	Field string
	Want  string
	Got   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("step %d: %s want %s, got %s", m.Step, m.Field, m.Want, m.Got)
}

// #endregion types

// #region replay
// Replay feeds frames through mem one by one, checking the graph invariants
// after each step. Operates entirely in-memory.
func Replay(mem *agent.Memory, frames []agent.Frame) []Result {
	results := make([]Result, 0, len(frames))
	for i, f := range frames {
		obs := mem.Observe(f)
		results = append(results, Result{
			Step:      i + 1,
			Frame:     f,
			Obs:       obs,
			Waypoints: mem.Graph().Len(),
			Err:       mem.Graph().CheckInvariants(),
		})
	}
	return results
}

// Run replays a fixture on a fresh memory.
func Run(f *Fixture) ([]Result, error) {
	g, err := f.Grid()
	if err != nil {
		return nil, fmt.Errorf("fixture map: %w", err)
	}
	frames := make([]agent.Frame, len(f.Frames))
	for i := range f.Frames {
		frames[i] = f.Frames[i].ToFrame()
	}
	mem := agent.NewMemory(f.Config.ToAgentConfig(), g, g.Bounds(), nil)
	return Replay(mem, frames), nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{Steps: len(results)}
	for _, r := range results {
		if r.Obs.Visit.Created {
			s.Created++
		}
		if r.Obs.Visit.Anchored {
			s.Anchored++
		}
		s.HazardPruned += r.Obs.Visit.Pruned
		s.DecayPruned += r.Obs.Decay.Pruned
		if r.Err != nil {
			s.Violations++
		}
	}
	if n := len(results); n > 0 {
		s.FinalWaypoints = results[n-1].Waypoints
	}
	return s
}

// Check compares results against expectations.
func Check(results []Result, expected []FixtureExpectation) []Mismatch {
	var out []Mismatch
	for _, e := range expected {
		if e.Step < 1 || e.Step > len(results) {
			out = append(out, Mismatch{Step: e.Step, Field: "step", Want: "recorded", Got: fmt.Sprintf("%d steps", len(results))})
			continue
		}
		r := results[e.Step-1]
		if r.Obs.Visit.Anchored != e.Anchored {
			out = append(out, Mismatch{e.Step, "anchored", fmt.Sprint(e.Anchored), fmt.Sprint(r.Obs.Visit.Anchored)})
		}
		if r.Obs.Visit.Pruned != e.Pruned {
			out = append(out, Mismatch{e.Step, "pruned", fmt.Sprint(e.Pruned), fmt.Sprint(r.Obs.Visit.Pruned)})
		}
		if r.Obs.Decay.Pruned != e.DecayPruned {
			out = append(out, Mismatch{e.Step, "decay_pruned", fmt.Sprint(e.DecayPruned), fmt.Sprint(r.Obs.Decay.Pruned)})
		}
		if r.Waypoints != e.Waypoints {
			out = append(out, Mismatch{e.Step, "waypoints", fmt.Sprint(e.Waypoints), fmt.Sprint(r.Waypoints)})
		}
	}
	for _, r := range results {
		if r.Err != nil {
			out = append(out, Mismatch{r.Step, "invariants", "ok", r.Err.Error()})
		}
	}
	return out
}

// #endregion replay

package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/path-memory/internal/agent"
	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/world"
)

// #region fixture-types

// Fixture is a recorded frame trace over a fixed map together with what the
// memory is expected to do at selected steps.
type Fixture struct {
	Description string               `json:"description" yaml:"description"`
	Map         []string             `json:"map" yaml:"map"`
	Config      FixtureConfig        `json:"config" yaml:"config"`
	Frames      []FixtureFrame       `json:"frames" yaml:"frames"`
	Expected    []FixtureExpectation `json:"expected" yaml:"expected"`
}

// FixtureConfig overrides memory tunables. Zero values keep the defaults.
type FixtureConfig struct {
	WMax         float64 `json:"w_max,omitempty" yaml:"w_max,omitempty"`
	AnchorRadius int     `json:"anchor_radius,omitempty" yaml:"anchor_radius,omitempty"`
	Decay        float64 `json:"decay,omitempty" yaml:"decay,omitempty"`
}

// FixtureFrame mirrors agent.Frame with serialization tags.
type FixtureFrame struct {
	X         int           `json:"x" yaml:"x"`
	Y         int           `json:"y" yaml:"y"`
	Perceived terrain.Label `json:"perceived,omitempty" yaml:"perceived,omitempty"`
	Moved     bool          `json:"moved" yaml:"moved"`
}

// FixtureExpectation is the expected outcome of one step (1-based).
type FixtureExpectation struct {
	Step        int  `json:"step" yaml:"step"`
	Anchored    bool `json:"anchored" yaml:"anchored"`
	Pruned      int  `json:"pruned" yaml:"pruned"`
	DecayPruned int  `json:"decay_pruned" yaml:"decay_pruned"`
	Waypoints   int  `json:"waypoints" yaml:"waypoints"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads a fixture file. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON, or YAML for .yaml/.yml paths.
func WriteFixture(path string, f *Fixture) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(f)
	default:
		data, err = json.MarshalIndent(f, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Grid parses the fixture map.
func (f *Fixture) Grid() (*world.Grid, error) {
	return world.Parse(strings.NewReader(strings.Join(f.Map, "\n")))
}

// ToAgentConfig applies the overrides to the default memory configuration.
func (fc FixtureConfig) ToAgentConfig() agent.Config {
	cfg := agent.DefaultConfig()
	if fc.WMax > 0 {
		cfg.Graph.WMax = fc.WMax
	}
	if fc.AnchorRadius > 0 {
		cfg.Graph.AnchorRadius = fc.AnchorRadius
	}
	if fc.Decay > 0 {
		cfg.Decay.Decay = fc.Decay
	}
	return cfg
}

// ToFrame converts a FixtureFrame to an agent.Frame.
func (ff FixtureFrame) ToFrame() agent.Frame {
	return agent.Frame{Pos: terrain.Pt(ff.X, ff.Y), Perceived: ff.Perceived, Moved: ff.Moved}
}

// #endregion fixture-loader

// #region fixture-export

// NewFixture records a simulation run as a fixture. Every step whose outcome
// changed the memory beyond a plain visit becomes an expectation, so the
// fixture pins anchoring and pruning behavior.
func NewFixture(description string, g *world.Grid, fc FixtureConfig, reports []agent.StepReport) (*Fixture, error) {
	var buf bytes.Buffer
	if err := g.Format(&buf); err != nil {
		return nil, fmt.Errorf("format map: %w", err)
	}
	f := &Fixture{
		Description: description,
		Map:         strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n"),
		Config:      fc,
	}
	cfg := fc.ToAgentConfig()
	mem := agent.NewMemory(cfg, g, g.Bounds(), nil)
	for i, r := range reports {
		f.Frames = append(f.Frames, FixtureFrame{X: r.Pos.X, Y: r.Pos.Y, Perceived: r.Perceived, Moved: r.Moved})
		obs := mem.Observe(f.Frames[i].ToFrame())
		if obs.Visit.Anchored || obs.Visit.Pruned > 0 || obs.Decay.Pruned > 0 || i == len(reports)-1 {
			f.Expected = append(f.Expected, FixtureExpectation{
				Step:        i + 1,
				Anchored:    obs.Visit.Anchored,
				Pruned:      obs.Visit.Pruned,
				DecayPruned: obs.Decay.Pruned,
				Waypoints:   mem.Graph().Len(),
			})
		}
	}
	return f, nil
}

// #endregion fixture-export

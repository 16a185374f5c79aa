package agent

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/danielpatrickdp/path-memory/internal/logging"
	"github.com/danielpatrickdp/path-memory/internal/planner"
	"github.com/danielpatrickdp/path-memory/internal/state"
	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/waypoint"
	"github.com/danielpatrickdp/path-memory/internal/world"
)

// #region helpers
type memJournal struct {
	events []logging.Event
	err    error
}

func (m *memJournal) Record(e logging.Event) error {
	m.events = append(m.events, e)
	return m.err
}

func (m *memJournal) kinds() map[logging.EventKind]int {
	out := map[logging.EventKind]int{}
	for _, e := range m.events {
		out[e.Kind]++
	}
	return out
}

// corridor is a single row of sand from x=1 to x=8 ending in food, ringed by water.
func corridor() *world.Grid {
	g := world.NewGrid(10, 3, terrain.LabelWater)
	g.Fill(terrain.Pt(1, 1), terrain.Pt(8, 1), terrain.LabelBasic)
	g.Set(terrain.Pt(8, 1), terrain.LabelFood)
	return g
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// #endregion helpers

// #region drives-tests
func TestDrivesUpdate(t *testing.T) {
	d := Drives{Energy: 0.5, Health: 0.5, Exploration: 0.5}
	d.Update(terrain.LabelFood, false, false)
	assert.InDelta(t, 0.599, d.Energy, 1e-9)
	assert.InDelta(t, 0.5, d.Health, 1e-9)
	assert.InDelta(t, 0.499, d.Exploration, 1e-9)

	d.Update(terrain.LabelDanger, true, true)
	assert.InDelta(t, 0.588, d.Energy, 1e-9)
	assert.InDelta(t, 0.4, d.Health, 1e-9)
	assert.InDelta(t, 0.508, d.Exploration, 1e-9)

	full := Drives{Energy: 1, Health: 1, Exploration: 1}
	full.Update(terrain.LabelHealing, false, true)
	assert.Equal(t, 1.0, full.Health, "tanks are clamped at 1")

	empty := Drives{}
	empty.Update(terrain.LabelDanger, true, false)
	assert.Equal(t, Drives{}, empty, "tanks are clamped at 0")
}

func TestDrivesMotiveAndGoal(t *testing.T) {
	cases := []struct {
		d      Drives
		motive Motive
		goal   terrain.Label
	}{
		{Drives{Energy: 0.1, Health: 0.5, Exploration: 0.5}, MotiveEnergy, terrain.LabelFood},
		{Drives{Energy: 0.5, Health: 0.1, Exploration: 0.5}, MotiveHealth, terrain.LabelHealing},
		{Drives{Energy: 0.5, Health: 0.5, Exploration: 0.1}, MotiveExploration, terrain.LabelNone},
		{Drives{Energy: 0.2, Health: 0.2, Exploration: 0.2}, MotiveEnergy, terrain.LabelFood},
		{DefaultDrives(), MotiveExploration, terrain.LabelNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.motive, tc.d.Motive(), "%+v", tc.d)
		assert.Equal(t, tc.goal, tc.d.Goal(), "%+v", tc.d)
	}
}

// #endregion drives-tests

// #region memory-tests
func TestMemoryObserveRecordsAndDecays(t *testing.T) {
	g := corridor()
	m := NewMemory(DefaultConfig(), g, g.Bounds(), seeded(1))

	var last Observation
	for x := 1; x <= 8; x++ {
		p := terrain.Pt(x, 1)
		last = m.Observe(Frame{Pos: p, Perceived: g.GroundAt(p), Moved: true})
	}
	assert.True(t, last.Visit.Anchored)
	assert.Equal(t, terrain.LabelFood, last.Visit.Label)
	assert.Equal(t, 7, last.Decay.Edges)
	assert.True(t, m.KnowsPathTo(terrain.LabelFood))
	assert.False(t, m.KnowsPathTo(terrain.LabelHealing))

	tgt, err := m.Plan(terrain.LabelFood, terrain.Pt(1, 1))
	require.NoError(t, err)
	assert.Equal(t, planner.SourcePath, tgt.Source)
	assert.Equal(t, terrain.Pt(2, 1), tgt.Pos, "standing on the oldest waypoint continues along the path")
	require.NoError(t, m.Graph().CheckInvariants())
}

func TestRestoreMemoryRejectsBrokenSnapshot(t *testing.T) {
	g := corridor()
	snap := waypoint.Snapshot{
		Waypoints: []waypoint.WaypointRecord{{ID: 1, X: 1, Y: 1}},
		Edges:     []waypoint.ChainEdge{{From: 1, To: 7, Weight: 1}},
	}
	_, err := RestoreMemory(DefaultConfig(), g, g.Bounds(), snap, nil)
	assert.Error(t, err)
}

// #endregion memory-tests

// #region agent-tests
func TestNewValidates(t *testing.T) {
	_, err := New("a", nil, terrain.Pt(0, 0), DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Graph.Classification.Impassable = append(cfg.Graph.Classification.Impassable, terrain.LabelFood)
	_, err = New("a", corridor(), terrain.Pt(1, 1), cfg)
	assert.Error(t, err)

	a, err := New("", corridor(), terrain.Pt(1, 1), DefaultConfig(), WithMeterProvider(noop.NewMeterProvider()))
	require.NoError(t, err)
	_, err = uuid.Parse(a.ID())
	assert.NoError(t, err, "empty id becomes a uuid")
	assert.Equal(t, terrain.Pt(1, 1), a.Position())
	assert.Equal(t, DefaultDrives(), a.Drives())
}

func TestAgentExploresCorridorAndAnchorsFood(t *testing.T) {
	j := &memJournal{}
	a, err := New("explorer", corridor(), terrain.Pt(1, 1), DefaultConfig(), WithRand(seeded(7)), WithJournal(j))
	require.NoError(t, err)

	found := false
	for i := 0; i < 2000 && !found; i++ {
		r := a.Step(context.Background())
		require.Equal(t, 1, r.Pos.Y, "agent left the corridor at step %d", r.Step)
		found = r.Obs.Visit.Anchored && r.Obs.Visit.Label == terrain.LabelFood
		require.NoError(t, a.Memory().Graph().CheckInvariants())
	}
	require.True(t, found, "food was never anchored")
	assert.Positive(t, j.kinds()[logging.EventAnchor])
	assert.Positive(t, j.kinds()[logging.EventPlan])
	for _, e := range j.events {
		assert.Equal(t, "explorer", e.AgentID)
	}
}

func TestAgentFollowsRememberedPath(t *testing.T) {
	g := corridor()
	mem := waypoint.New(waypoint.DefaultConfig(), g)
	for x := 5; x <= 8; x++ {
		p := terrain.Pt(x, 1)
		mem.RecordVisit(p, g.GroundAt(p), true)
	}
	snap := mem.Snapshot()
	snap.LastVisited = waypoint.None

	hungry := Drives{Energy: 0.05, Health: 1, Exploration: 1}
	a, err := Restore("hungry", g, terrain.Pt(2, 1), DefaultConfig(), snap, WithRand(seeded(3)), WithDrives(hungry))
	require.NoError(t, err)
	require.Equal(t, terrain.Pt(2, 1), a.Position())

	sawPath := false
	reached := false
	for i := 0; i < 60 && !reached; i++ {
		r := a.Step(context.Background())
		if r.Target.Source == planner.SourcePath || r.Target.Source == planner.SourceKept {
			sawPath = true
		}
		reached = r.Pos == terrain.Pt(8, 1)
	}
	assert.True(t, sawPath, "agent never planned along the remembered path")
	assert.True(t, reached, "agent never reached the food")
	assert.Equal(t, terrain.LabelFood, a.Drives().Goal())
}

func TestAgentOnGeneratedIsland(t *testing.T) {
	rng := seeded(11)
	g := world.Generate(30, 20, 6, rng)
	start := terrain.Pt(15, 10)
	g.Set(start, terrain.LabelBasic)

	j := &memJournal{err: errors.New("disk full")}
	a, err := New("island", g, start, DefaultConfig(), WithRand(rng), WithSensorNoise(0.1), WithJournal(j))
	require.NoError(t, err)

	cls := DefaultConfig().Graph.Classification
	for i := 0; i < 3000; i++ {
		r := a.Step(context.Background())
		require.False(t, cls.IsImpassable(g.GroundAt(r.Pos)), "agent walked onto water at %v", r.Pos)
		if i%100 == 0 {
			require.NoError(t, a.Memory().Graph().CheckInvariants(), "step %d", r.Step)
		}
	}
	require.NoError(t, a.Memory().Graph().CheckInvariants())
	assert.Equal(t, int64(3000), a.Steps())
	assert.NotEmpty(t, j.events, "journal failures must not stop recording attempts")
}

func TestAgentHoldsWhenNothingIsPassable(t *testing.T) {
	g := world.NewGrid(4, 4, terrain.LabelWater)
	g.Set(terrain.Pt(1, 1), terrain.LabelBasic)
	cfg := DefaultConfig()
	cfg.Planner.MaxSampleAttempts = 3
	// the only passable cell is the one the agent stands on, so sampling may
	// succeed only by picking it
	j := &memJournal{}
	a, err := New("stuck", g, terrain.Pt(1, 1), cfg, WithRand(seeded(5)), WithJournal(j))
	require.NoError(t, err)

	held := 0
	for i := 0; i < 50; i++ {
		r := a.Step(context.Background())
		assert.Equal(t, terrain.Pt(1, 1), r.Pos)
		assert.False(t, r.Moved)
		if r.Held {
			held++
			assert.Equal(t, planner.SourceHolding, r.Target.Source)
			assert.False(t, r.Target.Valid)
		}
	}
	assert.Positive(t, held)
	assert.Equal(t, held, j.kinds()[logging.EventNoTarget])
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := New("r", corridor(), terrain.Pt(1, 1), DefaultConfig(), WithRand(seeded(2)))
	require.NoError(t, err)

	n, err := a.Run(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err = a.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Equal(t, int64(25), a.Steps())
}

func TestCheckpointAndRestore(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "mem.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	g := corridor()
	j := &memJournal{}
	a, err := New("cp", g, terrain.Pt(1, 1), DefaultConfig(), WithRand(seeded(9)), WithJournal(j))
	require.NoError(t, err)
	_, err = a.Run(context.Background(), 40)
	require.NoError(t, err)

	v, err := a.Checkpoint(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "cp", v.AgentID)
	assert.Equal(t, int64(40), v.Step)
	assert.Contains(t, v.MetricsJSON, `"waypoints"`)
	assert.Equal(t, 1, j.kinds()[logging.EventSnapshot])

	cur, err := store.GetCurrent("cp")
	require.NoError(t, err)
	b, err := Restore("cp", g, terrain.Pt(1, 1), DefaultConfig(), cur.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, a.Memory().Graph().Snapshot(), b.Memory().Graph().Snapshot())
	if last := a.Memory().Graph().LastVisited(); last != waypoint.None {
		assert.Equal(t, a.Position(), b.Position())
	}
}

type failingCommitter struct{}

func (failingCommitter) Commit(string, int64, waypoint.Snapshot, string) (state.Version, error) {
	return state.Version{}, errors.New("boom")
}

func TestCheckpointError(t *testing.T) {
	a, err := New("x", corridor(), terrain.Pt(1, 1), DefaultConfig())
	require.NoError(t, err)
	_, err = a.Checkpoint(context.Background(), failingCommitter{})
	assert.Error(t, err)
}

func TestStepAndCheckpointSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	a, err := New("tr", corridor(), terrain.Pt(1, 1), DefaultConfig(), WithRand(seeded(3)), WithTracerProvider(tp))
	require.NoError(t, err)
	_, err = a.Run(context.Background(), 5)
	require.NoError(t, err)
	_, err = a.Checkpoint(context.Background(), failingCommitter{})
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 6)
	for _, s := range spans[:5] {
		assert.Equal(t, "agent.step", s.Name())
	}
	var step int64
	for _, kv := range spans[4].Attributes() {
		if kv.Key == "step" {
			step = kv.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(5), step)

	cp := spans[5]
	assert.Equal(t, "agent.checkpoint", cp.Name())
	assert.Equal(t, codes.Error, cp.Status().Code)
	require.NotEmpty(t, cp.Events(), "commit error is recorded on the span")
	assert.Equal(t, "exception", cp.Events()[0].Name)
}

// #endregion agent-tests

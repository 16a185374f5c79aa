package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/danielpatrickdp/path-memory/internal/agent"
	"github.com/danielpatrickdp/path-memory/internal/config"
	"github.com/danielpatrickdp/path-memory/internal/eval"
	"github.com/danielpatrickdp/path-memory/internal/logging"
	"github.com/danielpatrickdp/path-memory/internal/replay"
	"github.com/danielpatrickdp/path-memory/internal/state"
	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/world"
)

// #region main
func main() {
	cfgPath := flag.String("config", envOr("PATHMEM_CONFIG", ""), "path to pathmem.yaml")
	steps := flag.Int("steps", -1, "number of steps (overrides sim.steps)")
	tracePath := flag.String("trace", "", "write the run as a replay fixture (.json or .yaml)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *steps >= 0 {
		cfg.Sim.Steps = *steps
	}
	logger, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	grid, rng, seed, err := cfg.World.Build()
	if err != nil {
		log.Fatalf("failed to build world: %v", err)
	}

	// Initialize state store and event journal
	store, err := state.NewStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()
	journal, err := logging.NewJournal(store.DB())
	if err != nil {
		log.Fatalf("failed to open journal: %v", err)
	}

	start, err := grid.StartCell(cfg.Memory.Classification)
	if err != nil {
		log.Fatalf("no start cell: %v", err)
	}
	opts := []agent.Option{
		agent.WithRand(rng),
		agent.WithLogger(logger),
		agent.WithJournal(journal),
		agent.WithSensorNoise(cfg.Sim.SensorNoise),
	}

	a, err := newAgent(store, cfg, grid, start, opts)
	if err != nil {
		log.Fatalf("failed to create agent: %v", err)
	}

	fmt.Println("Path memory simulation ready.")
	fmt.Printf("  Agent: %s | DB: %s | World: %dx%d seed=%d\n",
		a.ID(), cfg.Storage.DBPath, grid.Bounds().Width, grid.Bounds().Height, seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	harness := eval.NewEvalHarness(eval.EvalConfig{
		WMax:          cfg.Memory.WMax,
		MaxWaypoints:  grid.Bounds().Width * grid.Bounds().Height,
		MinMeanWeight: eval.DefaultEvalConfig().MinMeanWeight,
	})

	var reports []agent.StepReport
	var anchored, hazard, forgotten, held int
	saved := int64(-1)
	for i := 0; i < cfg.Sim.Steps && ctx.Err() == nil; i++ {
		r := a.Step(ctx)
		if *tracePath != "" {
			reports = append(reports, r)
		}
		if r.Obs.Visit.Anchored {
			anchored++
		}
		hazard += r.Obs.Visit.Pruned
		forgotten += r.Obs.Decay.Pruned
		if r.Held {
			held++
		}
		if cfg.Sim.CheckpointEvery > 0 && r.Step%int64(cfg.Sim.CheckpointEvery) == 0 {
			checkpoint(ctx, a, store, harness)
			saved = r.Step
		}
	}
	if a.Steps() != saved {
		checkpoint(ctx, a, store, harness)
	}

	d := a.Drives()
	fmt.Printf("[%s] steps=%d waypoints=%d anchored=%d hazard_pruned=%d decay_pruned=%d held=%d\n",
		a.ID(), a.Steps(), a.Memory().Graph().Len(), anchored, hazard, forgotten, held)
	fmt.Printf("  drives: energy=%.3f health=%.3f exploration=%.3f motive=%s\n",
		d.Energy, d.Health, d.Exploration, d.Motive())

	if *tracePath != "" {
		f, err := replay.NewFixture(fmt.Sprintf("pathsim run of %s, seed %d", a.ID(), seed), grid, replay.FixtureConfig{
			WMax:         cfg.Memory.WMax,
			AnchorRadius: cfg.Memory.AnchorRadius,
			Decay:        cfg.Memory.Decay,
		}, reports)
		if err != nil {
			log.Fatalf("build trace: %v", err)
		}
		if err := replay.WriteFixture(*tracePath, f); err != nil {
			log.Fatalf("write trace: %v", err)
		}
		fmt.Printf("  trace: %s (%d frames, %d expectations)\n", *tracePath, len(f.Frames), len(f.Expected))
	}
}

// #endregion main

// #region helpers
func newAgent(store *state.Store, cfg *config.Config, grid *world.Grid, start terrain.Position, opts []agent.Option) (*agent.Agent, error) {
	if cfg.Sim.Resume && cfg.Sim.AgentID != "" {
		v, err := store.GetCurrent(cfg.Sim.AgentID)
		switch {
		case err == nil:
			log.Printf("resuming %s from version %s (step %d)", cfg.Sim.AgentID, v.VersionID, v.Step)
			return agent.Restore(cfg.Sim.AgentID, grid, start, cfg.AgentConfig(), v.Snapshot, opts...)
		case !errors.Is(err, state.ErrNoActiveVersion):
			return nil, err
		}
		log.Printf("no active version for %s, starting fresh", cfg.Sim.AgentID)
	}
	return agent.New(cfg.Sim.AgentID, grid, start, cfg.AgentConfig(), opts...)
}

func checkpoint(ctx context.Context, a *agent.Agent, store *state.Store, h *eval.EvalHarness) {
	res := h.Run(a.Memory().Graph().Snapshot())
	if !res.Passed {
		log.Printf("checkpoint skipped at step %d: %s", a.Steps(), res.Reason)
		return
	}
	if _, err := a.Checkpoint(ctx, store); err != nil {
		log.Printf("checkpoint error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers

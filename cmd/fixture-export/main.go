package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/danielpatrickdp/path-memory/internal/agent"
	"github.com/danielpatrickdp/path-memory/internal/config"
	"github.com/danielpatrickdp/path-memory/internal/replay"
)

// #region main

func main() {
	cfgPath := flag.String("config", os.Getenv("PATHMEM_CONFIG"), "path to pathmem.yaml")
	steps := flag.Int("steps", 200, "number of steps to record")
	outPath := flag.String("out", "", "output fixture path (.json or .yaml)")
	desc := flag.String("desc", "", "fixture description")
	flag.Parse()

	if *outPath == "" || *steps <= 0 {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --out path/to/fixture.json [--config pathmem.yaml] [--steps N] [--desc text]")
		os.Exit(2)
	}

	if err := run(*cfgPath, *steps, *outPath, *desc); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region record

// run simulates an agent without touching any store and writes the frames it
// produced as a fixture. The recorded expectations come from replaying those
// frames, so the fixture passes against the current memory by construction.
func run(cfgPath string, steps int, outPath, desc string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	grid, rng, seed, err := cfg.World.Build()
	if err != nil {
		return err
	}
	start, err := grid.StartCell(cfg.Memory.Classification)
	if err != nil {
		return err
	}

	a, err := agent.New(cfg.Sim.AgentID, grid, start, cfg.AgentConfig(),
		agent.WithRand(rng),
		agent.WithSensorNoise(cfg.Sim.SensorNoise),
		agent.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		return err
	}

	reports := make([]agent.StepReport, 0, steps)
	for i := 0; i < steps; i++ {
		reports = append(reports, a.Step(context.Background()))
	}

	if desc == "" {
		desc = fmt.Sprintf("%d steps on a %dx%d world, seed %d", steps, grid.Bounds().Width, grid.Bounds().Height, seed)
	}
	f, err := replay.NewFixture(desc, grid, replay.FixtureConfig{
		WMax:         cfg.Memory.WMax,
		AnchorRadius: cfg.Memory.AnchorRadius,
		Decay:        cfg.Memory.Decay,
	}, reports)
	if err != nil {
		return err
	}
	if err := replay.WriteFixture(outPath, f); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}

	fmt.Printf("Wrote %s: %d frames, %d expectations\n", outPath, len(f.Frames), len(f.Expected))
	return nil
}

// #endregion record

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/path-memory/internal/eval"
	"github.com/danielpatrickdp/path-memory/internal/replay"
	"github.com/danielpatrickdp/path-memory/internal/state"
	"github.com/danielpatrickdp/path-memory/internal/waypoint"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to pathmem.db (DB mode)")
	agentID := flag.String("agent", "", "agent to verify in DB mode (default: all)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON or YAML (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/pathmem.db [--agent id]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *agentID)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

// runDBMode restores every stored version and checks that it is a valid
// memory, so a corrupt checkpoint is caught before an agent resumes from it.
func runDBMode(dbPath, agentID string) int {
	store, err := state.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	versions, err := store.ListVersions(agentID, -1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list versions: %v\n", err)
		return 2
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return 0
	}

	h := eval.NewEvalHarness(eval.EvalConfig{WMax: waypoint.DefaultConfig().WMax})
	failed := 0
	for i := len(versions) - 1; i >= 0; i-- {
		sum := versions[i]
		v, err := store.GetVersion(sum.VersionID)
		if err != nil {
			fmt.Printf("FAIL  %s  %s step %d: %v\n", shortID(sum.VersionID), sum.AgentID, sum.Step, err)
			failed++
			continue
		}
		res := h.Run(v.Snapshot)
		mark := "ok  "
		if !res.Passed {
			mark = "FAIL"
			failed++
		}
		fmt.Printf("%s  %s  %s step %d: %d waypoints, %d edges", mark, shortID(v.VersionID), v.AgentID, v.Step,
			len(v.Snapshot.Waypoints), len(v.Snapshot.Edges))
		if res.Reason != "" {
			fmt.Printf(" (%s)", res.Reason)
		}
		fmt.Println()
	}

	fmt.Printf("\n%d versions verified, %d failed\n", len(versions), failed)
	if failed > 0 {
		return 1
	}
	return 0
}

// #endregion db-mode

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	results, err := replay.Run(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	s := replay.Summarize(results)

	if f.Description != "" {
		fmt.Printf("Fixture: %s\n", f.Description)
	}
	fmt.Printf("Steps: %d | created: %d | anchored: %d | hazard pruned: %d | decay pruned: %d | final waypoints: %d\n",
		s.Steps, s.Created, s.Anchored, s.HazardPruned, s.DecayPruned, s.FinalWaypoints)

	mismatches := replay.Check(results, f.Expected)
	if len(mismatches) == 0 {
		fmt.Printf("PASS (%d expectations)\n", len(f.Expected))
		return 0
	}
	for _, m := range mismatches {
		fmt.Printf("  MISMATCH %s\n", m)
	}
	fmt.Printf("FAIL (%d mismatches)\n", len(mismatches))
	return 1
}

// #endregion fixture-mode

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

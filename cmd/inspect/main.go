package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/path-memory/internal/eval"
	"github.com/danielpatrickdp/path-memory/internal/logging"
	"github.com/danielpatrickdp/path-memory/internal/state"
	"github.com/danielpatrickdp/path-memory/internal/terrain"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to pathmem.db")
	agentID := flag.String("agent", "", "filter versions and events to one agent")
	last := flag.Int("last", 20, "show N most recent versions")
	version := flag.String("version", "", "show single version detail")
	events := flag.Int("events", 0, "also show the N most recent journal events")
	format := flag.String("format", "table", "output format: table, json or yaml")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/pathmem.db [--agent id] [--last N] [--version id] [--events N] [--format table|json|yaml]")
		os.Exit(2)
	}
	if *format != "table" && *format != "json" && *format != "yaml" {
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *version != "" {
		err = runDetailMode(store, *version, *format)
	} else {
		err = runListMode(store, *agentID, *last, *format)
	}
	if err == nil && *events > 0 {
		err = runEventMode(store, *agentID, *events, *format)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(store *state.Store, agentID string, last int, format string) error {
	versions, err := store.ListVersions(agentID, last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}

	// store returns newest first, print chronologically
	for i, j := 0, len(versions)-1; i < j; i, j = i+1, j-1 {
		versions[i], versions[j] = versions[j], versions[i]
	}
	if format != "table" {
		return printStructured(versions, format)
	}

	fmt.Printf("%-10s  %-12s  %8s  %9s  %6s  %7s  %s\n",
		"Version", "Agent", "Step", "Waypoints", "Edges", "Anchors", "Time")
	fmt.Printf("%-10s+-%-12s+-%8s+-%9s+-%6s+-%7s+-%s\n",
		"----------", "------------", "--------", "---------", "------", "-------", "--------------------")
	for _, v := range versions {
		fmt.Printf("%-10s  %-12s  %8d  %9d  %6d  %7d  %s\n",
			shortID(v.VersionID), v.AgentID, v.Step, v.Waypoints, v.Edges, v.Anchors,
			v.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	latest := versions[len(versions)-1]
	fmt.Printf("\n%d versions. Latest: %s (%s, step %d)\n", len(versions), shortID(latest.VersionID), latest.AgentID, latest.Step)
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailView struct {
	VersionID string            `json:"version_id" yaml:"version_id"`
	AgentID   string            `json:"agent_id" yaml:"agent_id"`
	ParentID  string            `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Step      int64             `json:"step" yaml:"step"`
	CreatedAt string            `json:"created_at" yaml:"created_at"`
	Waypoints int               `json:"waypoints" yaml:"waypoints"`
	Edges     int               `json:"edges" yaml:"edges"`
	Anchors   map[string]int    `json:"anchors" yaml:"anchors"`
	Metrics   map[string]any    `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Eval      eval.EvalResult   `json:"eval" yaml:"eval"`
	Last      *terrain.Position `json:"last_visited,omitempty" yaml:"last_visited,omitempty"`
}

func runDetailMode(store *state.Store, versionID, format string) error {
	v, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}

	out := detailView{
		VersionID: v.VersionID,
		AgentID:   v.AgentID,
		ParentID:  v.ParentID,
		Step:      v.Step,
		CreatedAt: v.CreatedAt.Format("2006-01-02 15:04:05"),
		Waypoints: len(v.Snapshot.Waypoints),
		Edges:     len(v.Snapshot.Edges),
		Anchors:   make(map[string]int, len(v.Snapshot.Anchors)),
		Eval:      eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(v.Snapshot),
	}
	for _, a := range v.Snapshot.Anchors {
		out.Anchors[string(a.Label)] = len(a.Members)
	}
	for _, w := range v.Snapshot.Waypoints {
		if w.ID == v.Snapshot.LastVisited {
			p := terrain.Pt(w.X, w.Y)
			out.Last = &p
		}
	}
	if v.MetricsJSON != "" {
		if err := json.Unmarshal([]byte(v.MetricsJSON), &out.Metrics); err != nil {
			return fmt.Errorf("parse metrics: %w", err)
		}
	}
	if format != "table" {
		return printStructured(out, format)
	}

	fmt.Printf("Version:    %s\n", out.VersionID)
	fmt.Printf("Agent:      %s\n", out.AgentID)
	if out.ParentID != "" {
		fmt.Printf("Parent:     %s\n", out.ParentID)
	}
	fmt.Printf("Step:       %d\n", out.Step)
	fmt.Printf("Created:    %s\n", out.CreatedAt)
	fmt.Printf("Waypoints:  %d\n", out.Waypoints)
	fmt.Printf("Edges:      %d\n", out.Edges)
	if out.Last != nil {
		fmt.Printf("Last:       (%d, %d)\n", out.Last.X, out.Last.Y)
	}

	fmt.Println("\nAnchors:")
	for _, a := range v.Snapshot.Anchors {
		fmt.Printf("  %-10s %d members\n", a.Label, len(a.Members))
	}

	fmt.Println("\nEval:")
	for _, m := range out.Eval.Metrics {
		mark := "ok"
		if !m.Pass {
			mark = "FAIL"
		}
		fmt.Printf("  %-16s %10.4f  %s\n", m.Name, m.Value, mark)
	}
	if out.Eval.Reason != "" {
		fmt.Printf("  reason: %s\n", out.Eval.Reason)
	}
	return nil
}

// #endregion detail-mode

// #region event-mode

func runEventMode(store *state.Store, agentID string, limit int, format string) error {
	db := store.DB()
	if err := logging.EnsureSchema(db); err != nil {
		return err
	}
	events, err := logging.ListEvents(db, agentID, limit)
	if err != nil {
		return err
	}
	if format != "table" {
		return printStructured(events, format)
	}

	fmt.Printf("\n%-12s  %8s  %-13s  %9s  %-10s  %5s  %s\n", "Agent", "Step", "Kind", "Pos", "Label", "Count", "Detail")
	for _, e := range events {
		fmt.Printf("%-12s  %8d  %-13s  %9s  %-10s  %5d  %s\n",
			e.AgentID, e.Step, e.Kind, fmt.Sprintf("(%d,%d)", e.X, e.Y), e.Label, e.Count, e.Detail)
	}
	return nil
}

// #endregion event-mode

// #region output

func printStructured(v any, format string) error {
	if format == "yaml" {
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		fmt.Print(string(data))
		return nil
	}
	return printJSON(v)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output

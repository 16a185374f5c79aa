package eval

import (
	"fmt"

	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/waypoint"
)

// #region eval-harness
// EvalHarness validates a memory snapshot before it is committed.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks snap and returns pass/fail with metrics. Structural soundness,
// edge weights and size are blocking; mean weight and anchor coverage are
// informational.
func (h *EvalHarness) Run(snap waypoint.Snapshot) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Structure: the snapshot must rebuild into a valid graph
	cfg := waypoint.DefaultConfig()
	cfg.WMax = h.config.WMax
	_, err := waypoint.Restore(cfg, terrain.OracleFunc(func(terrain.Position) terrain.Label { return terrain.LabelNone }), snap)
	metrics = append(metrics, EvalMetric{Name: "structure", Value: boolValue(err == nil), Pass: err == nil})
	if err != nil {
		passed = false
		failReasons = append(failReasons, err.Error())
	}

	// 2. Edge weights within [0, WMax]
	maxW, sumW := 0.0, 0.0
	for _, e := range snap.Edges {
		maxW = max(maxW, e.Weight)
		sumW += e.Weight
	}
	weightPass := maxW <= h.config.WMax
	metrics = append(metrics, EvalMetric{Name: "max_weight", Value: maxW, Pass: weightPass})
	if !weightPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("edge weight %.4f exceeds %.4f", maxW, h.config.WMax))
	}

	// 3. Size bound
	n := len(snap.Waypoints)
	sizePass := h.config.MaxWaypoints <= 0 || n <= h.config.MaxWaypoints
	metrics = append(metrics, EvalMetric{Name: "waypoints", Value: float64(n), Pass: sizePass})
	if !sizePass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("%d waypoints exceed %d", n, h.config.MaxWaypoints))
	}

	// 4. Mean weight: informational only
	mean := 0.0
	if len(snap.Edges) > 0 {
		mean = sumW / float64(len(snap.Edges))
	}
	metrics = append(metrics, EvalMetric{Name: "mean_weight", Value: mean, Pass: len(snap.Edges) == 0 || mean >= h.config.MinMeanWeight})

	// 5. Anchor coverage: share of anchors that still have members, informational
	covered := 0
	for _, a := range snap.Anchors {
		if len(a.Members) > 0 {
			covered++
		}
	}
	coverage := 1.0
	if len(snap.Anchors) > 0 {
		coverage = float64(covered) / float64(len(snap.Anchors))
	}
	metrics = append(metrics, EvalMetric{Name: "anchor_coverage", Value: coverage, Pass: coverage > 0})

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers

package eval

// #region eval-config
// EvalConfig holds thresholds for pre-commit validation of a memory snapshot.
type EvalConfig struct {
	WMax          float64 // reject if any chain edge is heavier than this
	MaxWaypoints  int     // reject if the memory holds more waypoints; 0 disables the check
	MinMeanWeight float64 // warn if the mean edge weight drops below this
}

// DefaultEvalConfig returns sensible defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		WMax:          1.0,
		MaxWaypoints:  10000,
		MinMeanWeight: 0.2,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
	Pass  bool    `json:"pass" yaml:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of pre-commit validation.
type EvalResult struct {
	Passed  bool         `json:"passed" yaml:"passed"`
	Metrics []EvalMetric `json:"metrics" yaml:"metrics"`
	Reason  string       `json:"reason" yaml:"reason"`
}

// #endregion eval-result

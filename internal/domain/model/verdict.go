package model

// StatusSignals gathers every signal a producer may have supplied for a run's
// test status. Fields are nil or empty when the producer did not send them.
type StatusSignals struct {
	PassRate *float64
	Passed   *int
	Total    *int
	Status   *string
	// DecisionResults holds the raw result strings of the run's decisions.
	DecisionResults     []string
	RequirementCoverage *float64
}

// SignalsFor collects the status signals of a stored run and its decision results.
func SignalsFor(run Run, decisionResults []string) StatusSignals {
	return StatusSignals{
		PassRate:            run.PassRate,
		Passed:              run.Passed,
		Total:               run.Total,
		Status:              run.Status,
		DecisionResults:     decisionResults,
		RequirementCoverage: run.Coverage.Requirement,
	}
}

// TestStatus is the derived "tests passed" verdict and the signal it came from.
type TestStatus struct {
	Passed bool
	Source SignalSource
}

// GateThresholds are the minimum coverage ratios a run must reach.
type GateThresholds struct {
	Requirement float64
	Temporal    float64
}

const (
	DefaultRequirementThreshold = 0.85
	DefaultTemporalThreshold    = 0.35
	StrictTemporalThreshold     = 0.60
)

// DefaultGateThresholds returns the thresholds used when none are configured.
func DefaultGateThresholds() GateThresholds {
	return GateThresholds{
		Requirement: DefaultRequirementThreshold,
		Temporal:    DefaultTemporalThreshold,
	}
}

// GateVerdict is the outcome of the coverage gate for one run.
type GateVerdict struct {
	OK          bool
	Requirement float64
	Temporal    float64
	Thresholds  GateThresholds
}

// RunVerdict pairs the two independent verdicts reported for a run.
type RunVerdict struct {
	Tests TestStatus
	Gate  GateVerdict
}

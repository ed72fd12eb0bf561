package application

import "github.com/ericfisherdev/mirror/internal/domain/model"

// CoverageGate decides whether a run's coverage clears the configured
// minimums. It is independent of the test status verdict.
type CoverageGate struct {
	thresholds model.GateThresholds
}

// NewCoverageGate creates a gate with fixed thresholds.
func NewCoverageGate(thresholds model.GateThresholds) *CoverageGate {
	return &CoverageGate{thresholds: thresholds}
}

// Thresholds returns the thresholds the gate was built with.
func (g *CoverageGate) Thresholds() model.GateThresholds {
	return g.thresholds
}

// Evaluate applies the gate. Missing ratios count as 0.
func (g *CoverageGate) Evaluate(c model.Coverage) model.GateVerdict {
	req := valueOrZero(c.Requirement)
	tmp := valueOrZero(c.Temporal)

	return model.GateVerdict{
		OK:          req >= g.thresholds.Requirement && tmp >= g.thresholds.Temporal,
		Requirement: req,
		Temporal:    tmp,
		Thresholds:  g.thresholds,
	}
}

// Verdict evaluates both independent verdicts for a stored run.
func (g *CoverageGate) Verdict(run model.Run, decisionResults []string) model.RunVerdict {
	return model.RunVerdict{
		Tests: DeriveTestStatus(model.SignalsFor(run, decisionResults)),
		Gate:  g.Evaluate(run.Coverage),
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
